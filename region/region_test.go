package region

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleCatalog() Catalog {
	return Catalog{
		{Tag: "name", Left: 0, Top: 0, Right: 100, Bottom: 50},
		{Tag: "Q_0001", Left: 0, Top: 50, Right: 100, Bottom: 150},
		{Tag: "Q_0002", Left: 0, Top: 150, Right: 100, Bottom: 260},
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trimData.csv")
	want := sampleCatalog()
	if err := want.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"header only", "tag,start_x,start_y,end_x,end_y\n"},
		{"short row", "tag,start_x,start_y,end_x,end_y\nQ_0001,1,2,3\n"},
		{"non-numeric", "tag,start_x,start_y,end_x,end_y\nQ_0001,a,2,3,4\n"},
		{"degenerate", "tag,start_x,start_y,end_x,end_y\nQ_0001,10,10,10,20\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".csv")
		if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestQuestionTagsExcludesName(t *testing.T) {
	got := sampleCatalog().QuestionTags()
	want := []string{"Q_0001", "Q_0002"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("QuestionTags = %v, want %v", got, want)
	}
}

func TestNameRegion(t *testing.T) {
	r, ok := sampleCatalog().NameRegion()
	if !ok || r.Tag != "name" || r.Bottom != 50 {
		t.Errorf("NameRegion = %v, %v", r, ok)
	}
	if _, ok := (Catalog{{Tag: "Q_0001", Left: 0, Top: 0, Right: 1, Bottom: 1}}).NameRegion(); ok {
		t.Error("NameRegion reported a catalog without an identity strip")
	}
}

func TestRegionGeometry(t *testing.T) {
	r := Region{Tag: "Q_0001", Left: 3, Top: 7, Right: 13, Bottom: 27}
	if r.Width() != 10 || r.Height() != 20 {
		t.Errorf("Width/Height = %d/%d", r.Width(), r.Height())
	}
	if r.Rect().Dx() != 10 || r.Rect().Dy() != 20 {
		t.Errorf("Rect = %v", r.Rect())
	}
}
