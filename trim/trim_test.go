package trim

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/mizutanik/saiten/observability"
	"github.com/mizutanik/saiten/raster"
	"github.com/mizutanik/saiten/region"
)

type recordedSpan struct {
	name     string
	tags     map[string]interface{}
	err      error
	finished bool
}

func (s *recordedSpan) SetTag(key string, value interface{}) { s.tags[key] = value }
func (s *recordedSpan) SetError(err error)                   { s.err = err }
func (s *recordedSpan) Finish()                              { s.finished = true }

type recordingTracer struct{ spans []*recordedSpan }

func (t *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	s := &recordedSpan{name: name, tags: map[string]interface{}{}}
	t.spans = append(t.spans, s)
	return ctx, s
}

func writeSheet(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 251), G: uint8(y % 251), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
}

func testCatalog() region.Catalog {
	return region.Catalog{
		{Tag: "name", Left: 0, Top: 0, Right: 100, Bottom: 50},
		{Tag: "Q_0001", Left: 0, Top: 50, Right: 100, Bottom: 150},
	}
}

func TestTrimAllProducesTagTree(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeSheet(t, filepath.Join(in, "a.jpg"), 120, 200)
	writeSheet(t, filepath.Join(in, "b.jpg"), 120, 200)

	tr := New(Config{InputDir: in, OutputDir: out})
	res, err := tr.TrimAll(context.Background(), testCatalog())
	if err != nil {
		t.Fatalf("TrimAll: %v", err)
	}
	if res.Pages != 2 || res.Crops != 4 || len(res.Skipped) != 0 {
		t.Errorf("result = %+v", res)
	}

	for _, name := range []string{"a.jpg", "b.jpg"} {
		p := filepath.Join(out, "Q_0001", name)
		img, err := raster.Read(p)
		if err != nil {
			t.Fatalf("missing crop %s: %v", p, err)
		}
		if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
			t.Errorf("%s crop = %v, want 100x100", name, img.Bounds())
		}
	}
}

func TestTrimAllRescalesNameStrips(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeSheet(t, filepath.Join(in, "a.jpg"), 200, 200)

	tr := New(Config{InputDir: in, OutputDir: out})
	if _, err := tr.TrimAll(context.Background(), testCatalog()); err != nil {
		t.Fatal(err)
	}
	// name region is 100x50; the cap is 50 so no shrink happens by default.
	_, h, err := raster.Size(filepath.Join(out, "name", "a.jpg"))
	if err != nil || h != 50 {
		t.Errorf("name strip height = %d, %v, want 50", h, err)
	}

	// With a lower cap the strip shrinks to the cap, aspect preserved.
	tr = New(Config{InputDir: in, OutputDir: out, NameStripMaxHeight: 25})
	if _, err := tr.TrimAll(context.Background(), testCatalog()); err != nil {
		t.Fatal(err)
	}
	w, h, err := raster.Size(filepath.Join(out, "name", "a.jpg"))
	if err != nil || h != 25 || w != 50 {
		t.Errorf("capped strip = %dx%d, %v, want 50x25", w, h, err)
	}
}

func TestTrimAllClearsPriorState(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeSheet(t, filepath.Join(in, "a.jpg"), 120, 200)

	// A previous run left a score bucket behind.
	stale := filepath.Join(out, "Q_0001", "5", "old.jpg")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := New(Config{InputDir: in, OutputDir: out})
	if _, err := tr.TrimAll(context.Background(), testCatalog()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("prior grading state survived the re-trim")
	}
}

func TestTrimAllSkipsCorruptPages(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeSheet(t, filepath.Join(in, "good.jpg"), 120, 200)
	if err := os.WriteFile(filepath.Join(in, "bad.jpg"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := New(Config{InputDir: in, OutputDir: out})
	res, err := tr.TrimAll(context.Background(), testCatalog())
	if err != nil {
		t.Fatalf("TrimAll: %v", err)
	}
	if res.Pages != 1 || len(res.Skipped) != 1 || res.Skipped[0] != "bad.jpg" {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(out, "Q_0001", "bad.jpg")); !os.IsNotExist(err) {
		t.Error("corrupt page appeared in a tag bucket")
	}
}

func TestTrimAllFailsWithoutSources(t *testing.T) {
	tr := New(Config{InputDir: t.TempDir(), OutputDir: t.TempDir()})
	if _, err := tr.TrimAll(context.Background(), testCatalog()); !errors.Is(err, ErrNoSources) {
		t.Errorf("err = %v, want ErrNoSources", err)
	}
}

func TestTrimAllFailsOnEmptyCatalog(t *testing.T) {
	in := t.TempDir()
	writeSheet(t, filepath.Join(in, "a.jpg"), 120, 200)
	tr := New(Config{InputDir: in, OutputDir: t.TempDir()})
	if _, err := tr.TrimAll(context.Background(), region.Catalog{}); !errors.Is(err, region.ErrInvalidCatalog) {
		t.Errorf("err = %v, want ErrInvalidCatalog", err)
	}
}

func TestTrimAllEmitsSpan(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeSheet(t, filepath.Join(in, "a.jpg"), 120, 200)
	tracer := &recordingTracer{}

	tr := New(Config{InputDir: in, OutputDir: out, Tracer: tracer})
	res, err := tr.TrimAll(context.Background(), testCatalog())
	if err != nil {
		t.Fatalf("TrimAll: %v", err)
	}

	if len(tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tracer.spans))
	}
	span := tracer.spans[0]
	if span.name != "trim.all" || !span.finished || span.err != nil {
		t.Errorf("span = %+v", span)
	}
	if got := span.tags[observability.MetricPageCount]; got != res.Pages {
		t.Errorf("page count tag = %v, want %d", got, res.Pages)
	}
	if got := span.tags[observability.MetricCropCount]; got != res.Crops {
		t.Errorf("crop count tag = %v, want %d", got, res.Crops)
	}
	if _, ok := span.tags[observability.MetricTrimTime]; !ok {
		t.Error("duration tag missing")
	}
}

func TestTrimAllSpanRecordsFailure(t *testing.T) {
	tracer := &recordingTracer{}
	tr := New(Config{InputDir: t.TempDir(), OutputDir: t.TempDir(), Tracer: tracer})
	if _, err := tr.TrimAll(context.Background(), testCatalog()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("err = %v, want ErrNoSources", err)
	}
	if len(tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tracer.spans))
	}
	span := tracer.spans[0]
	if !span.finished || !errors.Is(span.err, ErrNoSources) {
		t.Errorf("span = %+v", span)
	}
}

func TestTrimAllModelAnswers(t *testing.T) {
	in, out, ans := t.TempDir(), t.TempDir(), t.TempDir()
	writeSheet(t, filepath.Join(in, "a.jpg"), 120, 200)
	writeSheet(t, filepath.Join(ans, "model.jpg"), 120, 200)

	tr := New(Config{InputDir: in, OutputDir: out, AnswerDir: ans})
	res, err := tr.TrimAll(context.Background(), testCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if res.ModelAnswerPages != 1 {
		t.Errorf("ModelAnswerPages = %d, want 1", res.ModelAnswerPages)
	}
	if _, err := os.Stat(filepath.Join(ans, "output", "Q_0001", "model.jpg")); err != nil {
		t.Errorf("model answer crop missing: %v", err)
	}
}
