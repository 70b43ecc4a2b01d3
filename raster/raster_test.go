package raster

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestCropSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 300))
	got := Crop(src, image.Rect(10, 20, 110, 170))
	if got.Bounds().Dx() != 100 || got.Bounds().Dy() != 150 {
		t.Errorf("crop size = %dx%d, want 100x150", got.Bounds().Dx(), got.Bounds().Dy())
	}
}

func TestCropClampsToBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 50, 50))
	got := Crop(src, image.Rect(40, 40, 120, 120))
	if got.Bounds().Dx() != 10 || got.Bounds().Dy() != 10 {
		t.Errorf("clamped crop size = %dx%d, want 10x10", got.Bounds().Dx(), got.Bounds().Dy())
	}
}

func TestFlattenAlphaOntoWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})     // fully transparent
	src.Set(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255}) // opaque

	flat := Flatten(src)
	if got := flat.RGBAAt(0, 0); got.R != 255 || got.G != 255 || got.B != 255 || got.A != 255 {
		t.Errorf("transparent pixel flattened to %v, want white", got)
	}
	if got := flat.RGBAAt(1, 0); got.R != 10 || got.G != 20 || got.B != 30 {
		t.Errorf("opaque pixel changed: %v", got)
	}
}

func TestScaleToHeightKeepsAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	dst := ScaleToHeight(src, 50)
	if dst.Bounds().Dx() != 100 || dst.Bounds().Dy() != 50 {
		t.Errorf("scaled size = %dx%d, want 100x50", dst.Bounds().Dx(), dst.Bounds().Dy())
	}
}

func TestSortedImageFiles(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	writePNG(t, filepath.Join(dir, "b.png"), img)
	writePNG(t, filepath.Join(dir, "a.png"), img)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := SortedImageFiles(dir)
	if err != nil {
		t.Fatalf("SortedImageFiles: %v", err)
	}
	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	path := filepath.Join(dir, "out.jpg")
	if err := WriteJPEG(path, src); err != nil {
		t.Fatalf("WriteJPEG: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Bounds() != src.Bounds() {
		t.Errorf("bounds = %v, want %v", got.Bounds(), src.Bounds())
	}
	w, h, err := Size(path)
	if err != nil || w != 8 || h != 8 {
		t.Errorf("Size = %d,%d,%v", w, h, err)
	}
}

func TestReadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Error("expected decode error for corrupt file")
	}
}
