package export

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func writeSheet(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
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

func TestBundleWritesOnePagePerSheet(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, filepath.Join(dir, "a.jpg"), 200, 280)
	writeSheet(t, filepath.Join(dir, "b.jpg"), 400, 300)
	out := filepath.Join(t.TempDir(), "bundle.pdf")

	b := New(Config{InputDir: dir, OutputPath: out})
	pages, err := b.Bundle(context.Background())
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("bundle is empty")
	}
}

func TestBundleSkipsUnreadableSheets(t *testing.T) {
	dir := t.TempDir()
	writeSheet(t, filepath.Join(dir, "a.jpg"), 100, 100)
	if err := os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "bundle.pdf")

	pages, err := New(Config{InputDir: dir, OutputPath: out}).Bundle(context.Background())
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}
}

func TestBundleEmptyDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bundle.pdf")
	_, err := New(Config{InputDir: t.TempDir(), OutputPath: out}).Bundle(context.Background())
	if !errors.Is(err, ErrNoSheets) {
		t.Errorf("err = %v, want ErrNoSheets", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output written despite error")
	}
}

func TestFitPreservesAspect(t *testing.T) {
	// tall page: height binds
	w, h := fit(1000, 4000)
	if h != 277 {
		t.Errorf("height = %v, want 277", h)
	}
	if ratio := w / h; ratio < 0.249 || ratio > 0.251 {
		t.Errorf("aspect ratio = %v, want 0.25", ratio)
	}
	// wide page: width binds
	w, h = fit(4000, 1000)
	if w != 190 {
		t.Errorf("width = %v, want 190", w)
	}
}
