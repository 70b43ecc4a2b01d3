// Package export bundles annotated answer sheets into a single PDF for
// returning to a class.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/mizutanik/saiten/observability"
	"github.com/mizutanik/saiten/raster"
)

// A4 page geometry in millimeters.
const (
	pageWidth  = 210
	pageHeight = 297
	margin     = 10
)

// ErrNoSheets reports a bundle request against a directory with no images.
var ErrNoSheets = errors.New("export: no annotated sheets")

type Config struct {
	// InputDir holds the annotated sheets to bundle.
	InputDir string
	// OutputPath is the PDF file to write.
	OutputPath string
	Logger     observability.Logger
}

type Bundler struct {
	cfg Config
	log observability.Logger
}

func New(cfg Config) *Bundler {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Bundler{cfg: cfg, log: log}
}

// Bundle writes one A4 page per readable sheet, aspect-fit within the page
// margins, in filename order. Unreadable sheets are skipped.
func (b *Bundler) Bundle(ctx context.Context) (int, error) {
	sheets, err := raster.SortedImageFiles(b.cfg.InputDir)
	if err != nil {
		return 0, err
	}
	if len(sheets) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoSheets, b.cfg.InputDir)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pages := 0
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		w, h, err := raster.Size(sheet)
		if err != nil {
			b.log.Warn("sheet skipped", observability.String("file", sheet), observability.Error("err", err))
			continue
		}
		fitW, fitH := fit(w, h)
		pdf.AddPage()
		opts := gofpdf.ImageOptions{ImageType: imageType(sheet), ReadDpi: false}
		pdf.ImageOptions(sheet, margin+(pageWidth-2*margin-fitW)/2, margin, fitW, fitH, false, opts, 0, "")
		pages++
	}
	if pages == 0 {
		return 0, fmt.Errorf("%w: all sheets unreadable", ErrNoSheets)
	}
	if err := pdf.OutputFileAndClose(b.cfg.OutputPath); err != nil {
		return pages, fmt.Errorf("export: write %s: %w", b.cfg.OutputPath, err)
	}
	b.log.Info("bundle written",
		observability.String("path", b.cfg.OutputPath),
		observability.Int("pages", pages))
	return pages, nil
}

// fit scales pixel dimensions into the printable area, preserving aspect.
func fit(w, h int) (float64, float64) {
	maxW := float64(pageWidth - 2*margin)
	maxH := float64(pageHeight - 2*margin)
	scale := maxW / float64(w)
	if float64(h)*scale > maxH {
		scale = maxH / float64(h)
	}
	return float64(w) * scale, float64(h) * scale
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG"
	case ".gif":
		return "GIF"
	}
	return "JPG"
}
