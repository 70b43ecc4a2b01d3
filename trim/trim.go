// Package trim slices scanned answer sheets into per-question crop trees.
package trim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mizutanik/saiten/observability"
	"github.com/mizutanik/saiten/raster"
	"github.com/mizutanik/saiten/region"
)

// DefaultNameStripHeight caps the uniform height of the identity-strip
// images so report thumbnails stay aligned.
const DefaultNameStripHeight = 50

// ErrNoSources reports an input directory without a single readable image.
var ErrNoSources = errors.New("trim: no source images")

type Config struct {
	// InputDir holds the scanned answer sheets.
	InputDir string
	// OutputDir receives the per-tag crop tree. Cleared on every run.
	OutputDir string
	// AnswerDir optionally holds model-answer sheets; when present they are
	// cropped into AnswerDir/output with the same region set.
	AnswerDir string
	// NameStripMaxHeight caps the identity-strip rescale. Defaults to
	// DefaultNameStripHeight.
	NameStripMaxHeight int
	Logger             observability.Logger
	Tracer             observability.Tracer
}

type Trimmer struct {
	cfg    Config
	log    observability.Logger
	tracer observability.Tracer
}

func New(cfg Config) *Trimmer {
	if cfg.NameStripMaxHeight <= 0 {
		cfg.NameStripMaxHeight = DefaultNameStripHeight
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Trimmer{cfg: cfg, log: log, tracer: tracer}
}

// Result reports what a trim run produced. Skipped lists source files that
// were unreadable or unwritable and therefore appear in no tag bucket.
type Result struct {
	Pages            int
	Crops            int
	Skipped          []string
	ModelAnswerPages int
}

// TrimAll crops every catalog region out of every source page into
// OutputDir/<tag>/<filename>. The destination tree is cleared first, so a
// re-run is idempotent and destroys any grading state already recorded
// there. Callers must confirm that with the user before invoking this.
func (t *Trimmer) TrimAll(ctx context.Context, catalog region.Catalog) (res Result, err error) {
	start := time.Now()
	ctx, span := t.tracer.StartSpan(ctx, "trim.all")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.SetTag(observability.MetricTrimTime, time.Since(start))
		span.SetTag(observability.MetricPageCount, res.Pages)
		span.SetTag(observability.MetricCropCount, res.Crops)
		span.Finish()
	}()

	if err := catalog.Validate(); err != nil {
		return res, err
	}

	sources, err := raster.SortedImageFiles(t.cfg.InputDir)
	if err != nil {
		return res, err
	}
	if len(sources) == 0 {
		return res, fmt.Errorf("%w in %s", ErrNoSources, t.cfg.InputDir)
	}

	if err := t.resetOutputTree(t.cfg.OutputDir, catalog); err != nil {
		return res, err
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		crops, err := t.trimPage(src, t.cfg.OutputDir, catalog)
		if err != nil {
			t.log.Warn("page skipped", observability.String("file", src), observability.Error("err", err))
			res.Skipped = append(res.Skipped, filepath.Base(src))
			continue
		}
		res.Pages++
		res.Crops += crops
	}
	if res.Pages == 0 {
		return res, fmt.Errorf("%w: all %d pages unreadable", ErrNoSources, len(sources))
	}

	if err := t.resizeNameStrips(); err != nil {
		t.log.Warn("name strip rescale failed", observability.Error("err", err))
	}

	if pages, err := t.trimModelAnswers(ctx, catalog); err != nil {
		t.log.Warn("model answer trim failed", observability.Error("err", err))
	} else {
		res.ModelAnswerPages = pages
	}

	t.log.Info("trim finished",
		observability.Int("pages", res.Pages),
		observability.Int("crops", res.Crops),
		observability.Int("skipped", len(res.Skipped)))
	return res, nil
}

// resetOutputTree removes every existing subdirectory of root and creates a
// fresh directory per catalog tag.
func (t *Trimmer) resetOutputTree(root string, catalog region.Catalog) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("trim: create output dir %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("trim: read output dir %s: %w", root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
				return fmt.Errorf("trim: clear %s: %w", e.Name(), err)
			}
		}
	}
	for _, r := range catalog {
		if err := os.MkdirAll(filepath.Join(root, r.Tag), 0o755); err != nil {
			return fmt.Errorf("trim: create tag dir %s: %w", r.Tag, err)
		}
	}
	return nil
}

// trimPage writes one crop per region. If any crop fails to write, the ones
// already written for this page are removed so the page is absent from
// every bucket.
func (t *Trimmer) trimPage(src, outRoot string, catalog region.Catalog) (int, error) {
	img, err := raster.Read(src)
	if err != nil {
		return 0, err
	}
	filename := filepath.Base(src)
	var written []string
	for _, r := range catalog {
		dest := filepath.Join(outRoot, r.Tag, filename)
		if err := raster.WriteJPEG(dest, raster.Crop(img, r.Rect())); err != nil {
			for _, p := range written {
				os.Remove(p)
			}
			return 0, err
		}
		written = append(written, dest)
	}
	return len(written), nil
}

// resizeNameStrips rescales every identity-strip crop to one shared height:
// the first image's height, capped at NameStripMaxHeight.
func (t *Trimmer) resizeNameStrips() error {
	dir := filepath.Join(t.cfg.OutputDir, region.NameTag)
	files, err := raster.SortedImageFiles(dir)
	if err != nil || len(files) == 0 {
		return err
	}
	_, firstHeight, err := raster.Size(files[0])
	if err != nil {
		return err
	}
	target := firstHeight
	if target > t.cfg.NameStripMaxHeight {
		target = t.cfg.NameStripMaxHeight
	}
	if target == firstHeight {
		return nil
	}
	for _, path := range files {
		img, err := raster.Read(path)
		if err != nil {
			return err
		}
		if err := raster.WriteJPEG(path, raster.ScaleToHeight(img, target)); err != nil {
			return err
		}
	}
	return nil
}

// trimModelAnswers applies the same region set to the model-answer sheets,
// producing a parallel tree under AnswerDir/output. Absence of model
// answers is not an error.
func (t *Trimmer) trimModelAnswers(ctx context.Context, catalog region.Catalog) (int, error) {
	if t.cfg.AnswerDir == "" {
		return 0, nil
	}
	if _, err := os.Stat(t.cfg.AnswerDir); err != nil {
		return 0, nil
	}
	sources, err := raster.SortedImageFiles(t.cfg.AnswerDir)
	if err != nil || len(sources) == 0 {
		return 0, err
	}
	outRoot := filepath.Join(t.cfg.AnswerDir, "output")
	if err := t.resetOutputTree(outRoot, catalog); err != nil {
		return 0, err
	}
	pages := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if _, err := t.trimPage(src, outRoot, catalog); err != nil {
			t.log.Warn("model answer skipped", observability.String("file", src), observability.Error("err", err))
			continue
		}
		pages++
	}
	return pages, nil
}
