// Package mark renders recorded grades back onto copies of the original
// answer sheets: accept/reject/partial symbols, per-question score text and
// a page total.
//
// Two blending paths exist with different alpha-from-density mappings: the
// combined compositor uses 0.2+0.8·d/100 while the standalone symbol pass
// uses d/100. The divergence is long-standing observed behavior and both
// mappings are kept as-is.
package mark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/mizutanik/saiten/grade"
	"github.com/mizutanik/saiten/observability"
	"github.com/mizutanik/saiten/raster"
	"github.com/mizutanik/saiten/region"
)

var (
	// ErrNothingToRender reports options with every show flag off.
	ErrNothingToRender = errors.New("mark: no output options enabled")
)

// Position selects where score text sits relative to its region.
type Position int

const (
	PositionRight Position = iota
	PositionLeft
	PositionCenter
)

// ParsePosition maps the configuration strings to a Position.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "right", "":
		return PositionRight, nil
	case "left":
		return PositionLeft, nil
	case "center":
		return PositionCenter, nil
	}
	return 0, fmt.Errorf("mark: invalid score position %q", s)
}

// ScoreColor selects the score text color.
type ScoreColor int

const (
	ColorRed ScoreColor = iota
	ColorBlack
	ColorSameAsMark
)

// ParseColor maps the configuration strings to a ScoreColor.
func ParseColor(s string) (ScoreColor, error) {
	switch s {
	case "red", "":
		return ColorRed, nil
	case "black":
		return ColorBlack, nil
	case "same":
		return ColorSameAsMark, nil
	}
	return 0, fmt.Errorf("mark: invalid score color %q", s)
}

// Options controls what Annotate renders.
type Options struct {
	ShowQuestionScores bool
	ShowTotal          bool
	ShowSymbols        bool
	// Density is the 0..100 opacity control.
	Density       int
	ScorePosition Position
	ScoreColor    ScoreColor
}

func (o Options) anyShow() bool {
	return o.ShowQuestionScores || o.ShowTotal || o.ShowSymbols
}

// Symbol is the annotation symbol decided for one graded region.
type Symbol int

const (
	SymbolNone Symbol = iota
	SymbolReject
	SymbolAccept
	SymbolPartial
)

// Decide picks the symbol for a score. Zero always rejects, even when the
// question's maximum is itself zero; full credit requires a positive
// maximum; skipped and ungraded units get no symbol.
func Decide(state grade.ScoreState, maxScore int) Symbol {
	if state.Kind != grade.Scored {
		return SymbolNone
	}
	if state.Points == 0 {
		return SymbolReject
	}
	if state.Points == maxScore && maxScore > 0 {
		return SymbolAccept
	}
	return SymbolPartial
}

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	green = color.RGBA{G: 0x80, A: 0xff}
	black = color.RGBA{A: 0xff}
)

func symbolColor(s Symbol) color.RGBA {
	switch s {
	case SymbolAccept:
		return blue
	case SymbolPartial:
		return green
	}
	return red
}

func (o Options) textColor(markCol color.RGBA, haveMark bool) color.RGBA {
	switch o.ScoreColor {
	case ColorBlack:
		return black
	case ColorSameAsMark:
		if haveMark {
			return markCol
		}
	}
	return red
}

func (o Options) totalColor() color.RGBA {
	switch o.ScoreColor {
	case ColorBlack:
		return black
	case ColorSameAsMark:
		return blue // the total belongs to no single mark
	}
	return red
}

const textPad = 5

type Config struct {
	// InputDir holds the original scanned sheets.
	InputDir string
	// OutputDir receives one annotated copy per readable source page.
	OutputDir string
	Logger    observability.Logger
	Tracer    observability.Tracer
}

type Compositor struct {
	cfg    Config
	log    observability.Logger
	tracer observability.Tracer
}

func New(cfg Config) *Compositor {
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Compositor{cfg: cfg, log: log, tracer: tracer}
}

// Result reports the annotate batch outcome.
type Result struct {
	Pages   int
	Skipped []string
}

// gradeSet is the per-batch snapshot of the store.
type gradeSet struct {
	byRespondent map[string]map[string]grade.ScoreState
	maxScores    map[string]int
}

func loadGradeSet(store grade.Repository) (gradeSet, error) {
	tags, err := store.QuestionTags()
	if err != nil {
		return gradeSet{}, err
	}
	gs := gradeSet{
		byRespondent: make(map[string]map[string]grade.ScoreState),
		maxScores:    make(map[string]int, len(tags)),
	}
	for _, tag := range tags {
		grades, err := store.LoadGrades(tag)
		if err != nil {
			return gradeSet{}, err
		}
		for name, state := range grades {
			if state.Kind == grade.Ungraded {
				continue // no recorded grade, nothing to render
			}
			if gs.byRespondent[name] == nil {
				gs.byRespondent[name] = make(map[string]grade.ScoreState)
			}
			gs.byRespondent[name][tag] = state
		}
		max, err := store.MaxScore(tag)
		if err != nil {
			return gradeSet{}, err
		}
		gs.maxScores[tag] = max
	}
	return gs, nil
}

// Annotate renders one annotated copy of every readable page in InputDir.
// Unreadable pages are skipped; the batch fails only when nothing at all
// could be produced.
func (c *Compositor) Annotate(ctx context.Context, catalog region.Catalog, store grade.Repository, opts Options) (res Result, err error) {
	start := time.Now()
	ctx, span := c.tracer.StartSpan(ctx, "mark.annotate")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.SetTag(observability.MetricMarkTime, time.Since(start))
		span.SetTag(observability.MetricMarkedPages, res.Pages)
		span.Finish()
	}()

	if !opts.anyShow() {
		return res, ErrNothingToRender
	}
	if err := catalog.Validate(); err != nil {
		return res, err
	}
	gs, err := loadGradeSet(store)
	if err != nil {
		return res, err
	}
	if len(gs.byRespondent) == 0 {
		return res, fmt.Errorf("%w: nothing graded yet", grade.ErrNoData)
	}
	sources, err := raster.SortedImageFiles(c.cfg.InputDir)
	if err != nil {
		return res, err
	}
	if len(sources) == 0 {
		return res, fmt.Errorf("mark: no source images in %s", c.cfg.InputDir)
	}
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("mark: create output dir: %w", err)
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		filename := filepath.Base(src)
		if err := c.annotatePage(src, filename, catalog, gs, opts); err != nil {
			c.log.Warn("page skipped", observability.String("file", filename), observability.Error("err", err))
			res.Skipped = append(res.Skipped, filename)
			continue
		}
		res.Pages++
	}
	if res.Pages == 0 {
		return res, fmt.Errorf("mark: no pages annotated (%d skipped)", len(res.Skipped))
	}
	c.log.Info("annotate finished",
		observability.Int("pages", res.Pages),
		observability.Int("skipped", len(res.Skipped)))
	return res, nil
}

func (c *Compositor) annotatePage(src, filename string, catalog region.Catalog, gs gradeSet, opts Options) error {
	img, err := raster.Read(src)
	if err != nil {
		return err
	}
	base := raster.Flatten(img)
	grades := gs.byRespondent[filename]

	var result *image.RGBA
	if opts.ShowSymbols {
		result = c.compositePage(base, catalog, grades, gs.maxScores, opts)
	} else {
		result = c.plainPage(base, catalog, grades, opts)
	}
	return raster.WriteJPEG(filepath.Join(c.cfg.OutputDir, filename), result)
}

// compositePage renders marks and text on separate overlay buffers and
// difference-mask blends them over the source, marks first so text is
// never occluded.
func (c *Compositor) compositePage(base *image.RGBA, catalog region.Catalog, grades map[string]grade.ScoreState, maxScores map[string]int, opts Options) *image.RGBA {
	markOverlay := clone(base)
	textOverlay := clone(base)
	total := 0

	for _, r := range catalog {
		if r.Tag == region.NameTag {
			continue
		}
		state, ok := grades[r.Tag]
		if !ok || state.Kind == grade.Skipped {
			continue
		}
		total += state.Points

		size := markSize(r)
		cx := r.Left + r.Width()/2
		cy := r.Top + r.Height()/2

		sym := Decide(state, maxScores[r.Tag])
		markCol := symbolColor(sym)
		switch sym {
		case SymbolReject:
			drawCross(markOverlay, cx, cy, size, markCol)
		case SymbolAccept:
			drawCircle(markOverlay, cx, cy, size, circleThickness, markCol)
		case SymbolPartial:
			drawTriangle(markOverlay, cx, cy, size, markCol)
		}

		// A rejected region shows only its cross; the zero is implied.
		if opts.ShowQuestionScores && state.Points > 0 {
			text := renderText(state.String(), size, opts.textColor(markCol, true))
			x, y := scorePosition(r, text.Bounds().Dx(), text.Bounds().Dy(), cx, cy, size, true, opts.ScorePosition)
			pasteText(textOverlay, text, x, y)
		}
	}

	if opts.ShowTotal && total > 0 {
		if nameRegion, ok := catalog.NameRegion(); ok {
			height := totalTextHeight(nameRegion)
			text := renderText(fmt.Sprintf("%d", total), height, opts.totalColor())
			x := nameRegion.Right - text.Bounds().Dx() - textPad
			y := nameRegion.Top + textPad
			pasteText(textOverlay, text, x, y)
		}
	}

	result := clone(base)
	blendMasked(result, base, markOverlay, opts.Density)
	blendMasked(result, base, textOverlay, opts.Density)
	return result
}

// plainPage draws score text straight onto a copy of the source, the
// faster path when symbols are off, with no masking or blending.
func (c *Compositor) plainPage(base *image.RGBA, catalog region.Catalog, grades map[string]grade.ScoreState, opts Options) *image.RGBA {
	result := clone(base)
	total := 0

	for _, r := range catalog {
		if r.Tag == region.NameTag {
			continue
		}
		state, ok := grades[r.Tag]
		if !ok || state.Kind == grade.Skipped {
			continue
		}
		total += state.Points

		if opts.ShowQuestionScores {
			size := markSize(r)
			cx := r.Left + r.Width()/2
			cy := r.Top + r.Height()/2
			text := renderText(state.String(), size, opts.textColor(red, false))
			x, y := scorePosition(r, text.Bounds().Dx(), text.Bounds().Dy(), cx, cy, size, false, opts.ScorePosition)
			pasteText(result, text, x, y)
		}
	}

	if opts.ShowTotal && total > 0 {
		if nameRegion, ok := catalog.NameRegion(); ok {
			text := renderText(fmt.Sprintf("%d", total), totalTextHeight(nameRegion), opts.totalColor())
			x := nameRegion.Right - text.Bounds().Dx() - textPad
			y := nameRegion.Top + textPad
			pasteText(result, text, x, y)
		}
	}
	return result
}

// StampSymbols is the standalone pass over already-exported sheets in
// OutputDir: symbols on an overlay blended at symbolAlpha, score text drawn
// opaque, results written back in place.
func (c *Compositor) StampSymbols(ctx context.Context, catalog region.Catalog, store grade.Repository, opts Options) (res Result, err error) {
	start := time.Now()
	ctx, span := c.tracer.StartSpan(ctx, "mark.stamp")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.SetTag(observability.MetricMarkTime, time.Since(start))
		span.SetTag(observability.MetricMarkedPages, res.Pages)
		span.Finish()
	}()

	if err := catalog.Validate(); err != nil {
		return res, err
	}
	gs, err := loadGradeSet(store)
	if err != nil {
		return res, err
	}
	if len(gs.byRespondent) == 0 {
		return res, fmt.Errorf("%w: nothing graded yet", grade.ErrNoData)
	}
	sources, err := raster.SortedImageFiles(c.cfg.OutputDir)
	if err != nil {
		return res, err
	}
	if len(sources) == 0 {
		return res, fmt.Errorf("mark: no exported sheets in %s", c.cfg.OutputDir)
	}

	alpha := symbolAlpha(opts.Density)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		filename := filepath.Base(src)
		img, err := raster.Read(src)
		if err != nil {
			c.log.Warn("sheet skipped", observability.String("file", filename), observability.Error("err", err))
			res.Skipped = append(res.Skipped, filename)
			continue
		}
		base := raster.Flatten(img)
		overlay := clone(base)
		grades := gs.byRespondent[filename]

		for _, r := range catalog {
			if r.Tag == region.NameTag {
				continue
			}
			state, ok := grades[r.Tag]
			if !ok || state.Kind != grade.Scored {
				continue
			}
			size := markSize(r)
			cx := r.Left + r.Width()/2
			cy := r.Top + r.Height()/2
			sym := Decide(state, gs.maxScores[r.Tag])
			markCol := symbolColor(sym)
			switch sym {
			case SymbolReject:
				drawCross(overlay, cx, cy, size, markCol)
			case SymbolAccept:
				drawCircle(overlay, cx, cy, size, circleThickness, markCol)
			case SymbolPartial:
				drawTriangle(overlay, cx, cy, size, markCol)
			}
			if opts.ShowQuestionScores && state.Points > 0 {
				text := renderText(state.String(), size, opts.textColor(markCol, true))
				x, y := scorePosition(r, text.Bounds().Dx(), text.Bounds().Dy(), cx, cy, size, true, opts.ScorePosition)
				pasteText(base, text, x, y)
			}
		}

		result := clone(base)
		blendFull(result, base, overlay, alpha)
		if err := raster.WriteJPEG(src, result); err != nil {
			c.log.Warn("sheet not written", observability.String("file", filename), observability.Error("err", err))
			res.Skipped = append(res.Skipped, filename)
			continue
		}
		res.Pages++
	}
	if res.Pages == 0 {
		return res, fmt.Errorf("mark: no sheets stamped (%d skipped)", len(res.Skipped))
	}
	return res, nil
}

// markSize is one third of the region's shorter side.
func markSize(r region.Region) int {
	if r.Width() < r.Height() {
		return r.Width() / 3
	}
	return r.Height() / 3
}

// totalTextHeight sizes the page total from the identity strip height,
// independent of any mark sizing.
func totalTextHeight(r region.Region) int {
	return r.Height() * 22 / 25
}

// scorePosition resolves the text anchor for a region. haveMark selects
// the adjacent-to-mark variant of the center style.
func scorePosition(r region.Region, textW, textH, cx, cy, size int, haveMark bool, pos Position) (int, int) {
	switch pos {
	case PositionLeft:
		return r.Left + textPad, r.Top + textPad
	case PositionCenter:
		if haveMark {
			return cx + size + textPad, cy - textH/2
		}
		return cx - textW/2, cy - textH/2
	}
	return r.Right - textW - textPad, r.Top + textPad
}

func clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
