// Package report aggregates the grading store into a spreadsheet: one row
// per respondent, one column per question, an embedded identity thumbnail
// and a computed total.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mizutanik/saiten/grade"
	"github.com/mizutanik/saiten/observability"
	"github.com/mizutanik/saiten/raster"
	"github.com/mizutanik/saiten/region"
)

const (
	// DefaultSheetName is the data sheet created when none is configured.
	DefaultSheetName = "Scores"

	tempDirName = "temp_excel_images"

	// Display ratios mapping thumbnail pixels to sheet row points and
	// column width units.
	rowHeightRatio = 0.75
	colWidthRatio  = 0.13
)

var fixedHeader = []string{"FileName", "Thumbnail", "StudentID", "Name"}

type Config struct {
	// OutputPath is the workbook file. An existing workbook is rebuilt in
	// place: the data sheet's cells are cleared and rewritten.
	OutputPath string
	// SheetName of the data sheet. Defaults to DefaultSheetName.
	SheetName string
	Logger    observability.Logger
	Tracer    observability.Tracer
}

type Builder struct {
	cfg    Config
	log    observability.Logger
	tracer observability.Tracer
}

func New(cfg Config) *Builder {
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	log := cfg.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Builder{cfg: cfg, log: log, tracer: tracer}
}

// Result reports what the build wrote.
type Result struct {
	Rows int
	Tags int
}

// Build walks the store and writes the workbook. Fails with
// grade.ErrNoData when the store holds no question tags or no respondents.
func (b *Builder) Build(ctx context.Context, store grade.Repository) (res Result, err error) {
	start := time.Now()
	ctx, span := b.tracer.StartSpan(ctx, "report.build")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.SetTag(observability.MetricReportTime, time.Since(start))
		span.SetTag(observability.MetricRowCount, res.Rows)
		span.Finish()
	}()

	tags, err := store.QuestionTags()
	if err != nil {
		return res, err
	}
	if len(tags) == 0 {
		return res, fmt.Errorf("%w: no question directories", grade.ErrNoData)
	}
	sort.Strings(tags)

	gradesByTag := make(map[string]map[string]grade.ScoreState, len(tags))
	seen := make(map[string]bool)
	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		grades, err := store.LoadGrades(tag)
		if err != nil {
			return res, err
		}
		gradesByTag[tag] = grades
		for name := range grades {
			seen[name] = true
		}
	}
	if len(seen) == 0 {
		return res, fmt.Errorf("%w: no respondents", grade.ErrNoData)
	}
	respondents := make([]string, 0, len(seen))
	for name := range seen {
		respondents = append(respondents, name)
	}
	sort.Strings(respondents)

	f, err := b.openWorkbook()
	if err != nil {
		return res, err
	}
	defer f.Close()

	sheet := b.cfg.SheetName
	header := append(append([]string{}, fixedHeader...), tags...)
	header = append(header, "Total")
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return res, fmt.Errorf("report: header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return res, fmt.Errorf("report: header cell: %w", err)
		}
	}

	tempDir := filepath.Join(filepath.Dir(b.cfg.OutputPath), tempDirName)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return res, fmt.Errorf("report: create temp dir: %w", err)
	}
	var tempFiles []string
	defer func() { b.cleanupTemp(tempDir, tempFiles) }()

	maxThumbWidth := 0
	for i, name := range respondents {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row := i + 2
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), name); err != nil {
			return res, fmt.Errorf("report: row %d: %w", row, err)
		}

		if tmp, w, h, err := b.embedThumbnail(f, store, name, row, tempDir); err != nil {
			b.log.Warn("thumbnail skipped", observability.String("file", name), observability.Error("err", err))
		} else if tmp != "" {
			tempFiles = append(tempFiles, tmp)
			if w > maxThumbWidth {
				maxThumbWidth = w
			}
			if err := f.SetRowHeight(sheet, row, float64(h)*rowHeightRatio); err != nil {
				return res, fmt.Errorf("report: row height %d: %w", row, err)
			}
		}

		total := 0
		for j, tag := range tags {
			cell, err := excelize.CoordinatesToCellName(len(fixedHeader)+j+1, row)
			if err != nil {
				return res, fmt.Errorf("report: cell: %w", err)
			}
			state, ok := gradesByTag[tag][name]
			if !ok {
				continue // blank cell: respondent absent from this tag
			}
			switch state.Kind {
			case grade.Scored:
				total += state.Points
				if err := f.SetCellValue(sheet, cell, state.Points); err != nil {
					return res, fmt.Errorf("report: cell %s: %w", cell, err)
				}
			case grade.Skipped:
				if err := f.SetCellValue(sheet, cell, grade.SkipBucket); err != nil {
					return res, fmt.Errorf("report: cell %s: %w", cell, err)
				}
			}
		}
		totalCell, err := excelize.CoordinatesToCellName(len(header), row)
		if err != nil {
			return res, fmt.Errorf("report: total cell: %w", err)
		}
		if err := f.SetCellValue(sheet, totalCell, total); err != nil {
			return res, fmt.Errorf("report: total cell %s: %w", totalCell, err)
		}
		res.Rows++
	}
	res.Tags = len(tags)

	if maxThumbWidth > 0 {
		if err := f.SetColWidth(sheet, "B", "B", float64(maxThumbWidth)*colWidthRatio); err != nil {
			return res, fmt.Errorf("report: thumbnail column width: %w", err)
		}
	}

	if err := f.SaveAs(b.cfg.OutputPath); err != nil {
		return res, fmt.Errorf("report: save %s: %w", b.cfg.OutputPath, err)
	}
	b.log.Info("report written",
		observability.String("path", b.cfg.OutputPath),
		observability.Int("rows", res.Rows),
		observability.Int("questions", res.Tags))
	return res, nil
}

// openWorkbook reloads an existing workbook and clears its data sheet, or
// starts a fresh one when the file is absent or unreadable.
func (b *Builder) openWorkbook() (*excelize.File, error) {
	sheet := b.cfg.SheetName
	f, err := excelize.OpenFile(b.cfg.OutputPath)
	if err != nil {
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("report: name sheet: %w", err)
		}
		return f, nil
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("report: sheet index: %w", err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("report: create sheet: %w", err)
		}
		return f, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("report: read sheet: %w", err)
	}
	for r, row := range rows {
		for c := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("report: clear cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, ""); err != nil {
				f.Close()
				return nil, fmt.Errorf("report: clear cell %s: %w", cell, err)
			}
		}
	}
	return f, nil
}

// embedThumbnail anchors the respondent's identity strip at the row's
// thumbnail cell, via a temp copy that outlives the excelize buffer until
// the workbook is saved. Returns the temp path and the native dimensions.
func (b *Builder) embedThumbnail(f *excelize.File, store grade.Repository, name string, row int, tempDir string) (string, int, int, error) {
	src, err := store.Locate(region.NameTag, name)
	if err != nil {
		return "", 0, 0, err
	}
	w, h, err := raster.Size(src)
	if err != nil {
		return "", 0, 0, err
	}
	tmp := filepath.Join(tempDir, "temp_"+name)
	if err := copyFile(src, tmp); err != nil {
		return "", 0, 0, err
	}
	cell := fmt.Sprintf("B%d", row)
	if err := f.AddPicture(b.cfg.SheetName, cell, tmp, nil); err != nil {
		os.Remove(tmp)
		return "", 0, 0, fmt.Errorf("report: add picture: %w", err)
	}
	return tmp, w, h, nil
}

// cleanupTemp removes the temp copies and the directory itself when empty.
// Runs on every exit path, including failed saves. A non-empty directory is
// left in place with a warning.
func (b *Builder) cleanupTemp(tempDir string, tempFiles []string) {
	for _, p := range tempFiles {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			b.log.Warn("temp file not removed", observability.String("path", p), observability.Error("err", err))
		}
	}
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return
	}
	if len(entries) == 0 {
		if err := os.Remove(tempDir); err != nil {
			b.log.Warn("temp dir not removed", observability.String("path", tempDir), observability.Error("err", err))
		}
		return
	}
	b.log.Warn("temp dir holds unexpected files, leaving in place",
		observability.String("path", tempDir),
		observability.Int("files", len(entries)))
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("report: open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("report: copy %s: %w", dest, err)
	}
	return out.Close()
}
