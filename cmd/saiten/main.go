// Command saiten grades scanned exam sheets: it crops answer regions out of
// the scans, tracks scores as files move between score directories, exports a
// spreadsheet report, and writes annotated sheets for returning to the class.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mizutanik/saiten/config"
	"github.com/mizutanik/saiten/export"
	"github.com/mizutanik/saiten/grade"
	"github.com/mizutanik/saiten/mark"
	"github.com/mizutanik/saiten/observability"
	"github.com/mizutanik/saiten/region"
	"github.com/mizutanik/saiten/report"
	"github.com/mizutanik/saiten/trim"
)

const defaultSettingsFile = "saiten.yaml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "saiten: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: saiten <command> [flags]

Commands:
  trim      crop answer regions out of the scanned sheets
  grade     move an answer into a score directory
  ungraded  list answers still waiting for a score
  status    per-question grading progress
  report    write the score spreadsheet
  mark      write annotated sheets
  bundle    collect annotated sheets into one PDF

Run "saiten <command> -h" for command flags.
`)
}

type env struct {
	settings config.Settings
	log      observability.Logger
}

// loadEnv reads the settings file named by -config on the command's flag
// set. The default file is optional; an explicitly named one is not.
func loadEnv(fs *flag.FlagSet, args []string) (env, error) {
	cfgPath := fs.String("config", defaultSettingsFile, "Settings file")
	verbose := fs.Bool("v", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return env{}, err
	}

	settings, err := config.LoadSettings(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && *cfgPath == defaultSettingsFile {
			settings = config.DefaultSettings()
		} else {
			return env{}, err
		}
	}

	level := observability.LevelInfo
	if *verbose {
		level = observability.LevelDebug
	}
	return env{settings: settings, log: observability.NewStderrLogger(level)}, nil
}

func run(command string, args []string) error {
	switch command {
	case "trim":
		return runTrim(args)
	case "grade":
		return runGrade(args)
	case "ungraded":
		return runUngraded(args)
	case "status":
		return runStatus(args)
	case "report":
		return runReport(args)
	case "mark":
		return runMark(args)
	case "bundle":
		return runBundle(args)
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runTrim(args []string) error {
	fs := flag.NewFlagSet("trim", flag.ExitOnError)
	force := fs.Bool("force", false, "Discard existing crops and grading state")
	e, err := loadEnv(fs, args)
	if err != nil {
		return err
	}

	catalog, err := region.Load(e.settings.RegionFile)
	if err != nil {
		return err
	}
	if hasGradingState(e.settings.OutputDir) && !*force {
		return fmt.Errorf("%s already holds crops and grading state; re-run with -force to discard it", e.settings.OutputDir)
	}

	trimmer := trim.New(trim.Config{
		InputDir:           e.settings.InputDir,
		OutputDir:          e.settings.OutputDir,
		AnswerDir:          e.settings.AnswerDir,
		NameStripMaxHeight: e.settings.NameStripMaxHeight,
		Logger:             e.log,
	})
	res, err := trimmer.TrimAll(context.Background(), catalog)
	if err != nil {
		return err
	}
	fmt.Printf("trimmed %d pages into %d crops\n", res.Pages, res.Crops)
	for _, skipped := range res.Skipped {
		fmt.Printf("skipped %s\n", skipped)
	}
	if res.ModelAnswerPages > 0 {
		fmt.Printf("model answers: %d pages\n", res.ModelAnswerPages)
	}
	return nil
}

// hasGradingState reports whether the output tree already contains tag
// directories, meaning a re-trim would discard work.
func hasGradingState(outputDir string) bool {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return true
		}
	}
	return false
}

func runGrade(args []string) error {
	fs := flag.NewFlagSet("grade", flag.ExitOnError)
	e, err := loadEnv(fs, args)
	if err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 3 {
		return fmt.Errorf("usage: saiten grade <tag> <file> <score|skip>")
	}
	tag, filename := rest[0], rest[1]
	score, err := grade.ParseScore(rest[2])
	if err != nil {
		return err
	}

	store := grade.NewDirStore(e.settings.OutputDir)
	if err := store.GradeAnswer(tag, filename, score); err != nil {
		return err
	}
	fmt.Printf("%s/%s -> %s\n", tag, filename, score)
	return nil
}

func runUngraded(args []string) error {
	fs := flag.NewFlagSet("ungraded", flag.ExitOnError)
	e, err := loadEnv(fs, args)
	if err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return fmt.Errorf("usage: saiten ungraded <tag>")
	}

	store := grade.NewDirStore(e.settings.OutputDir)
	files, err := store.ListUngraded(rest[0])
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(filepath.Base(f))
	}
	fmt.Printf("%d ungraded\n", len(files))
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	e, err := loadEnv(fs, args)
	if err != nil {
		return err
	}

	store := grade.NewDirStore(e.settings.OutputDir)
	tags, err := store.QuestionTags()
	if err != nil {
		return err
	}
	for _, tag := range tags {
		counts, err := store.GradedCounts(tag)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d/%d graded (%d skipped)\n",
			tag, counts.Scored+counts.Skipped, counts.Total(), counts.Skipped)
	}
	return nil
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	e, err := loadEnv(fs, args)
	if err != nil {
		return err
	}

	store := grade.NewDirStore(e.settings.OutputDir)
	builder := report.New(report.Config{
		OutputPath: e.settings.ReportFile,
		Logger:     e.log,
	})
	res, err := builder.Build(context.Background(), store)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d rows, %d questions\n", e.settings.ReportFile, res.Rows, res.Tags)
	return nil
}

func runMark(args []string) error {
	fs := flag.NewFlagSet("mark", flag.ExitOnError)
	symbolsOnly := fs.Bool("symbols-only", false, "Stamp symbols over already annotated sheets")
	e, err := loadEnv(fs, args)
	if err != nil {
		return err
	}

	catalog, err := region.Load(e.settings.RegionFile)
	if err != nil {
		return err
	}
	opts, err := markOptions(e.settings.Mark)
	if err != nil {
		return err
	}
	store := grade.NewDirStore(e.settings.OutputDir)
	compositor := mark.New(mark.Config{
		InputDir:  e.settings.InputDir,
		OutputDir: e.settings.ExportDir,
		Logger:    e.log,
	})

	var res mark.Result
	if *symbolsOnly {
		res, err = compositor.StampSymbols(context.Background(), catalog, store, opts)
	} else {
		res, err = compositor.Annotate(context.Background(), catalog, store, opts)
	}
	if err != nil {
		return err
	}
	fmt.Printf("annotated %d pages\n", res.Pages)
	for _, skipped := range res.Skipped {
		fmt.Printf("skipped %s\n", skipped)
	}
	return nil
}

func markOptions(s config.MarkSettings) (mark.Options, error) {
	pos, err := mark.ParsePosition(s.ScorePosition)
	if err != nil {
		return mark.Options{}, err
	}
	col, err := mark.ParseColor(s.ScoreColor)
	if err != nil {
		return mark.Options{}, err
	}
	return mark.Options{
		ShowQuestionScores: s.ShowQuestionScores,
		ShowTotal:          s.ShowTotal,
		ShowSymbols:        s.ShowSymbols,
		Density:            s.Density,
		ScorePosition:      pos,
		ScoreColor:         col,
	}, nil
}

func runBundle(args []string) error {
	fs := flag.NewFlagSet("bundle", flag.ExitOnError)
	out := fs.String("out", "", "PDF path (default <export_dir>/sheets.pdf)")
	e, err := loadEnv(fs, args)
	if err != nil {
		return err
	}
	outPath := *out
	if outPath == "" {
		outPath = filepath.Join(e.settings.ExportDir, "sheets.pdf")
	}

	bundler := export.New(export.Config{
		InputDir:   e.settings.ExportDir,
		OutputPath: outPath,
		Logger:     e.log,
	})
	pages, err := bundler.Bundle(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d pages\n", outPath, pages)
	return nil
}
