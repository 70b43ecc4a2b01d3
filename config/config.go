// Package config loads the CLI settings file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML settings file consumed by cmd/saiten. Paths are
// interpreted relative to the working directory unless absolute.
type Settings struct {
	InputDir   string `yaml:"input_dir"`
	OutputDir  string `yaml:"output_dir"`
	AnswerDir  string `yaml:"answer_dir"`
	ExportDir  string `yaml:"export_dir"`
	RegionFile string `yaml:"region_file"`
	ReportFile string `yaml:"report_file"`

	NameStripMaxHeight int `yaml:"name_strip_max_height"`

	Mark MarkSettings `yaml:"mark"`
}

// MarkSettings mirrors mark.Options in file form.
type MarkSettings struct {
	ShowQuestionScores bool   `yaml:"show_question_scores"`
	ShowTotal          bool   `yaml:"show_total"`
	ShowSymbols        bool   `yaml:"show_symbols"`
	Density            int    `yaml:"density"`
	ScorePosition      string `yaml:"score_position"`
	ScoreColor         string `yaml:"score_color"`
}

// DefaultSettings returns the values used when a field is absent from the
// file.
func DefaultSettings() Settings {
	return Settings{
		InputDir:   "input",
		OutputDir:  "output",
		AnswerDir:  "answer",
		ExportDir:  "export",
		RegionFile: "regions.csv",
		ReportFile: "scores.xlsx",
		Mark: MarkSettings{
			ShowQuestionScores: true,
			ShowTotal:          true,
			ShowSymbols:        true,
			Density:            100,
			ScorePosition:      "right",
			ScoreColor:         "red",
		},
	}
}

// LoadSettings reads and parses the settings file. Fields absent from the
// file keep their defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return s, fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.InputDir == "" {
		return fmt.Errorf("input_dir must not be empty")
	}
	if s.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if s.RegionFile == "" {
		return fmt.Errorf("region_file must not be empty")
	}
	if s.Mark.Density < 0 || s.Mark.Density > 100 {
		return fmt.Errorf("mark.density %d out of range 0..100", s.Mark.Density)
	}
	return nil
}
