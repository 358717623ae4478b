package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ScenarioConfig is one forcing configuration whose raw batch files live
// in SourceDir.
type ScenarioConfig struct {
	Name      string `yaml:"name"`
	SourceDir string `yaml:"source_dir"`
	OutputDir string `yaml:"output_dir,omitempty"` // defaults to SourceDir
}

// Validate checks the scenario fields.
func (s ScenarioConfig) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario name is empty")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("scenario name %q must not contain path separators", s.Name)
	}
	if s.SourceDir == "" {
		return fmt.Errorf("scenario %s: source_dir is empty", s.Name)
	}
	return nil
}

// OutputRoot is where the final frequency table is written.
func (s ScenarioConfig) OutputRoot() string {
	if s.OutputDir != "" {
		return s.OutputDir
	}
	return s.SourceDir
}

// OutputPath is the scenario's final frequency table.
func (s ScenarioConfig) OutputPath() string {
	return filepath.Join(s.OutputRoot(), s.Name+"_FREQUENCY_STATS.csv")
}
