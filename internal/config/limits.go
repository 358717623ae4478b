package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// PipelineConfig bounds batch processing. Workers is kept small and
// independent of CPU count: each worker holds every model's extract for
// one batch in memory at once.
type PipelineConfig struct {
	Workers      int    `yaml:"workers"`       // Concurrent batch-mean workers
	BatchTimeout string `yaml:"batch_timeout"` // Per-batch deadline, "" disables
	BatchWidth   int    `yaml:"batch_width"`   // Grid ids per batch (diagnostics only)
	MeansDir     string `yaml:"means_dir"`     // Intermediate dir under the scenario root
	StatsDir     string `yaml:"stats_dir"`     // Intermediate dir under the scenario root
	KeepMeans    bool   `yaml:"keep_means"`    // Leave TEMP_MEANS after a successful merge
}

// DefaultPipelineConfig returns the conservative defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:    2,
		BatchWidth: 160,
		MeansDir:   "TEMP_MEANS",
		StatsDir:   "TEMP_STATS",
	}
}

// ValidatePipeline checks that pipeline limits are within acceptable ranges.
// Workers below one are clamped by EffectiveWorkers rather than rejected.
func (c *Config) ValidatePipeline() error {
	if c.Pipeline.BatchWidth < 1 {
		return fmt.Errorf("batch_width must be >= 1")
	}
	if c.Pipeline.MeansDir == "" || c.Pipeline.StatsDir == "" {
		return fmt.Errorf("means_dir and stats_dir must be set")
	}
	if c.Pipeline.MeansDir == c.Pipeline.StatsDir {
		return fmt.Errorf("means_dir and stats_dir must differ")
	}
	if c.Pipeline.BatchTimeout != "" {
		if d, err := time.ParseDuration(c.Pipeline.BatchTimeout); err != nil || d < 0 {
			return fmt.Errorf("invalid batch_timeout: %q", c.Pipeline.BatchTimeout)
		}
	}
	return nil
}

// EffectiveWorkers returns the worker count, never below one.
func (c *Config) EffectiveWorkers() int {
	if c.Pipeline.Workers < 1 {
		return 1
	}
	return c.Pipeline.Workers
}

// MeansDir is the scenario's batch-mean artifact directory.
func (c *Config) MeansDir(s ScenarioConfig) string {
	return filepath.Join(s.OutputRoot(), c.Pipeline.MeansDir)
}

// StatsDir is the scenario's per-batch frequency artifact directory.
func (c *Config) StatsDir(s ScenarioConfig) string {
	return filepath.Join(s.OutputRoot(), c.Pipeline.StatsDir)
}
