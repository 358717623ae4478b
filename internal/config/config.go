package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config path used when --config is not given.
const DefaultConfigFile = "hydrofreq.yaml"

// Config holds all hydrofreq configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Scenarios processed by `run`, in order.
	Scenarios []ScenarioConfig `yaml:"scenarios"`

	// Models contributing to the ensemble mean.
	Models []string `yaml:"models"`

	// Raw input layout
	Input InputConfig `yaml:"input"`

	// Batch processing
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Event thresholds, in output column order.
	Thresholds []ThresholdConfig `yaml:"thresholds"`

	// Run ledger
	Ledger LedgerConfig `yaml:"ledger"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig describes the raw per-model batch files.
type InputConfig struct {
	// Positional column names forced onto every raw file.
	Columns []string `yaml:"columns"`

	// The first line of every raw file is treated as unreliable and skipped.
	SkipFirstLine bool `yaml:"skip_first_line"`
}

// LedgerConfig configures the SQLite run ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultModels is the ISIMIP model ensemble the dissertation used.
var DefaultModels = []string{
	"h08", "hydropy", "jules-w2", "lpjml5-7-10-fire",
	"miroc-integ-land", "watergap2-2e", "web-dhm-sg",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "hydrofreq",
		Version: "1.0.0",

		Scenarios: []ScenarioConfig{
			{Name: "countclim-1901soc", SourceDir: "data/countclim-1901soc"},
			{Name: "countclim-histsoc", SourceDir: "data/countclim-histsoc"},
			{Name: "obsclim-histsoc", SourceDir: "data/obsclim-histsoc"},
		},

		Models: append([]string(nil), DefaultModels...),

		Input: InputConfig{
			Columns:       []string{"Grid_ID", "Lon", "Lat", "Date", "Qtot", "SCI"},
			SkipFirstLine: true,
		},

		Pipeline: DefaultPipelineConfig(),

		Thresholds: DefaultThresholds(),

		Ledger: LedgerConfig{
			Enabled: true,
			Path:    ".hydrofreq/ledger.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// A single source dir collapses the scenario list to that directory.
	if dir := os.Getenv("HYDROFREQ_SOURCE_DIR"); dir != "" {
		name := filepath.Base(filepath.Clean(dir))
		if s := os.Getenv("HYDROFREQ_SCENARIO"); s != "" {
			name = s
		}
		c.Scenarios = []ScenarioConfig{{Name: name, SourceDir: dir}}
	}
	if models := os.Getenv("HYDROFREQ_MODELS"); models != "" {
		c.Models = splitList(models)
	}
	if w := os.Getenv("HYDROFREQ_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			c.Pipeline.Workers = n
		}
	}
	if path := os.Getenv("HYDROFREQ_LEDGER"); path != "" {
		c.Ledger.Path = path
	}
	if level := os.Getenv("HYDROFREQ_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// requiredColumns must appear in Input.Columns.
var requiredColumns = []string{"Grid_ID", "Lon", "Lat", "Date", "SCI"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("no scenarios configured")
	}
	seen := make(map[string]bool, len(c.Scenarios))
	for i, s := range c.Scenarios {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("scenario %d: %w", i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate scenario name: %s", s.Name)
		}
		seen[s.Name] = true
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("no models configured")
	}
	for _, m := range c.Models {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("empty model name")
		}
	}

	for _, col := range requiredColumns {
		if !containsString(c.Input.Columns, col) {
			return fmt.Errorf("input columns must include %s (got %v)", col, c.Input.Columns)
		}
	}

	if err := c.ValidatePipeline(); err != nil {
		return err
	}

	if len(c.Thresholds) == 0 {
		return fmt.Errorf("no thresholds configured")
	}
	names := make(map[string]bool, len(c.Thresholds))
	for _, t := range c.Thresholds {
		if err := t.Validate(); err != nil {
			return err
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate threshold name: %s", t.Name)
		}
		names[t.Name] = true
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger enabled but ledger.path is empty")
	}

	return nil
}

// GetBatchTimeout returns the per-batch timeout, zero when disabled.
func (c *Config) GetBatchTimeout() time.Duration {
	if c.Pipeline.BatchTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Pipeline.BatchTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Scenario returns the named scenario.
func (c *Config) Scenario(name string) (ScenarioConfig, bool) {
	for _, s := range c.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return ScenarioConfig{}, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
