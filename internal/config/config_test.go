package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "hydrofreq" {
		t.Errorf("expected Name=hydrofreq, got %s", cfg.Name)
	}
	assert.Len(t, cfg.Scenarios, 3)
	assert.Equal(t, DefaultModels, cfg.Models)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.True(t, cfg.Input.SkipFirstLine)
	assert.Len(t, cfg.Thresholds, 4)
	require.NoError(t, cfg.Validate())

	// Mutating the returned model list must not leak into the defaults.
	cfg.Models[0] = "changed"
	assert.Equal(t, "h08", DefaultModels[0])
}

func TestConfig_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "hydrofreq.yaml")

	cfg := DefaultConfig()
	cfg.Models = []string{"h08", "jules-w2"}
	cfg.Pipeline.Workers = 4
	cfg.Pipeline.BatchTimeout = "90s"
	cfg.Scenarios = []ScenarioConfig{{Name: "obsclim-histsoc", SourceDir: "/data/obs", OutputDir: "/out"}}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Models, loaded.Models)
	assert.Equal(t, 4, loaded.Pipeline.Workers)
	assert.Equal(t, 90*time.Second, loaded.GetBatchTimeout())
	assert.Equal(t, cfg.Scenarios, loaded.Scenarios)
	assert.Equal(t, cfg.Thresholds, loaded.Thresholds)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Models, cfg.Models)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydrofreq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: [h08]\npipeline:\n  workers: 3\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"h08"}, cfg.Models)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, "TEMP_MEANS", cfg.Pipeline.MeansDir)
	assert.Len(t, cfg.Scenarios, 3)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydrofreq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: [h08\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no scenarios", func(c *Config) { c.Scenarios = nil }},
		{"duplicate scenario", func(c *Config) { c.Scenarios = append(c.Scenarios, c.Scenarios[0]) }},
		{"scenario with separator", func(c *Config) { c.Scenarios[0].Name = "a/b" }},
		{"scenario without source", func(c *Config) { c.Scenarios[0].SourceDir = "" }},
		{"no models", func(c *Config) { c.Models = nil }},
		{"blank model", func(c *Config) { c.Models = []string{" "} }},
		{"missing SCI column", func(c *Config) { c.Input.Columns = []string{"Grid_ID", "Lon", "Lat", "Date"} }},
		{"zero batch width", func(c *Config) { c.Pipeline.BatchWidth = 0 }},
		{"same intermediate dirs", func(c *Config) { c.Pipeline.StatsDir = c.Pipeline.MeansDir }},
		{"bad timeout", func(c *Config) { c.Pipeline.BatchTimeout = "soon" }},
		{"no thresholds", func(c *Config) { c.Thresholds = nil }},
		{"bad op", func(c *Config) { c.Thresholds[0].Op = "eq" }},
		{"coordinate threshold name", func(c *Config) { c.Thresholds[0].Name = "Lat" }},
		{"duplicate threshold", func(c *Config) { c.Thresholds[1].Name = c.Thresholds[0].Name }},
		{"ledger without path", func(c *Config) { c.Ledger.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEffectiveWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Workers = 0
	assert.Equal(t, 1, cfg.EffectiveWorkers())
	cfg.Pipeline.Workers = -3
	assert.Equal(t, 1, cfg.EffectiveWorkers())
	cfg.Pipeline.Workers = 6
	assert.Equal(t, 6, cfg.EffectiveWorkers())
}

func TestScenarioPaths(t *testing.T) {
	cfg := DefaultConfig()
	sc := ScenarioConfig{Name: "obsclim-histsoc", SourceDir: "/data/obs"}
	assert.Equal(t, filepath.Join("/data/obs", "obsclim-histsoc_FREQUENCY_STATS.csv"), sc.OutputPath())
	assert.Equal(t, filepath.Join("/data/obs", "TEMP_MEANS"), cfg.MeansDir(sc))
	assert.Equal(t, filepath.Join("/data/obs", "TEMP_STATS"), cfg.StatsDir(sc))

	sc.OutputDir = "/out"
	assert.Equal(t, filepath.Join("/out", "TEMP_MEANS"), cfg.MeansDir(sc))

	got, ok := cfg.Scenario("countclim-1901soc")
	require.True(t, ok)
	assert.Equal(t, "data/countclim-1901soc", got.SourceDir)
	_, ok = cfg.Scenario("missing")
	assert.False(t, ok)
}

func TestIsCategoryEnabled(t *testing.T) {
	cfg := LoggingConfig{}
	assert.True(t, cfg.IsCategoryEnabled("means"))

	cfg.Categories = map[string]bool{"means": false, "merge": true}
	assert.False(t, cfg.IsCategoryEnabled("means"))
	assert.True(t, cfg.IsCategoryEnabled("merge"))
	assert.True(t, cfg.IsCategoryEnabled("ledger"))
}
