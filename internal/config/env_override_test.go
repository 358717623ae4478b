package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HYDROFREQ_SOURCE_DIR", "/data/obsclim-histsoc/")
	t.Setenv("HYDROFREQ_MODELS", "h08, jules-w2 ,,")
	t.Setenv("HYDROFREQ_WORKERS", "5")
	t.Setenv("HYDROFREQ_LEDGER", "/tmp/ledger.db")
	t.Setenv("HYDROFREQ_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	require.Len(t, cfg.Scenarios, 1)
	assert.Equal(t, "obsclim-histsoc", cfg.Scenarios[0].Name)
	assert.Equal(t, "/data/obsclim-histsoc/", cfg.Scenarios[0].SourceDir)
	assert.Equal(t, []string{"h08", "jules-w2"}, cfg.Models)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, "/tmp/ledger.db", cfg.Ledger.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides_ScenarioName(t *testing.T) {
	t.Setenv("HYDROFREQ_SOURCE_DIR", "/data/run-7")
	t.Setenv("HYDROFREQ_SCENARIO", "countclim-1901soc")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "countclim-1901soc", cfg.Scenarios[0].Name)
}

func TestEnvOverrides_BadWorkersIgnored(t *testing.T) {
	t.Setenv("HYDROFREQ_WORKERS", "many")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
}
