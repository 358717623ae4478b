package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hydrofreq/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	l, cleanup, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: logPath})
	require.NoError(t, err)

	For(l, CategoryMeans).Info("batch complete", zap.String("batch", "grids_1_160.csv"))
	_ = l.Sync()
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"means"`)
	assert.Contains(t, string(data), "grids_1_160.csv")
}

func TestNew_RejectsBadSettings(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestCategoryFilter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := config.LoggingConfig{Categories: map[string]bool{"loader": false, "means": true}}
	l := zap.New(NewCategoryFilter(core, cfg))

	For(l, CategoryLoader).Warn("dropped row")
	For(l, CategoryLoader).Named("h08").Warn("dropped row again")
	For(For(l, CategoryMeans), CategoryLoader).Warn("nested loader")
	For(l, CategoryMeans).Info("kept")
	For(l, CategoryMerge).Info("kept too")

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"kept", "kept too"}, msgs)
}

func TestFor_NilLogger(t *testing.T) {
	l := For(nil, CategoryBoot)
	require.NotNil(t, l)
	l.Info("discarded")
}

func TestTimer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	elapsed := StartTimer(l, "frequency").StopWithInfo()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.True(t, strings.HasPrefix(entry.Message, "frequency"))
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}
