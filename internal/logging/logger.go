// Package logging provides config-driven categorized logging for hydrofreq.
// Every pipeline stage logs through a child of one root zap logger, named
// after its category, so a run's output can be filtered per stage.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"hydrofreq/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/stage.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config
	CategoryDiscovery Category = "discovery" // Batch discovery
	CategoryLoader    Category = "loader"    // Raw file recovery
	CategoryMeans     Category = "means"     // Batch mean reducer
	CategoryFrequency Category = "frequency" // Frequency aggregation
	CategoryMerge     Category = "merge"     // Final merge and cleanup
	CategoryLedger    Category = "ledger"    // Run ledger
	CategoryDiagnose  Category = "diagnose"  // Grid coverage diagnostics
)

// New builds the root logger described by cfg. The returned cleanup
// closes any log file; call it after Sync at shutdown.
func New(cfg config.LoggingConfig) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = lvl
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "", "console", "text":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q (valid: json, console)", cfg.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}
	cleanup := func() {}
	if cfg.File != "" {
		sink, closeFile, err := zap.Open(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup = closeFile
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, sink, level))
	}

	core := NewCategoryFilter(zapcore.NewTee(cores...), cfg)

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.DebugMode {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}
	return zap.New(core, opts...), cleanup, nil
}

// For returns the category logger derived from l. A nil l yields a no-op
// logger so components can be constructed without logging in tests.
func For(l *zap.Logger, category Category) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(string(category))
}

// categoryFilter drops entries whose logger name contains a disabled
// category segment, so "means.loader" is silenced by disabling "loader".
type categoryFilter struct {
	zapcore.Core
	disabled map[string]bool
}

// NewCategoryFilter wraps core so that categories switched off in cfg are
// silenced.
func NewCategoryFilter(core zapcore.Core, cfg config.LoggingConfig) zapcore.Core {
	disabled := make(map[string]bool)
	for cat := range cfg.Categories {
		if !cfg.IsCategoryEnabled(cat) {
			disabled[cat] = true
		}
	}
	if len(disabled) == 0 {
		return core
	}
	return categoryFilter{Core: core, disabled: disabled}
}

func (f categoryFilter) With(fields []zapcore.Field) zapcore.Core {
	return categoryFilter{Core: f.Core.With(fields), disabled: f.disabled}
}

func (f categoryFilter) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	for _, name := range strings.Split(ent.LoggerName, ".") {
		if f.disabled[name] {
			return ce
		}
	}
	return f.Core.Check(ent, ce)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	logger *zap.Logger
	op     string
	start  time.Time
}

// StartTimer begins timing an operation
func StartTimer(l *zap.Logger, operation string) *Timer {
	if l == nil {
		l = zap.NewNop()
	}
	return &Timer{logger: l, op: operation, start: time.Now()}
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Info(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}
