// Package merge reduces per-batch STAT artifacts into the scenario's final
// frequency table and removes the intermediates.
package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"hydrofreq/internal/artifact"
	"hydrofreq/internal/config"
	"hydrofreq/internal/frequency"
	"hydrofreq/internal/logging"

	"go.uber.org/zap"
)

var (
	// ErrNoArtifacts is returned when there is nothing to merge.
	ErrNoArtifacts = errors.New("no frequency artifacts to merge")

	// ErrMergeFailed is returned when the final table could not be
	// produced. Intermediates are left in place.
	ErrMergeFailed = errors.New("merge failed")
)

// Result summarises a completed merge.
type Result struct {
	Output string
	Inputs int
	Rows   int
	Table  *Table
}

// Merger writes one scenario's final frequency table.
type Merger struct {
	statsDir string
	output   string
	logger   *zap.Logger
}

// NewMerger builds the merger for scenario sc.
func NewMerger(cfg *config.Config, sc config.ScenarioConfig, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		statsDir: cfg.StatsDir(sc),
		output:   sc.OutputPath(),
		logger:   logger,
	}
}

// Output is the final table path.
func (m *Merger) Output() string { return m.output }

// Run concatenates every STAT artifact, sorts the rows by grid id and
// writes the final table. On success the STAT artifacts and their
// directory are deleted.
func (m *Merger) Run() (*Result, error) {
	timer := logging.StartTimer(m.logger, "merge")
	defer timer.StopWithInfo()

	names, err := artifact.List(m.statsDir, frequency.FilePrefix)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: failed to list %s: %v", ErrMergeFailed, m.statsDir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoArtifacts, m.statsDir)
	}

	var merged *Table
	for _, name := range names {
		t, err := ReadTable(filepath.Join(m.statsDir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
		}
		if merged == nil {
			merged = &Table{Thresholds: t.Thresholds}
		} else if !slices.Equal(merged.Thresholds, t.Thresholds) {
			return nil, fmt.Errorf("%w: %s has columns %v, expected %v", ErrMergeFailed, name, t.Thresholds, merged.Thresholds)
		}
		merged.Rows = append(merged.Rows, t.Rows...)
	}
	merged.SortByGrid()

	if err := WriteTable(m.output, merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}
	m.logger.Info("frequency table written",
		zap.String("path", m.output),
		zap.Int("inputs", len(names)),
		zap.Int("rows", len(merged.Rows)))

	if err := os.RemoveAll(m.statsDir); err != nil {
		m.logger.Warn("failed to remove stats dir", zap.String("dir", m.statsDir), zap.Error(err))
	}

	return &Result{Output: m.output, Inputs: len(names), Rows: len(merged.Rows), Table: merged}, nil
}
