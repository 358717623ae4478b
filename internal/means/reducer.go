// Package means computes per-batch multi-model ensemble means of the
// standardized index and persists one TEMP_MEAN artifact per batch.
package means

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"time"

	"hydrofreq/internal/artifact"
	"hydrofreq/internal/batch"
	"hydrofreq/internal/config"
	"hydrofreq/internal/loader"
	"hydrofreq/internal/logging"
	"hydrofreq/internal/outcome"
	"hydrofreq/internal/record"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// FilePrefix names batch-mean artifacts: TEMP_MEAN_{batch}.
const FilePrefix = "TEMP_MEAN_"

// Header is the column layout of a batch-mean artifact.
var Header = loader.MeanColumns

// State is a step of the per-batch state machine.
type State string

const (
	StateStart     State = "start"
	StateLoading   State = "loading"
	StateMerged    State = "merged"
	StateGrouped   State = "grouped"
	StatePersisted State = "persisted"
	StateFailed    State = "failed"
)

var (
	// ErrNoModels means no model contributed any record to a batch.
	ErrNoModels = errors.New("no model produced records for batch")
)

// Reducer turns raw model files into batch-mean artifacts for one
// scenario. It is safe for concurrent use by pool workers.
type Reducer struct {
	sourceDir string
	outDir    string
	models    []string
	opts      loader.Options
	timeout   time.Duration
	workers   int
	logger    *zap.Logger
	load      func(ctx context.Context, path string, opts loader.Options, logger *zap.Logger) (*loader.Result, error)

	// OnDone, when set, receives every finished outcome from the worker
	// that produced it.
	OnDone func(outcome.Outcome)
}

// NewReducer builds the reducer for scenario sc.
func NewReducer(cfg *config.Config, sc config.ScenarioConfig, logger *zap.Logger) (*Reducer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := loader.NewSchema(cfg.Input.Columns, "SCI")
	if err != nil {
		return nil, fmt.Errorf("failed to build input schema: %w", err)
	}
	opts := loader.RawOptions(schema)
	opts.SkipFirstLine = cfg.Input.SkipFirstLine

	return &Reducer{
		sourceDir: sc.SourceDir,
		outDir:    cfg.MeansDir(sc),
		models:    append([]string(nil), cfg.Models...),
		opts:      opts,
		timeout:   cfg.GetBatchTimeout(),
		workers:   cfg.EffectiveWorkers(),
		logger:    logger,
		load:      loader.LoadContext,
	}, nil
}

// OutDir is where artifacts are written.
func (r *Reducer) OutDir() string { return r.outDir }

// ArtifactPath is the TEMP_MEAN file for id.
func (r *Reducer) ArtifactPath(id batch.ID) string {
	return filepath.Join(r.outDir, FilePrefix+id.Name)
}

// Reduce processes one batch. It never panics and never returns an error;
// every failure is reported through the outcome.
func (r *Reducer) Reduce(ctx context.Context, id batch.ID) (out outcome.Outcome) {
	start := time.Now()
	out = outcome.Outcome{Batch: id.Name, Kind: outcome.Success}
	log := r.logger.With(zap.String("batch", id.Name))
	loadLog := logging.For(log, logging.CategoryLoader)
	state := StateStart

	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while reducing batch", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			out.Fail("panic in state %s: %v", state, p)
		}
		out.Duration = time.Since(start)
		if !out.OK() {
			state = StateFailed
			log.Warn("batch failed", zap.String("reason", out.Reason()))
		}
		log.Debug("batch state", zap.String("state", string(state)), zap.Duration("elapsed", out.Duration))
		if r.OnDone != nil {
			r.OnDone(out)
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// LOADING
	state = StateLoading
	log.Debug("batch state", zap.String("state", string(state)))
	var parts [][]record.GridRecord
	for _, model := range r.models {
		if err := ctx.Err(); err != nil {
			out.Fail("interrupted while loading: %v", err)
			return out
		}
		path := filepath.Join(r.sourceDir, batch.FileName(model, id))
		res, err := r.load(ctx, path, r.opts, loadLog.With(zap.String("model", model)))
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warn("model file absent", zap.String("model", model), zap.String("path", path))
			out.ModelsAbsent = append(out.ModelsAbsent, model)
			out.Note("%s absent", model)
			continue
		case ctx.Err() != nil:
			out.Fail("interrupted while loading %s: %v", model, ctx.Err())
			return out
		case err != nil:
			log.Warn("model file unreadable", zap.String("model", model), zap.Error(err))
			out.ModelsAbsent = append(out.ModelsAbsent, model)
			out.Note("%s unreadable: %v", model, err)
			continue
		}

		out.Rows += res.Rows
		out.Dropped += res.Dropped
		out.Recovered += res.Recovered
		if res.Dropped > 0 {
			out.Note("%s: %d malformed rows dropped", model, res.Dropped)
		}
		if len(res.Records) == 0 {
			log.Warn("model file has no records", zap.String("model", model))
			out.Note("%s has no records", model)
			continue
		}
		out.ModelsUsed = append(out.ModelsUsed, model)
		parts = append(parts, res.Records)
	}
	if len(parts) == 0 {
		out.Fail("%v", ErrNoModels)
		return out
	}

	// MERGED
	state = StateMerged
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	log.Debug("batch state", zap.String("state", string(state)), zap.Int("records", n), zap.Int("models", len(parts)))

	// GROUPED
	state = StateGrouped
	means, excluded := Group(parts...)
	out.Groups = len(means)
	if excluded > 0 {
		log.Debug("records with missing key excluded", zap.Int("count", excluded))
	}
	log.Debug("batch state", zap.String("state", string(state)), zap.Int("groups", len(means)))

	if err := ctx.Err(); err != nil {
		out.Fail("interrupted before persisting: %v", err)
		return out
	}

	// PERSISTED
	if err := Write(r.ArtifactPath(id), means); err != nil {
		out.Fail("failed to persist: %v", err)
		return out
	}
	state = StatePersisted
	log.Info("batch mean written",
		zap.Int("groups", len(means)),
		zap.Strings("models", out.ModelsUsed),
		zap.Int("dropped", out.Dropped),
		zap.Int("recovered", out.Recovered))
	return out
}

// Group averages SCI per (grid id, lon, lat, date) across all parts.
// Records with any missing key component are excluded and counted. A
// group whose SCI values are all missing gets a missing mean. The result
// is sorted by key.
func Group(parts ...[]record.GridRecord) (means []record.BatchMeanRecord, excluded int) {
	type acc struct {
		values []float64
	}
	groups := make(map[record.MeanKey]*acc)
	for _, part := range parts {
		for _, rec := range part {
			key, ok := rec.Key()
			if !ok {
				excluded++
				continue
			}
			g := groups[key]
			if g == nil {
				g = &acc{}
				groups[key] = g
			}
			if rec.SCI.Valid {
				g.values = append(g.values, rec.SCI.Value)
			}
		}
	}

	means = make([]record.BatchMeanRecord, 0, len(groups))
	for key, g := range groups {
		m := record.BatchMeanRecord{MeanKey: key}
		if len(g.values) > 0 {
			m.MeanSCI = record.SomeFloat(stat.Mean(g.values, nil))
		}
		means = append(means, m)
	}
	sort.Slice(means, func(i, j int) bool { return means[i].MeanKey.Less(means[j].MeanKey) })
	return means, excluded
}

// Write persists means as a TEMP_MEAN artifact.
func Write(path string, means []record.BatchMeanRecord) error {
	return artifact.WriteCSV(path, Header, func(w *csv.Writer) error {
		row := make([]string, len(Header))
		for _, m := range means {
			row[0] = record.FormatInt(record.SomeInt(m.GridID))
			row[1] = record.FormatFloat(record.SomeFloat(m.Lon))
			row[2] = record.FormatFloat(record.SomeFloat(m.Lat))
			row[3] = m.Date
			row[4] = record.FormatFloat(m.MeanSCI)
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}
