// Package frequency counts, per grid cell, how many dates of a batch's
// ensemble mean cross each drought or flood threshold.
package frequency

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"hydrofreq/internal/artifact"
	"hydrofreq/internal/batch"
	"hydrofreq/internal/config"
	"hydrofreq/internal/loader"
	"hydrofreq/internal/logging"
	"hydrofreq/internal/means"
	"hydrofreq/internal/outcome"
	"hydrofreq/internal/record"

	"go.uber.org/zap"
)

// FilePrefix names per-batch frequency artifacts: STAT_{batch}.
const FilePrefix = "STAT_"

// Aggregate groups records by grid id and counts threshold hits. Lon and
// Lat are the first present values seen for each grid. Records without a
// grid id are skipped. The result is sorted by grid id.
func Aggregate(recs []record.GridRecord, ts []Threshold) (out []record.BatchFrequencyRecord, skipped int) {
	index := make(map[int64]int)
	for _, rec := range recs {
		if !rec.GridID.Valid {
			skipped++
			continue
		}
		i, ok := index[rec.GridID.Value]
		if !ok {
			i = len(out)
			index[rec.GridID.Value] = i
			out = append(out, record.BatchFrequencyRecord{
				GridID: rec.GridID.Value,
				Counts: make([]int, len(ts)),
			})
		}
		g := &out[i]
		if !g.Lon.Valid {
			g.Lon = rec.Lon
		}
		if !g.Lat.Valid {
			g.Lat = rec.Lat
		}
		for j, t := range ts {
			if t.Match(rec.SCI) {
				g.Counts[j]++
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GridID < out[j].GridID })
	return out, skipped
}

// Write persists frequency rows as a STAT artifact.
func Write(path string, ts []Threshold, rows []record.BatchFrequencyRecord) error {
	header := Header(ts)
	return artifact.WriteCSV(path, header, func(w *csv.Writer) error {
		line := make([]string, len(header))
		for _, r := range rows {
			line[0] = strconv.FormatInt(r.GridID, 10)
			line[1] = record.FormatFloat(r.Lon)
			line[2] = record.FormatFloat(r.Lat)
			for j := range ts {
				c := 0
				if j < len(r.Counts) {
					c = r.Counts[j]
				}
				line[3+j] = strconv.Itoa(c)
			}
			if err := w.Write(line); err != nil {
				return err
			}
		}
		return nil
	})
}

// Aggregator turns every TEMP_MEAN artifact of a scenario into a STAT
// artifact, one batch at a time.
type Aggregator struct {
	inDir      string
	outDir     string
	thresholds []Threshold
	logger     *zap.Logger

	// OnDone, when set, receives every finished outcome.
	OnDone func(outcome.Outcome)
}

// NewAggregator builds the aggregator for scenario sc.
func NewAggregator(cfg *config.Config, sc config.ScenarioConfig, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ts, err := Compile(cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	return &Aggregator{
		inDir:      cfg.MeansDir(sc),
		outDir:     cfg.StatsDir(sc),
		thresholds: ts,
		logger:     logger,
	}, nil
}

// Thresholds returns the compiled thresholds in column order.
func (a *Aggregator) Thresholds() []Threshold { return a.thresholds }

// OutDir is where STAT artifacts are written.
func (a *Aggregator) OutDir() string { return a.outDir }

// Run processes the TEMP_MEAN artifacts in batch order (grid range, then
// unparsed names). A failing artifact
// is logged and skipped. An error is returned only when the input
// directory cannot be listed or ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) (outcome.Report, error) {
	var report outcome.Report
	timer := logging.StartTimer(a.logger, "frequency")
	defer timer.StopWithInfo()

	names, err := artifact.List(a.inDir, means.FilePrefix)
	if err != nil {
		return report, fmt.Errorf("failed to list batch means: %w", err)
	}
	if len(names) == 0 {
		a.logger.Warn("no batch-mean artifacts", zap.String("dir", a.inDir))
		return report, nil
	}
	if err := os.MkdirAll(a.outDir, 0755); err != nil {
		return report, fmt.Errorf("failed to create stats dir: %w", err)
	}

	ids := make([]batch.ID, 0, len(names))
	for _, name := range names {
		id, _ := batch.Parse(artifact.BatchOf(name, means.FilePrefix))
		ids = append(ids, id)
	}
	batch.Sort(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		o := a.Process(filepath.Join(a.inDir, means.FilePrefix+id.Name))
		report.Outcomes = append(report.Outcomes, o)
	}

	a.logger.Info("frequency finished",
		zap.Int("artifacts", len(report.Outcomes)),
		zap.Int("failed", report.FailedCount()))
	return report, nil
}

// Process aggregates one TEMP_MEAN artifact.
func (a *Aggregator) Process(path string) outcome.Outcome {
	start := time.Now()
	batchName := artifact.BatchOf(filepath.Base(path), means.FilePrefix)
	out := outcome.Outcome{Batch: batchName, Kind: outcome.Success}
	log := a.logger.With(zap.String("batch", batchName))
	defer func() {
		out.Duration = time.Since(start)
		if !out.OK() {
			log.Warn("batch frequency skipped", zap.String("reason", out.Reason()))
		}
		if a.OnDone != nil {
			a.OnDone(out)
		}
	}()

	res, err := loader.Load(path, loader.MeanOptions(), logging.For(log, logging.CategoryLoader))
	if err != nil {
		out.Fail("failed to read: %v", err)
		return out
	}
	out.Rows = res.Rows
	out.Dropped = res.Dropped
	out.Recovered = res.Recovered
	if res.Dropped > 0 {
		out.Note("%d malformed rows dropped", res.Dropped)
	}

	rows, skipped := Aggregate(res.Records, a.thresholds)
	if skipped > 0 {
		out.Note("%d rows without grid id skipped", skipped)
	}
	out.Groups = len(rows)

	if err := Write(filepath.Join(a.outDir, FilePrefix+batchName), a.thresholds, rows); err != nil {
		out.Fail("failed to persist: %v", err)
		return out
	}
	log.Debug("batch frequency written", zap.Int("grids", len(rows)))
	return out
}
