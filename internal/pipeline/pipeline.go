// Package pipeline sequences the stages for each configured scenario:
// discovery, batch means, batch frequencies and the final merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"hydrofreq/internal/batch"
	"hydrofreq/internal/config"
	"hydrofreq/internal/frequency"
	"hydrofreq/internal/logging"
	"hydrofreq/internal/means"
	"hydrofreq/internal/merge"
	"hydrofreq/internal/outcome"
	"hydrofreq/internal/store"

	"go.uber.org/zap"
)

var (
	// ErrNoBatchSucceeded means every batch failed in the mean stage.
	ErrNoBatchSucceeded = errors.New("no batch produced a mean artifact")

	// ErrUnknownScenario is returned when a requested scenario is not
	// configured.
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Recorder receives run bookkeeping. *store.Ledger implements it.
type Recorder interface {
	StartRun(scenario string) (string, error)
	RecordOutcome(runID, stage string, o outcome.Outcome) error
	FinishRun(runID, output string, rows int, errMsg string) error
}

// Stages selects which parts of the pipeline to run.
type Stages struct {
	Means     bool
	Frequency bool // frequency aggregation plus the final merge
}

// AllStages runs everything.
var AllStages = Stages{Means: true, Frequency: true}

// ScenarioSummary reports one scenario's run.
type ScenarioSummary struct {
	Scenario  string
	RunID     string
	Batches   int
	Means     outcome.Report
	Frequency outcome.Report
	Output    string
	Rows      int
	Duration  time.Duration
	Err       error
}

// Fatal reports whether the scenario stopped with an error.
func (s ScenarioSummary) Fatal() bool { return s.Err != nil }

// Summary covers every scenario of one invocation.
type Summary struct {
	Scenarios []ScenarioSummary
}

// FatalCount counts scenarios that stopped with an error.
func (s Summary) FatalCount() int {
	n := 0
	for _, sc := range s.Scenarios {
		if sc.Fatal() {
			n++
		}
	}
	return n
}

// Pipeline runs scenarios from one configuration.
type Pipeline struct {
	cfg    *config.Config
	ledger Recorder
	logger *zap.Logger
}

// New builds a pipeline. ledger may be nil.
func New(cfg *config.Config, ledger Recorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, ledger: ledger, logger: logger}
}

// Select resolves scenario names; no names selects every scenario.
func (p *Pipeline) Select(names []string) ([]config.ScenarioConfig, error) {
	if len(names) == 0 {
		return p.cfg.Scenarios, nil
	}
	out := make([]config.ScenarioConfig, 0, len(names))
	for _, name := range names {
		sc, ok := p.cfg.Scenario(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
		}
		out = append(out, sc)
	}
	return out, nil
}

// Run processes the named scenarios in order. A fatal error in one
// scenario is recorded in its summary and the next scenario still runs.
func (p *Pipeline) Run(ctx context.Context, names []string, stages Stages) (Summary, error) {
	scenarios, err := p.Select(names)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scenarios = append(summary.Scenarios, p.RunScenario(ctx, sc, stages))
	}
	return summary, nil
}

// RunScenario runs the selected stages for one scenario.
func (p *Pipeline) RunScenario(ctx context.Context, sc config.ScenarioConfig, stages Stages) (s ScenarioSummary) {
	start := time.Now()
	log := p.logger.With(zap.String("scenario", sc.Name))
	s = ScenarioSummary{Scenario: sc.Name}

	s.RunID = p.startRun(log, sc.Name)
	defer func() {
		s.Duration = time.Since(start)
		errMsg := ""
		if s.Err != nil {
			errMsg = s.Err.Error()
			log.Error("scenario failed", zap.Error(s.Err))
		} else {
			log.Info("scenario complete", zap.String("output", s.Output), zap.Int("rows", s.Rows), zap.Duration("elapsed", s.Duration))
		}
		p.finishRun(log, s.RunID, s.Output, s.Rows, errMsg)
	}()

	if stages.Means {
		if s.Err = p.runMeans(ctx, log, sc, &s); s.Err != nil {
			return s
		}
	}
	if stages.Frequency {
		s.Err = p.runFrequency(ctx, log, sc, &s)
	}
	return s
}

func (p *Pipeline) runMeans(ctx context.Context, log *zap.Logger, sc config.ScenarioConfig, s *ScenarioSummary) error {
	ids, err := batch.Discover(sc.SourceDir, p.cfg.Models, logging.For(log, logging.CategoryDiscovery))
	if err != nil {
		return err
	}
	s.Batches = len(ids)

	reducer, err := means.NewReducer(p.cfg, sc, logging.For(log, logging.CategoryMeans))
	if err != nil {
		return err
	}
	reducer.OnDone = func(o outcome.Outcome) { p.record(log, s.RunID, store.StageMeans, o) }

	s.Means = reducer.Distribute(ctx, ids)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Means.AnySucceeded() {
		return fmt.Errorf("%w (%d batches)", ErrNoBatchSucceeded, len(ids))
	}
	return nil
}

func (p *Pipeline) runFrequency(ctx context.Context, log *zap.Logger, sc config.ScenarioConfig, s *ScenarioSummary) error {
	agg, err := frequency.NewAggregator(p.cfg, sc, logging.For(log, logging.CategoryFrequency))
	if err != nil {
		return err
	}
	agg.OnDone = func(o outcome.Outcome) { p.record(log, s.RunID, store.StageFrequency, o) }

	s.Frequency, err = agg.Run(ctx)
	if err != nil {
		return err
	}

	res, err := merge.NewMerger(p.cfg, sc, logging.For(log, logging.CategoryMerge)).Run()
	if err != nil {
		return err
	}
	s.Output = res.Output
	s.Rows = res.Rows

	if !p.cfg.Pipeline.KeepMeans {
		dir := p.cfg.MeansDir(sc)
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove batch means", zap.String("dir", dir), zap.Error(err))
		}
	}
	return nil
}

// Ledger failures are logged and never stop the pipeline.

func (p *Pipeline) startRun(log *zap.Logger, scenario string) string {
	if p.ledger == nil {
		return ""
	}
	id, err := p.ledger.StartRun(scenario)
	if err != nil {
		logging.For(log, logging.CategoryLedger).Warn("ledger unavailable", zap.Error(err))
		return ""
	}
	return id
}

func (p *Pipeline) record(log *zap.Logger, runID, stage string, o outcome.Outcome) {
	if p.ledger == nil || runID == "" {
		return
	}
	if err := p.ledger.RecordOutcome(runID, stage, o); err != nil {
		logging.For(log, logging.CategoryLedger).Warn("failed to record outcome", zap.String("batch", o.Batch), zap.Error(err))
	}
}

func (p *Pipeline) finishRun(log *zap.Logger, runID, output string, rows int, errMsg string) {
	if p.ledger == nil || runID == "" {
		return
	}
	if err := p.ledger.FinishRun(runID, output, rows, errMsg); err != nil {
		logging.For(log, logging.CategoryLedger).Warn("failed to finish run", zap.Error(err))
	}
}
