package means

import (
	"context"

	"hydrofreq/internal/batch"
	"hydrofreq/internal/logging"
	"hydrofreq/internal/outcome"
	"hydrofreq/internal/pool"

	"go.uber.org/zap"
)

// Distribute reduces every batch on the reducer's worker pool. Outcomes
// are returned in the order of ids. Batches never started because ctx was
// cancelled are reported as failed.
func (r *Reducer) Distribute(ctx context.Context, ids []batch.ID) outcome.Report {
	timer := logging.StartTimer(r.logger, "batch means")
	r.logger.Info("distributing batches", zap.Int("batches", len(ids)), zap.Int("workers", r.workers))

	results, err := pool.Run(ctx, r.workers, ids, func(ctx context.Context, _ int, id batch.ID) outcome.Outcome {
		return r.Reduce(ctx, id)
	})
	if err != nil {
		r.logger.Warn("batch distribution interrupted", zap.Error(err))
		for i := range results {
			if results[i].Batch == "" {
				results[i] = outcome.Outcome{Batch: ids[i].Name, Kind: outcome.Failed}
				results[i].Fail("not started: %v", err)
			}
		}
	}

	report := outcome.Report{Outcomes: results}
	timer.StopWithInfo()
	r.logger.Info("batch means finished",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.FailedCount()))
	return report
}
