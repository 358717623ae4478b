package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hydrofreq/internal/logging"
	"hydrofreq/internal/pipeline"
	"hydrofreq/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// meansCmd computes batch means only
var meansCmd = &cobra.Command{
	Use:   "means",
	Short: "Compute per-batch ensemble means (TEMP_MEANS)",
	Long: `Discovers batch files for every model and writes one TEMP_MEAN artifact
per batch. Absent or malformed model files are skipped with a warning; a
batch fails only when no model has data for it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, pipeline.Stages{Means: true})
	},
}

// frequencyCmd aggregates existing batch means and merges
var frequencyCmd = &cobra.Command{
	Use:   "frequency",
	Short: "Count threshold events from TEMP_MEANS and write the final table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, pipeline.Stages{Frequency: true})
	},
}

// runCmd runs the whole pipeline
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run means, frequency and merge for each scenario",
	Long: `Runs the full pipeline for every configured scenario (or those given
with --scenario). A scenario that fails does not stop the next one; the
command exits non-zero if any scenario failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, pipeline.AllStages)
	},
}

func runStages(cmd *cobra.Command, stages pipeline.Stages) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := openLedger()
	if ledger != nil {
		defer ledger.Close()
	}

	var rec pipeline.Recorder
	if ledger != nil {
		rec = ledger
	}
	p := pipeline.New(cfg, rec, logger)

	summary, err := p.Run(ctx, scenarios, stages)
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	if err != nil {
		return err
	}
	if n := summary.FatalCount(); n > 0 {
		return fmt.Errorf("%d of %d scenarios failed", n, len(summary.Scenarios))
	}
	return nil
}

// openLedger returns nil when the ledger is disabled or cannot be opened.
func openLedger() *store.Ledger {
	if !cfg.Ledger.Enabled {
		return nil
	}
	ledger, err := store.NewLedger(cfg.Ledger.Path)
	if err != nil {
		logging.For(logger, logging.CategoryLedger).Warn("run ledger disabled", zap.String("path", cfg.Ledger.Path), zap.Error(err))
		return nil
	}
	return ledger
}
