package main

import (
	"fmt"
	"os"

	"hydrofreq/internal/config"
	"hydrofreq/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	scenarios  []string
	workers    int

	// Loaded in PersistentPreRunE
	cfg        *config.Config
	logger     *zap.Logger
	logCleanup func()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hydrofreq",
	Short: "hydrofreq - ensemble drought and flood frequency pipeline",
	Long: `hydrofreq turns per-model, per-grid-batch CSV series of a standardized
climate index into one drought/flood frequency table per forcing scenario.

Pipeline per scenario:
  1. Discovery: union of batch files across all models
  2. Means: multi-model ensemble mean per (grid, lon, lat, date), in parallel
  3. Frequency: per-grid threshold crossing counts per batch
  4. Merge: one sorted {scenario}_FREQUENCY_STATS.csv, intermediates removed`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if workers > 0 {
			cfg.Pipeline.Workers = workers
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, logCleanup, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.For(logger, logging.CategoryBoot).Debug("config loaded",
			zap.String("path", configPath),
			zap.Int("scenarios", len(cfg.Scenarios)),
			zap.Int("models", len(cfg.Models)))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		if logCleanup != nil {
			logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "Config file (defaults apply when absent)")
	rootCmd.PersistentFlags().StringSliceVarP(&scenarios, "scenario", "s", nil, "Limit to these scenarios (repeatable)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Override pipeline.workers")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(meansCmd)
	rootCmd.AddCommand(frequencyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
