package main

import (
	"fmt"
	"os"

	"hydrofreq/internal/store"

	"github.com/spf13/cobra"
)

// statusCmd shows the latest run per scenario
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest run of each scenario from the run ledger",
	Args:  cobra.NoArgs,
	RunE:  showStatus,
}

func showStatus(cmd *cobra.Command, args []string) error {
	if !cfg.Ledger.Enabled {
		return fmt.Errorf("run ledger is disabled (ledger.enabled: false)")
	}
	if _, err := os.Stat(cfg.Ledger.Path); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded yet (%s).\n", cfg.Ledger.Path)
		return nil
	}

	ledger, err := store.NewLedger(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.LatestRuns()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStatus(runs))
	return nil
}
