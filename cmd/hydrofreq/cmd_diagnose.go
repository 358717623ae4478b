package main

import (
	"fmt"

	"hydrofreq/internal/diagnose"
	"hydrofreq/internal/logging"

	"github.com/spf13/cobra"
)

// diagnoseCmd finds grids missing from one scenario's table
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [reference] [candidate]",
	Short: "List grids and batches missing from a frequency table",
	Long: `Compares a complete frequency table (reference) against one with gaps
(candidate) and lists the batch files that must be regenerated. Each
argument is either a configured scenario name or a path to a table.

Example:
  hydrofreq diagnose obsclim-histsoc countclim-histsoc`,
	Args: cobra.ExactArgs(2),
	RunE: runDiagnose,
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ref, cand := resolveTable(args[0]), resolveTable(args[1])
	report, err := diagnose.Compare(ref, cand, cfg.Pipeline.BatchWidth, logging.For(logger, logging.CategoryDiagnose))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderDiagnosis(report))
	return nil
}

// resolveTable maps a scenario name to its final table path.
func resolveTable(arg string) string {
	if sc, ok := cfg.Scenario(arg); ok {
		return sc.OutputPath()
	}
	return arg
}
