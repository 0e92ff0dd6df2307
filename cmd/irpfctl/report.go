package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <userId>",
		Short: "Compute a user's annual income-tax report",
		Long: `Compute the IRPF report of one user for a fiscal year.

Without --year the current calendar year is used. The output is
deterministic: running it twice over the same ledger prints the same JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}

	cmd.Flags().Int("year", 0, "fiscal year (default: current year)")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	userID, err := parseUserArg(args[0])
	if err != nil {
		return err
	}
	year, _ := cmd.Flags().GetInt("year")

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.reports.ComputeTaxReport(cmd.Context(), userID, year)
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}
	return printJSON(cmd, report)
}
