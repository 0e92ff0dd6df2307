package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard <userId>",
		Short: "Summarize a user's ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserArg(args[0])
			if err != nil {
				return err
			}

			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			summary, err := e.dashboards.ComputeDashboard(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("dashboard failed: %w", err)
			}
			return printJSON(cmd, summary)
		},
	}
}
