package main

import (
	"fmt"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the tax configuration in effect",
		Long: `Show the tax configuration for --year, or the active one when no year
is given. When nothing is stored the built-in default is printed with
is_default set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, _ := cmd.Flags().GetInt("year")

			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			var cfg *domain.TaxConfiguration
			if year == 0 {
				cfg, err = e.configs.ActiveConfig(cmd.Context())
			} else {
				cfg, err = e.configs.ConfigFor(cmd.Context(), year)
			}
			if err != nil {
				return fmt.Errorf("config lookup failed: %w", err)
			}
			return printJSON(cmd, cfg)
		},
	}

	cmd.Flags().Int("year", 0, "fiscal year (default: active configuration)")

	return cmd
}
