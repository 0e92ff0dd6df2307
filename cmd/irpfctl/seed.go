package main

import (
	"fmt"

	"github.com/boddenberg/irpf-engine/internal/infra/sqlite"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the ledger with demo data",
		Long: `Wipe the ledger and write ten demo users with accounts, categories and
random transactions, plus an active tax configuration for --year.

The same --rand-seed always produces the same ledger.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}

	cmd.Flags().Int("year", 2024, "fiscal year of the generated transactions")
	cmd.Flags().Int("transactions", 20, "transactions per user")
	cmd.Flags().Int64("rand-seed", 1, "random seed")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	year, _ := cmd.Flags().GetInt("year")
	perUser, _ := cmd.Flags().GetInt("transactions")
	randSeed, _ := cmd.Flags().GetInt64("rand-seed")

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	store, err := openStore(logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	res, err := store.Seed(cmd.Context(), sqlite.SeedOptions{
		Year:                year,
		TransactionsPerUser: perUser,
		RandSeed:            randSeed,
	})
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return printJSON(cmd, res)
}
