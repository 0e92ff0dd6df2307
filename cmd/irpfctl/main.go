package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/boddenberg/irpf-engine/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "irpfctl",
		Short: "IRPF engine command line",
		Long: `irpfctl computes annual income-tax reports and dashboards straight from
the SQLite ledger, and maintains that ledger (migrations and demo data).

Every command prints JSON to stdout; logs go to stderr.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	// Global flags
	root.PersistentFlags().String("db", "data/irpf.db", "SQLite ledger path")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("sqlite_path", root.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	// Add commands
	root.AddCommand(reportCmd())
	root.AddCommand(dashboardCmd())
	root.AddCommand(configCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(versionCmd())

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig layers flags over IRPF_* environment variables over .env.
func initConfig(_ *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	viper.SetEnvPrefix("IRPF")
	viper.AutomaticEnv()
	viper.SetDefault("config_cache_ttl", "1m")

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, map[string]string{"version": version})
		},
	}
}
