package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/cache"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/infra/sqlite"
	"github.com/boddenberg/irpf-engine/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// engine wires the services against the SQLite ledger for one command.
type engine struct {
	store      *sqlite.Store
	cache      *cache.InMemory[*domain.TaxConfiguration]
	configs    *service.TaxConfigProvider
	reports    *service.TaxReportService
	dashboards *service.DashboardService
	logger     *zap.Logger
}

func newLogger() *zap.Logger {
	return observability.NewLogger(viper.GetString("log_level"))
}

func openStore(logger *zap.Logger) (*sqlite.Store, error) {
	path := viper.GetString("sqlite_path")
	store, err := sqlite.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	return store, nil
}

func openEngine() (*engine, error) {
	logger := newLogger()
	store, err := openStore(logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	configCache := cache.New[*domain.TaxConfiguration](viper.GetDuration("config_cache_ttl"))
	configs := service.NewTaxConfigProvider(store, configCache, metrics, logger)
	transactions := service.NewTransactionAggregator(store, metrics, logger)

	return &engine{
		store:      store,
		cache:      configCache,
		configs:    configs,
		reports:    service.NewTaxReportService(store, store, transactions, configs, metrics, logger),
		dashboards: service.NewDashboardService(store, store, store, transactions, metrics, logger),
		logger:     logger,
	}, nil
}

func (e *engine) Close() {
	e.cache.Close()
	_ = e.store.Close()
	_ = e.logger.Sync()
}

func parseUserArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: must be an integer", arg)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
