package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/irpf-engine/internal/config"
	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/handler"
	"github.com/boddenberg/irpf-engine/internal/infra/cache"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/infra/resilience"
	"github.com/boddenberg/irpf-engine/internal/infra/sqlite"
	"github.com/boddenberg/irpf-engine/internal/infra/supabase"
	"github.com/boddenberg/irpf-engine/internal/port"
	"github.com/boddenberg/irpf-engine/internal/service"

	"go.uber.org/zap"
)

// ledger is a store the API can serve from.
type ledger interface {
	port.LedgerStore
	Ping(ctx context.Context) error
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("config_cache_ttl", cfg.ConfigCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint, "irpf-engine", cfg.TracingEnabled)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("ledger store not reachable at startup", zap.Error(err))
	}
	cancelPing()

	// --- Cache ---
	configCache := cache.New[*domain.TaxConfiguration](cfg.ConfigCacheTTL)
	defer configCache.Close()

	// --- Services ---
	configs := service.NewTaxConfigProvider(store, configCache, metrics, logger)
	transactions := service.NewTransactionAggregator(store, metrics, logger)
	reports := service.NewTaxReportService(store, store, transactions, configs, metrics, logger)
	dashboards := service.NewDashboardService(store, store, store, transactions, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Reports:    reports,
		Dashboards: dashboards,
		Configs:    configs,
		Store:      store,
	}, metrics, logger, handler.Options{
		RequestTimeout: cfg.RequestTimeout,
		JWTSecret:      cfg.JWTSecret,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openStore(cfg *config.Config, logger *zap.Logger) (ledger, error) {
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as ledger backend", zap.String("supabase_url", cfg.SupabaseURL))
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		return supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		), nil
	default:
		logger.Info("using SQLite as ledger backend", zap.String("path", cfg.SQLitePath))
		s, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
