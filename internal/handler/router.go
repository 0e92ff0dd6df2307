package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/port"
	"github.com/boddenberg/irpf-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups what the router serves.
type Services struct {
	Reports    *service.TaxReportService
	Dashboards *service.DashboardService
	Configs    *service.TaxConfigProvider
	// Store is pinged by /healthz. Nil skips the check.
	Store port.TaxConfigFinder
}

// Options tunes the router.
type Options struct {
	// RequestTimeout bounds each request. Zero disables the limit.
	RequestTimeout time.Duration
	// JWTSecret enables the bearer-token gate on per-user routes when set.
	JWTSecret string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Store, logger))
	r.Get("/readyz", readyzHandler(svc.Store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Per-user reads, optionally behind the bearer gate.
		r.Group(func(r chi.Router) {
			if opts.JWTSecret != "" {
				r.Use(BearerAuthMiddleware(opts.JWTSecret, logger))
			}
			r.Get("/ir/calculate/{userId}", taxReportHandler(svc.Reports, logger))
			r.Get("/dashboard/{userId}", dashboardHandler(svc.Dashboards, logger))
		})

		r.Get("/ir/config", activeConfigHandler(svc.Configs, logger))
		r.Get("/ir/config/{year}", yearConfigHandler(svc.Configs, logger))

		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

// readinessChecker is implemented by stores that can refuse traffic,
// e.g. while a circuit breaker is open.
type readinessChecker interface {
	Ready() error
}

func readyzHandler(store port.TaxConfigFinder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rc, ok := store.(readinessChecker); ok {
			if err := rc.Ready(); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func healthzHandler(store port.TaxConfigFinder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "irpf-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			_, err := store.FindActiveTaxConfiguration(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				logger.Warn("health check: store unreachable", zap.Error(err))
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "ledger-store", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
