package observability

import (
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	reportsTotal    *prometheus.CounterVec
	dashboardsTotal prometheus.Counter
	configFallbacks *prometheus.CounterVec
	integrityErrors prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// engine metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "irpf_operation_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irpf_store_errors_total",
				Help: "Total failed reads against the ledger store.",
			},
			[]string{"query"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irpf_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irpf_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		reportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irpf_tax_reports_total",
				Help: "Tax reports computed, by situation.",
			},
			[]string{"situation"},
		),
		dashboardsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "irpf_dashboards_total",
				Help: "Dashboards computed.",
			},
		),
		configFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irpf_config_fallbacks_total",
				Help: "Requests served with the built-in tax configuration.",
			},
			[]string{"lookup"},
		),
		integrityErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "irpf_config_integrity_errors_total",
				Help: "Tax configurations found to violate bracket contiguity.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the failed store read counter.
func (m *Metrics) IncrStoreError(query string) {
	m.storeErrors.WithLabelValues(query).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrReport counts a completed tax report.
func (m *Metrics) IncrReport(situation string) {
	m.reportsTotal.WithLabelValues(situation).Inc()
}

// IncrDashboard counts a completed dashboard.
func (m *Metrics) IncrDashboard() {
	m.dashboardsTotal.Inc()
}

// IncrConfigFallback counts a lookup answered by the default configuration.
func (m *Metrics) IncrConfigFallback(lookup string) {
	m.configFallbacks.WithLabelValues(lookup).Inc()
}

// IncrIntegrityError counts a configuration integrity failure.
func (m *Metrics) IncrIntegrityError() {
	m.integrityErrors.Inc()
}

// Snapshot returns the cumulative counters in the shape served by
// GET /v1/metrics/engine.
func (m *Metrics) Snapshot() *domain.EngineMetrics {
	taxDue := counterValue(m.reportsTotal.WithLabelValues(domain.SituationTaxDue))
	exempt := counterValue(m.reportsTotal.WithLabelValues(domain.SituationExempt))
	hits := counterValue(m.cacheHits.WithLabelValues("tax_config"))
	misses := counterValue(m.cacheMisses.WithLabelValues("tax_config"))
	fallbacks := counterValue(m.configFallbacks.WithLabelValues("year")) +
		counterValue(m.configFallbacks.WithLabelValues("active"))

	reports := taxDue + exempt
	exemptRate := float64(0)
	if reports > 0 {
		exemptRate = exempt / reports
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.EngineMetrics{
		ReportsComputed:    int64(reports),
		ExemptReports:      int64(exempt),
		ExemptRate:         exemptRate,
		DashboardsComputed: int64(counterValue(m.dashboardsTotal)),
		ConfigFallbacks:    int64(fallbacks),
		IntegrityErrors:    int64(counterValue(m.integrityErrors)),
		CacheHitRate:       hitRate,
		Period:             "all_time",
	}
}

// counterValue extracts the current float64 value of a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
