package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// EngineMetrics is returned by GET /v1/metrics/engine.
type EngineMetrics struct {
	ReportsComputed    int64   `json:"reportsComputed"`
	ExemptReports      int64   `json:"exemptReports"`
	ExemptRate         float64 `json:"exemptRate"`
	DashboardsComputed int64   `json:"dashboardsComputed"`
	ConfigFallbacks    int64   `json:"configFallbacks"`
	IntegrityErrors    int64   `json:"integrityErrors"`
	CacheHitRate       float64 `json:"cacheHitRate"`
	Period             string  `json:"period"`
}
