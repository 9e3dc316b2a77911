package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Mode     string          `json:"mode"`   // mock, live
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Detail      string `json:"detail,omitempty"`
}

// LookupMetrics is returned by GET /v1/metrics/lookups.
type LookupMetrics struct {
	TotalLookups     int64   `json:"totalLookups"`
	Resolved         int64   `json:"resolved"`
	NotFound         int64   `json:"notFound"`
	ProviderFailures int64   `json:"providerFailures"`
	FailureRate      float64 `json:"failureRate"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	ReceiptsCreated  int64   `json:"receiptsCreated"`
	FeesCollected    float64 `json:"feesCollected"`
	Period           string  `json:"period"`
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}
