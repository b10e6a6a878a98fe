package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// PipelineMetrics is returned by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	UpstreamErrors     map[string]float64 `json:"upstreamErrors"`
	SkippedConnections float64            `json:"skippedConnections"`
	DegradedAccounts   float64            `json:"degradedAccounts"`
	TruncatedSyncs     float64            `json:"truncatedSyncs"`
	CacheHitRate       float64            `json:"cacheHitRate"`
}

// ============================================================
// Dashboard
// ============================================================

// Dashboard is the home view: the signed-in user, the account aggregate and
// the selected account with one page of its merged feed.
type Dashboard struct {
	User         *User            `json:"user"`
	Accounts     *AccountsResult  `json:"accounts"`
	Selected     *Account         `json:"selected,omitempty"`
	Transactions *TransactionPage `json:"transactions,omitempty"`
	Degraded     bool             `json:"degraded,omitempty"`
}
