package observability

import (
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Upstream services reported in the upstream error counter.
var upstreamServices = []string{"plaid/accounts", "plaid/institutions", "plaid/transactions", "store/banks", "store/transfers"}

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	upstreamErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	skippedConnections prometheus.Counter
	degradedAccounts   prometheus.Counter
	truncatedSyncs     prometheus.Counter
	syncedTransactions prometheus.Histogram
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_upstream_errors_total",
				Help: "Total errors from upstream providers and stores.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		skippedConnections: factory.NewCounter(prometheus.CounterOpts{
			Name: "bfa_skipped_connections_total",
			Help: "Linked banks left out of an account aggregate.",
		}),
		degradedAccounts: factory.NewCounter(prometheus.CounterOpts{
			Name: "bfa_degraded_accounts_total",
			Help: "Account details served without institution metadata.",
		}),
		truncatedSyncs: factory.NewCounter(prometheus.CounterOpts{
			Name: "bfa_truncated_syncs_total",
			Help: "Transaction syncs stopped early by an error or the page guard.",
		}),
		syncedTransactions: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bfa_synced_transactions",
			Help:    "Transactions returned per sync.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrUpstreamError increments the upstream error counter.
func (m *Metrics) IncrUpstreamError(service string) {
	m.upstreamErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrSkippedConnection() { m.skippedConnections.Inc() }
func (m *Metrics) IncrDegradedAccount()   { m.degradedAccounts.Inc() }
func (m *Metrics) IncrTruncatedSync()     { m.truncatedSyncs.Inc() }

// ObserveSyncedTransactions records how many transactions one sync produced.
func (m *Metrics) ObserveSyncedTransactions(n int) {
	m.syncedTransactions.Observe(float64(n))
}

// Snapshot returns the current counter values for GET /v1/metrics/pipeline.
func (m *Metrics) Snapshot() *domain.PipelineMetrics {
	errs := make(map[string]float64, len(upstreamServices))
	for _, svc := range upstreamServices {
		errs[svc] = getCounterValue(m.upstreamErrors.WithLabelValues(svc))
	}

	hits := getCounterValue(m.cacheHits.WithLabelValues("institutions"))
	misses := getCounterValue(m.cacheMisses.WithLabelValues("institutions"))
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.PipelineMetrics{
		UpstreamErrors:     errs,
		SkippedConnections: getCounterValue(m.skippedConnections),
		DegradedAccounts:   getCounterValue(m.degradedAccounts),
		TruncatedSyncs:     getCounterValue(m.truncatedSyncs),
		CacheHitRate:       hitRate,
	}
}

// getCounterValue extracts the current float64 value of a counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
