package observability

import (
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the account service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	requestsTotal     *prometheus.CounterVec
	balanceOperations *prometheus.CounterVec
	numberCollisions  prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry avoids "duplicate collector"
// panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accountsvc_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountsvc_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountsvc_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountsvc_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountsvc_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		balanceOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountsvc_balance_operations_total",
				Help: "Balance operations by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		numberCollisions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "accountsvc_number_collisions_total",
				Help: "Account/interbank number collisions detected at persistence.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrBalanceOperation counts one balance operation attempt.
func (m *Metrics) IncrBalanceOperation(opType, outcome string) {
	m.balanceOperations.WithLabelValues(opType, outcome).Inc()
}

// IncrNumberCollision counts one unique-index collision on save.
func (m *Metrics) IncrNumberCollision() {
	m.numberCollisions.Inc()
}

// GetServiceSnapshot returns the aggregate view served by
// GET /v1/metrics/service.
func (m *Metrics) GetServiceSnapshot() *domain.ServiceMetrics {
	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "eligibility") +
		getCounterValue(m.cacheHits, "credit_card")
	cacheMisses := getCounterValue(m.cacheMisses, "eligibility") +
		getCounterValue(m.cacheMisses, "credit_card")

	var balanceOps float64
	for _, typ := range []string{"DEPOSIT", "WITHDRAWAL", "TRANSFER_IN", "TRANSFER_OUT", "COMMISSION"} {
		balanceOps += getCounterValue(m.balanceOperations, typ, "applied")
	}

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.ServiceMetrics{
		TotalRequests:     int64(totalRequests),
		ErrorRate:         errorRate,
		CacheHitRate:      cacheHitRate,
		NumberCollisions:  int64(readCounter(m.numberCollisions)),
		BalanceOperations: int64(balanceOps),
		Period:            "all_time",
	}
}

// getCounterValue extracts the current value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	return readCounter(counter)
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
