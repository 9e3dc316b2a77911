package observability

import (
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

// Lookup outcomes used as the "outcome" label.
const (
	OutcomeResolved        = "resolved"
	OutcomeNotFound        = "not_found"
	OutcomeProviderFailure = "provider_failure"
	OutcomeConfiguration   = "configuration"
)

// Metrics holds all Prometheus metrics for the agent backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	lookupDuration  *prometheus.HistogramVec
	lookupsTotal    *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	receiptsCreated *prometheus.CounterVec
	feesCollected   prometheus.Counter
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
				Name:    "agent_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lookupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_lookup_duration_seconds",
				Help:    "Duration of identity lookups, cache hits included.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 12},
			},
			[]string{"kind"},
		),
		lookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_lookups_total",
				Help: "Identity lookups by kind (dni, ruc) and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		receiptsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_receipts_created_total",
				Help: "Receipts created by bank and movement type.",
			},
			[]string{"bank", "movement"},
		),
		feesCollected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_fees_collected_total",
				Help: "Sum of fees on created receipts, in base currency units.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordLookup counts one lookup and observes its latency.
func (m *Metrics) RecordLookup(kind, outcome string, d time.Duration) {
	m.lookupsTotal.WithLabelValues(kind, outcome).Inc()
	m.lookupDuration.WithLabelValues(kind).Observe(d.Seconds())
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

// RecordReceipt counts a created receipt and adds its fee.
func (m *Metrics) RecordReceipt(bank domain.Bank, movement domain.MovementType, fee decimal.Decimal) {
	m.receiptsCreated.WithLabelValues(string(bank), string(movement)).Inc()
	m.feesCollected.Add(fee.InexactFloat64())
}

// GetLookupSnapshot returns a snapshot suitable for the
// GET /v1/metrics/lookups endpoint.
func (m *Metrics) GetLookupSnapshot() *domain.LookupMetrics {
	// Prometheus counters expose cumulative values since process start.
	resolved := sumCounterVec(m.lookupsTotal, "outcome", OutcomeResolved)
	notFound := sumCounterVec(m.lookupsTotal, "outcome", OutcomeNotFound)
	failures := sumCounterVec(m.lookupsTotal, "outcome", OutcomeProviderFailure) +
		sumCounterVec(m.lookupsTotal, "outcome", OutcomeConfiguration)
	total := sumCounterVec(m.lookupsTotal, "", "")
	cacheHits := sumCounterVec(m.cacheHits, "", "")
	cacheMisses := sumCounterVec(m.cacheMisses, "", "")

	failureRate := float64(0)
	cacheHitRate := float64(0)
	if total > 0 {
		failureRate = failures / total
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.LookupMetrics{
		TotalLookups:     int64(total),
		Resolved:         int64(resolved),
		NotFound:         int64(notFound),
		ProviderFailures: int64(failures),
		FailureRate:      failureRate,
		CacheHitRate:     cacheHitRate,
		ReceiptsCreated:  int64(sumCounterVec(m.receiptsCreated, "", "")),
		FeesCollected:    getCounterValue(m.feesCollected),
		Period:           "all_time",
	}
}

// sumCounterVec adds up every series of cv, optionally restricted to series
// whose label equals value. An empty label sums all series.
func sumCounterVec(cv *prometheus.CounterVec, label, value string) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var sum float64
	for metric := range ch {
		pb := &dto.Metric{}
		if err := metric.Write(pb); err != nil || pb.Counter == nil {
			continue
		}
		if label != "" && !hasLabel(pb, label, value) {
			continue
		}
		sum += pb.Counter.GetValue()
	}
	return sum
}

func hasLabel(pb *dto.Metric, name, value string) bool {
	for _, lp := range pb.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue() == value
		}
	}
	return false
}

// getCounterValue extracts the current float64 value from a counter.
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
