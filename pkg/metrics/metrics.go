package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "painel"

// Metrics holds every Prometheus collector of the service.
// A nil *Metrics is valid and records nothing.
// ⭐ SSOT: collectors are registered only here
type Metrics struct {
	registry *prometheus.Registry

	// Records accepted by the store, by backend
	RecordsAppended *prometheus.CounterVec

	// Batches rejected with schema violations, by backend
	BatchesRejected *prometheus.CounterVec

	// Records currently held by the store
	StoreRecords prometheus.Gauge

	// Upstream extraction failures, by reason (model, decode, timeout)
	ExtractionFailures *prometheus.CounterVec

	// Projection compute time, by projection (consensus, heatmap, trajectory)
	ProjectionDuration *prometheus.HistogramVec

	// Projection cache lookups, by result (hit, miss, error)
	CacheLookups *prometheus.CounterVec

	// HTTP request latency, by route and status code
	HTTPDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers every collector on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Total view records appended to the store",
		}, []string{"backend"}),

		BatchesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_rejected_total",
			Help:      "Total candidate batches rejected for schema violations",
		}, []string{"backend"}),

		StoreRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Number of view records currently in the store",
		}),

		ExtractionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Total upstream extraction failures by reason",
		}, []string{"reason"}),

		ProjectionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "projection_duration_seconds",
			Help:      "Duration of projection computations",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"projection"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_cache_lookups_total",
			Help:      "Projection cache lookups by result",
		}, []string{"result"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// AddAppended records n appended records
func (m *Metrics) AddAppended(backend string, n int) {
	if m != nil {
		m.RecordsAppended.WithLabelValues(backend).Add(float64(n))
	}
}

// IncrementRejected records one rejected batch
func (m *Metrics) IncrementRejected(backend string) {
	if m != nil {
		m.BatchesRejected.WithLabelValues(backend).Inc()
	}
}

// SetStoreRecords sets the current store size
func (m *Metrics) SetStoreRecords(n int) {
	if m != nil {
		m.StoreRecords.Set(float64(n))
	}
}

// IncrementExtractionFailure records one upstream failure
func (m *Metrics) IncrementExtractionFailure(reason string) {
	if m != nil {
		m.ExtractionFailures.WithLabelValues(reason).Inc()
	}
}

// ObserveProjection records the duration of one projection
func (m *Metrics) ObserveProjection(projection string, d time.Duration) {
	if m != nil {
		m.ProjectionDuration.WithLabelValues(projection).Observe(d.Seconds())
	}
}

// IncrementCacheLookup records one cache lookup result
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// ObserveHTTP records one HTTP request
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m != nil {
		m.HTTPDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}
