package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

const namespace = "blng_portal"

// Metrics owns the portal's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	submissions    *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	cacheFallbacks prometheus.Counter
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),

		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "submitted_total",
			Help:      "Applications accepted, by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "status_changes_total",
			Help:      "Status transitions written, by source and target status.",
		}, []string{"from", "to"}),
		cacheFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "cache_fallbacks_total",
			Help:      "Status lookups answered from the cache because the store failed.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.submissions,
		m.transitions,
		m.cacheFallbacks,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestStarted increments the in-flight gauge and returns its matching decrement
func (m *Metrics) RequestStarted() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveHTTP records a finished request. path should be the route template.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ApplicationSubmitted counts an accepted application
func (m *Metrics) ApplicationSubmitted(t entity.Type) {
	m.submissions.WithLabelValues(string(t)).Inc()
}

// StatusChanged counts a written transition
func (m *Metrics) StatusChanged(from, to entity.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// CacheFallback counts a lookup served from the cache
func (m *Metrics) CacheFallback() {
	m.cacheFallbacks.Inc()
}
