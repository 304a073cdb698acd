package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notebook"

// Gate attempt results.
const (
	GateGranted = "granted"
	GateDenied  = "denied"
)

// Metrics holds the application's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	gateAttempts    *prometheus.CounterVec
	noteOperations  *prometheus.CounterVec
	backendRequests *prometheus.HistogramVec
	httpRequests    *prometheus.HistogramVec
}

// NewMetrics creates and registers the application collectors, plus the
// standard Go runtime and process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gateAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "attempts_total",
			Help:      "Number of password gate submissions by result.",
		}, []string{"result"}),
		noteOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notes",
			Name:      "operations_total",
			Help:      "Number of note operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		backendRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests to the auth/database backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of handled HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gateAttempts,
		m.noteOperations,
		m.backendRequests,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// GateAttempt records a single gate decision.
func (m *Metrics) GateAttempt(granted bool) {
	if m == nil {
		return
	}
	result := GateDenied
	if granted {
		result = GateGranted
	}
	m.gateAttempts.WithLabelValues(result).Inc()
}

// NoteOperation records a note operation and whether it failed.
func (m *Metrics) NoteOperation(op string, err error) {
	if m == nil {
		return
	}
	m.noteOperations.WithLabelValues(op, outcome(err)).Inc()
}

// BackendRequest records the latency of a backend call started at start.
func (m *Metrics) BackendRequest(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(op, outcome(err)).Observe(time.Since(start).Seconds())
}

// HTTPRequest records the latency of a handled HTTP request.
func (m *Metrics) HTTPRequest(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
