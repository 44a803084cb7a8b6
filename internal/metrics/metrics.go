// Package metrics exposes Prometheus collectors for the lab backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ailab"

// Metrics holds every collector registered by the server.
type Metrics struct {
	registry *prometheus.Registry

	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	sessions           *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	interactions       *prometheus.CounterVec
	computations       *prometheus.CounterVec
	reports            *prometheus.CounterVec
	evictions          prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Text generation calls by agent role and outcome.",
		}, []string{"role", "outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of text generation calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"role"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Lab sessions by experiment and lifecycle event.",
		}, []string{"experiment_id", "event"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Interact calls by experiment and outcome.",
		}, []string{"experiment_id", "outcome"}),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computations_total",
			Help:      "Formula evaluations by formula id and outcome.",
		}, []string{"formula", "outcome"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Rendered lab reports by storage outcome.",
		}, []string{"outcome"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_evictions_total",
			Help:      "Sessions removed by the TTL worker.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generations,
		m.generationDuration,
		m.sessions,
		m.activeSessions,
		m.interactions,
		m.computations,
		m.reports,
		m.evictions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(role domain.Role, outcome string, elapsed time.Duration) {
	m.generations.WithLabelValues(string(role), outcome).Inc()
	m.generationDuration.WithLabelValues(string(role)).Observe(elapsed.Seconds())
}

// SessionEvent counts a session lifecycle transition.
func (m *Metrics) SessionEvent(experimentID, event string) {
	m.sessions.WithLabelValues(experimentID, event).Inc()
}

// SetActiveSessions sets the in-memory session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Interaction counts one interact call.
func (m *Metrics) Interaction(experimentID, outcome string) {
	m.interactions.WithLabelValues(experimentID, outcome).Inc()
}

// Computation counts one formula evaluation.
func (m *Metrics) Computation(formula, outcome string) {
	m.computations.WithLabelValues(formula, outcome).Inc()
}

// Report counts one report write.
func (m *Metrics) Report(outcome string) {
	m.reports.WithLabelValues(outcome).Inc()
}

// Evicted counts sessions removed by the TTL worker.
func (m *Metrics) Evicted(n int) {
	m.evictions.Add(float64(n))
}
