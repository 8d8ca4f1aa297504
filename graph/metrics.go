package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for workflow execution.
//
// Metrics exposed (namespace "hybridqa"):
//
//  1. step_latency_ms (histogram): node execution duration in milliseconds.
//     Labels: node_id, status (success/error).
//  2. steps_total (counter): cumulative node executions.
//     Labels: node_id, status.
//  3. repairs_total (counter): query repair attempts.
//
// Attach with graph.WithMetrics and expose via promhttp:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewMetrics(registry)
//	engine := graph.New(reducer, st, emitter, graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// All methods are safe for concurrent use.
type Metrics struct {
	stepLatency *prometheus.HistogramVec
	steps       *prometheus.CounterVec
	repairs     prometheus.Counter
}

// NewMetrics creates and registers workflow metrics with the given
// registry. A nil registry falls back to the Prometheus default.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hybridqa",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"node_id", "status"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hybridqa",
			Name:      "steps_total",
			Help:      "Cumulative count of node executions",
		}, []string{"node_id", "status"}),
		repairs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hybridqa",
			Name:      "repairs_total",
			Help:      "Cumulative count of query repair attempts",
		}),
	}
}

// ObserveStep records one node execution with its duration and outcome.
// Status is "success" or "error".
func (m *Metrics) ObserveStep(nodeID string, latency time.Duration, status string) {
	if m == nil {
		return
	}
	m.stepLatency.WithLabelValues(nodeID, status).Observe(float64(latency.Milliseconds()))
	m.steps.WithLabelValues(nodeID, status).Inc()
}

// IncRepairs counts one query repair attempt.
func (m *Metrics) IncRepairs() {
	if m == nil {
		return
	}
	m.repairs.Inc()
}
