// Package metrics registers the prometheus instruments for workflow
// executions and exposes them on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine instruments. A nil *Metrics is safe to use;
// every method no-ops.
type Metrics struct {
	registry *prometheus.Registry

	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	nodeDuration      *prometheus.HistogramVec
	iterationsUsed    prometheus.Histogram
	activeExecutions  prometheus.Gauge
}

// New creates and registers the instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowbase",
			Name:      "executions_total",
			Help:      "Workflow executions by terminal status.",
		}, []string{"status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowbase",
			Name:      "execution_duration_seconds",
			Help:      "End-to-end workflow execution duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowbase",
			Name:      "node_duration_seconds",
			Help:      "Per-node execution duration by node type.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"node_type", "status"}),
		iterationsUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowbase",
			Name:      "execution_iterations",
			Help:      "Traversal iterations consumed per execution.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		activeExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowbase",
			Name:      "active_executions",
			Help:      "Executions currently in flight.",
		}),
	}

	m.registry.MustRegister(
		m.executionsTotal,
		m.executionDuration,
		m.nodeDuration,
		m.iterationsUsed,
		m.activeExecutions,
	)
	return m
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.activeExecutions.Inc()
}

func (m *Metrics) ExecutionFinished(status string, duration time.Duration, iterations int) {
	if m == nil {
		return
	}
	m.activeExecutions.Dec()
	m.executionsTotal.WithLabelValues(status).Inc()
	m.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.iterationsUsed.Observe(float64(iterations))
}

func (m *Metrics) NodeExecuted(nodeType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(nodeType, status).Observe(duration.Seconds())
}
