// Package metrics registers the Prometheus instruments shared by the gate,
// the orchestrator, and the queue workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set holds all registered instruments.
type Set struct {
	// Routing gate
	GateDecisions   *prometheus.CounterVec
	GateLatency     prometheus.Histogram
	FastPathLatency prometheus.Histogram

	// Agent path
	AgentTaskDuration prometheus.Histogram
	ToolDuration      *prometheus.HistogramVec
	ToolFailures      *prometheus.CounterVec
	TaskRetries       prometheus.Counter

	// Web search budget
	BudgetRejections prometheus.Counter
}

// New creates and registers all instruments on the default registry.
func New() *Set {
	return &Set{
		GateDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamshield_gate_decisions_total",
				Help: "Routing gate decisions by path and reason",
			},
			[]string{"path", "reason"}, // path: agent, fast
		),

		GateLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scamshield_gate_latency_seconds",
				Help:    "Routing gate decision latency including the entity pre-scan",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
		),

		FastPathLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scamshield_fast_path_latency_seconds",
				Help:    "Inline fast-path classification latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		AgentTaskDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scamshield_agent_task_duration_seconds",
				Help:    "End-to-end orchestrator task duration",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
		),

		ToolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scamshield_tool_duration_seconds",
				Help:    "Per-tool evidence call duration",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"tool"},
		),

		ToolFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scamshield_tool_failures_total",
				Help: "Evidence tool calls that ended in error or timeout",
			},
			[]string{"tool"},
		),

		TaskRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scamshield_task_retries_total",
				Help: "Queue tasks re-enqueued after infrastructural failure",
			},
		),

		BudgetRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scamshield_websearch_budget_rejections_total",
				Help: "Web searches refused because the daily budget was exhausted",
			},
		),
	}
}
