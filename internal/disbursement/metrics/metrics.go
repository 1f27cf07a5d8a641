package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lifecycle engine.
type Metrics struct {
	// Transition attempts by kind, action and outcome
	TransitionOutcome *prometheus.CounterVec

	// End-to-end transition latency including audit and dispatch
	TransitionLatency prometheus.Histogram

	// Rows changed by bulk operations
	BulkUpdated *prometheus.CounterVec
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gestionale_transitions_total",
			Help: "Total transition attempts by kind, action and outcome",
		}, []string{"kind", "action", "outcome"}), // outcome: "applied", "rejected", "conflict", "error"

		TransitionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gestionale_transition_duration_seconds",
			Help:    "Duration of a full transition including audit and notification dispatch",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		BulkUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gestionale_bulk_rows_updated_total",
			Help: "Rows actually changed by bulk operations",
		}, []string{"operation"}), // operation: "approve_all", "mark_paid"
	}
}

// IncrementOutcome records one transition attempt outcome.
func (m *Metrics) IncrementOutcome(kind, action, outcome string) {
	if m != nil {
		m.TransitionOutcome.WithLabelValues(kind, action, outcome).Inc()
	}
}

// ObserveTransitionLatency records the duration of a transition.
func (m *Metrics) ObserveTransitionLatency(d time.Duration) {
	if m != nil {
		m.TransitionLatency.Observe(d.Seconds())
	}
}

// AddBulkUpdated records how many rows a bulk operation changed.
func (m *Metrics) AddBulkUpdated(operation string, n int) {
	if m != nil {
		m.BulkUpdated.WithLabelValues(operation).Add(float64(n))
	}
}
