package history

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// Metrics surfaces history persistence failures to operators. Recording is
// best-effort, so a rising failure counter is the only signal that the audit
// trail has gaps.
type Metrics struct {
	AppendFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gestionale_history_append_failures_total",
			Help: "Total history entries that could not be persisted",
		}),
	}
}

func (m *Metrics) IncrementAppendFailures(n int) {
	if m != nil {
		m.AppendFailures.Add(float64(n))
	}
}

// Recorder appends history entries after a committed state change. The state
// change is the authoritative business fact: a failed append is logged and
// counted but never propagated, so it can never roll back or fail the
// transition that produced it.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

func NewRecorder(store Store, logger *slog.Logger, metrics *Metrics) *Recorder {
	return &Recorder{store: store, logger: logger, metrics: metrics}
}

// Record appends a single entry, swallowing failures.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if err := r.store.Append(ctx, entry); err != nil {
		r.metrics.IncrementAppendFailures(1)
		r.logger.ErrorContext(ctx, "failed to append history entry",
			"request_id", entry.RequestID.String(),
			"entity_type", string(entry.Kind),
			"new_state", string(entry.NewState),
			"error", err.Error(),
		)
	}
}

// RecordBatch appends entries from a bulk operation in one insert,
// swallowing failures.
func (r *Recorder) RecordBatch(ctx context.Context, entries []Entry) {
	if len(entries) == 0 {
		return
	}
	if err := r.store.AppendBatch(ctx, entries); err != nil {
		r.metrics.IncrementAppendFailures(len(entries))
		r.logger.ErrorContext(ctx, "failed to append history batch",
			"entries", len(entries),
			"error", err.Error(),
		)
	}
}

// List exposes the trail for the read path.
func (r *Recorder) List(ctx context.Context, kind disbursement.Kind, reqID id.RequestID) ([]Entry, error) {
	return r.store.ListByRequest(ctx, kind, reqID)
}
