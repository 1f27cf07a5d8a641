package notification

import (
	"context"
	"log/slog"
)

// Worker drains the email queue and hands payloads to the email sink. A
// failed delivery is logged and counted, then the worker moves on; the queue
// carries no acknowledgements back to the transition that produced the
// payload.
type Worker struct {
	sink    Sink
	inbox   <-chan Payload
	logger  *slog.Logger
	metrics *Metrics
}

func NewWorker(sink Sink, inbox <-chan Payload, logger *slog.Logger, metrics *Metrics) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger, metrics: metrics}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-w.inbox:
			if err := w.sink.Deliver(ctx, payload); err != nil {
				w.metrics.IncrementFailures(payload.Kind, ChannelEmail)
				w.logger.ErrorContext(ctx, "email notification delivery failed",
					"kind", payload.Kind,
					"entity_id", payload.EntityID.String(),
					"error", err.Error(),
				)
			}
		}
	}
}
