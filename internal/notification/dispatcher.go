package notification

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gestionale/internal/disbursement"
	id "gestionale/pkg/domain"
)

// Metrics surfaces dispatch outcomes to operators. Like history persistence,
// dispatch failures never fail the transition, so these counters are the
// operator-facing signal.
type Metrics struct {
	Dispatched *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Dropped    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Dispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gestionale_notifications_dispatched_total",
			Help: "Notifications handed to a delivery channel, by event kind and channel",
		}, []string{"kind", "channel"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gestionale_notification_failures_total",
			Help: "Notification deliveries that failed, by event kind and channel",
		}, []string{"kind", "channel"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gestionale_notifications_dropped_total",
			Help: "Email notifications dropped because the outbound queue was full",
		}),
	}
}

func (m *Metrics) IncrementDispatched(kind string, channel Channel) {
	if m != nil {
		m.Dispatched.WithLabelValues(kind, string(channel)).Inc()
	}
}

func (m *Metrics) IncrementFailures(kind string, channel Channel) {
	if m != nil {
		m.Failures.WithLabelValues(kind, string(channel)).Inc()
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

// Transition describes a realized transition for dispatch purposes.
type Transition struct {
	Kind      disbursement.Kind
	Action    disbursement.Action
	OwnerID   id.PersonID
	RequestID id.RequestID
	Note      string
}

// Dispatcher maps realized transitions to at most one payload for the owning
// collaborator. The in-app channel is delivered inline (an insert); the email
// channel is enqueued for the background worker and never blocks the caller.
type Dispatcher struct {
	settings SettingsStore
	inApp    Sink
	emails   chan<- Payload
	logger   *slog.Logger
	metrics  *Metrics
}

func NewDispatcher(settings SettingsStore, inApp Sink, emails chan<- Payload, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		settings: settings,
		inApp:    inApp,
		emails:   emails,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch builds and routes the payload for a transition. It returns the
// payload for observability, or nil when the transition is not on the
// allowlist or every channel is disabled. It never returns an error: the
// transition already committed and notification is best-effort.
func (d *Dispatcher) Dispatch(ctx context.Context, t Transition) *Payload {
	tpl, ok := templateFor(t.Kind, t.Action)
	if !ok {
		return nil
	}

	message := tpl.DefaultMessage
	if t.Note != "" {
		message = "Note: " + t.Note
	}
	payload := Payload{
		Recipient:  t.OwnerID,
		EntityType: t.Kind,
		EntityID:   t.RequestID,
		Kind:       tpl.EventKind,
		Title:      tpl.Title,
		Message:    message,
	}

	delivered := false
	if d.enabled(ctx, tpl.EventKind, ChannelInApp) {
		if err := d.inApp.Deliver(ctx, payload); err != nil {
			d.metrics.IncrementFailures(tpl.EventKind, ChannelInApp)
			d.logger.ErrorContext(ctx, "in-app notification failed",
				"kind", tpl.EventKind,
				"entity_id", t.RequestID.String(),
				"error", err.Error(),
			)
		} else {
			d.metrics.IncrementDispatched(tpl.EventKind, ChannelInApp)
			delivered = true
		}
	}

	if d.enabled(ctx, tpl.EventKind, ChannelEmail) && d.emails != nil {
		select {
		case d.emails <- payload:
			d.metrics.IncrementDispatched(tpl.EventKind, ChannelEmail)
			delivered = true
		default:
			d.metrics.IncrementDropped()
			d.logger.WarnContext(ctx, "email notification dropped, queue full",
				"kind", tpl.EventKind,
				"entity_id", t.RequestID.String(),
			)
		}
	}

	if !delivered {
		return nil
	}
	return &payload
}

// enabled consults the delivery settings; lookup failures fail open so a
// settings-store outage does not silence notifications.
func (d *Dispatcher) enabled(ctx context.Context, eventKind string, channel Channel) bool {
	enabled, err := d.settings.Enabled(ctx, eventKind, id.RoleCollaboratore, channel)
	if err != nil {
		d.logger.WarnContext(ctx, "delivery settings lookup failed",
			"kind", eventKind,
			"channel", string(channel),
			"error", err.Error(),
		)
		return true
	}
	return enabled
}
