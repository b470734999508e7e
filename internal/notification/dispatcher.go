package notification

import (
	"context"
	"log/slog"
	"time"

	"medigraph/internal/notification/metrics"
)

// Sender delivers a single event over one channel (SMTP, Kafka, ...).
type Sender interface {
	Send(ctx context.Context, event Event) error
}

// Dispatcher decouples request handling from delivery. Notify never blocks:
// when the inbox is full the event is dropped and counted, because losing a
// courtesy email is cheaper than stalling a mutation response.
type Dispatcher struct {
	inbox   chan Event
	senders []Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(buffer int, logger *slog.Logger, m *metrics.Metrics, senders ...Sender) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		inbox:   make(chan Event, buffer),
		senders: senders,
		logger:  logger,
		metrics: m,
	}
}

// Notify enqueues an event for delivery. Safe to call from any goroutine.
func (d *Dispatcher) Notify(_ context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	select {
	case d.inbox <- event:
	default:
		d.metrics.IncDropped()
		d.logger.Warn("notification inbox full, dropping event", "kind", string(event.Kind))
	}
}

// Run consumes the inbox until ctx is cancelled. Cancellation is the normal
// shutdown path and returns nil. Sender errors are logged and counted; the
// loop never stops on them.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-d.inbox:
			for _, sender := range d.senders {
				if err := sender.Send(ctx, event); err != nil {
					d.metrics.IncFailed()
					d.logger.ErrorContext(ctx, "notification delivery failed",
						"kind", string(event.Kind),
						"error", err,
					)
					continue
				}
				d.metrics.IncSent()
			}
		}
	}
}

// Nop is a Dispatcher stand-in for tests and for deployments with no
// configured senders.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
