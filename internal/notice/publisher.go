package notice

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher hands events to the worker through a buffered channel. Emit never
// blocks and never fails the emitting operation: when the buffer is full the
// event is dropped and counted, because a slow observer must not stall fund
// custody.
type Publisher struct {
	logger  *slog.Logger
	events  chan Event
	dropped DropCounter
}

// DropCounter is satisfied by the escrow metrics so drops stay observable.
type DropCounter interface {
	IncrementNoticesDropped()
}

const defaultBuffer = 256

// NewPublisher creates a Publisher with the default buffer size.
func NewPublisher(logger *slog.Logger, dropped DropCounter) *Publisher {
	return &Publisher{
		logger:  logger,
		events:  make(chan Event, defaultBuffer),
		dropped: dropped,
	}
}

// Emit queues an event, stamping id and timestamp when absent.
func (p *Publisher) Emit(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	select {
	case p.events <- event:
	default:
		if p.dropped != nil {
			p.dropped.IncrementNoticesDropped()
		}
		p.logger.Warn("notice dropped, buffer full",
			"kind", string(event.Kind),
			"account", event.Account.String(),
		)
	}
}

// Events exposes the channel for the worker.
func (p *Publisher) Events() <-chan Event {
	return p.events
}
