package notice

import (
	"context"
	"log/slog"
)

// Sink receives events fanned out by the worker.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Worker consumes events from the publisher's channel and fans them out to
// every sink. A failing sink is logged and skipped; notices carry no
// delivery guarantee back to the domain.
type Worker struct {
	logger *slog.Logger
	inbox  <-chan Event
	sinks  []Sink
}

func NewWorker(logger *slog.Logger, inbox <-chan Event, sinks ...Sink) *Worker {
	return &Worker{logger: logger, inbox: inbox, sinks: sinks}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			for _, sink := range w.sinks {
				if err := sink.Record(ctx, event); err != nil {
					w.logger.ErrorContext(ctx, "notice sink failed",
						"kind", string(event.Kind),
						"error", err.Error(),
					)
				}
			}
		}
	}
}
