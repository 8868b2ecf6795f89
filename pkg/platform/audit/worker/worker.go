package worker

import (
	"context"
	"log/slog"

	audit "trustline/pkg/platform/audit"
)

// Worker drains audit events from a channel into the store and the optional
// external publisher. Services write to the channel with a non-blocking send;
// a full inbox drops the event rather than stalling a ledger operation.
type Worker struct {
	store     audit.Store
	publisher audit.Publisher
	inbox     <-chan audit.Event
	logger    *slog.Logger
}

func NewWorker(store audit.Store, publisher audit.Publisher, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, publisher: publisher, inbox: inbox, logger: logger}
}

// Run processes events until ctx is cancelled. Store or publish failures are
// logged and the worker keeps going; audit loss is preferable to a wedged
// pipeline.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.Error("audit append failed", "action", event.Action, "error", err)
			}
			if w.publisher != nil {
				if err := w.publisher.Publish(ctx, event); err != nil {
					w.logger.Error("audit publish failed", "action", event.Action, "error", err)
				}
			}
		}
	}
}

// Emit performs the non-blocking send services use. Returns false when the
// inbox is full and the event was dropped.
func Emit(inbox chan<- audit.Event, event audit.Event) bool {
	select {
	case inbox <- event:
		return true
	default:
		return false
	}
}
