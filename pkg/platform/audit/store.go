package audit

import "context"

// Store persists audit events. Implementations must be safe for concurrent
// appends; events are append-only and never mutated.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor string) ([]Event, error)
}

// Publisher fans an event out to an external sink (Kafka). A nil publisher
// is valid and means "store only".
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
