package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"trustline/pkg/domain"
	audit "trustline/pkg/platform/audit"
)

// Store persists audit events in PostgreSQL. Events are written outside the
// mutating operation's transaction; a failed append is logged by the worker
// and never fails the operation that produced it.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, occurred_at, actor, subject, action, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(),
		event.Timestamp,
		event.Actor.String(),
		event.Subject,
		string(event.Action),
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByActor(ctx context.Context, actor string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, actor, subject, action, reason, request_id
		FROM audit_events
		WHERE actor = $1
		ORDER BY occurred_at`, actor)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var actorStr, action string
		if err := rows.Scan(&e.Timestamp, &actorStr, &e.Subject, &action, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Actor = domain.Address(actorStr)
		e.Action = audit.Action(action)
		events = append(events, e)
	}
	return events, rows.Err()
}
