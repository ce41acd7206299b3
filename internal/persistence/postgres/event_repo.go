package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m37335/threegate/internal/domain"
	"github.com/m37335/threegate/internal/persistence"
)

type eventRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventRepo returns a PostgreSQL-backed persistence.EventRepo.
func NewEventRepo(db *sqlx.DB, timeout time.Duration) persistence.EventRepo {
	return &eventRepo{db: db, timeout: timeout}
}

func (r *eventRepo) Insert(ctx context.Context, evt domain.Event) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO events (event_type, symbol, event_data, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id`

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, evt.EventType, evt.Symbol, evt.EventData).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}
	return id, nil
}

// Unprocessed returns up to limit unprocessed rows of the given event type,
// ordered by created_at so the router drains them in arrival order (spec
// §4.7, router polling cadence).
func (r *eventRepo) Unprocessed(ctx context.Context, eventType domain.EventType, limit int) ([]domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, event_type, symbol, event_data, processed, created_at, processed_at, error_message, retry_count
		FROM events
		WHERE event_type = $1 AND processed = FALSE
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var evt domain.Event
		if err := rows.StructScan(&evt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// MarkProcessed flags an event as handled regardless of outcome (spec §4.7:
// a failed analysis attempt is still marked processed, never retried
// automatically); errMsg is recorded when non-nil.
func (r *eventRepo) MarkProcessed(ctx context.Context, id int64, errMsg *string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE events
		SET processed = TRUE, processed_at = NOW(), error_message = $2
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, errMsg); err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	return nil
}
