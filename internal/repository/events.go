package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payflow.io/payflow/internal/domain"
	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// EventRepository stores domain events, the outbox the relay job reads.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Pool exposes the pool so callers can open a transaction spanning the event
// insert and the relay job insert.
func (r *EventRepository) Pool() *pgxpool.Pool { return r.db }

// InsertTx writes ev inside tx. It reports false when the event id was
// already stored.
func (r *EventRepository) InsertTx(ctx context.Context, tx pgx.Tx, ev *domain.DomainEvent) (bool, error) {
	tag, err := tx.Exec(ctx, insertEventSQL, eventArgs(ev)...)
	if err != nil {
		return false, fmt.Errorf("insert domain event %s: %w", ev.EventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Insert writes ev outside any transaction.
func (r *EventRepository) Insert(ctx context.Context, ev *domain.DomainEvent) (bool, error) {
	tag, err := r.db.Exec(ctx, insertEventSQL, eventArgs(ev)...)
	if err != nil {
		return false, fmt.Errorf("insert domain event %s: %w", ev.EventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

const insertEventSQL = `
	INSERT INTO domain_events (id, event_type, aggregate_type, aggregate_id, payload, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	ON CONFLICT (id) DO NOTHING
`

func eventArgs(ev *domain.DomainEvent) []any {
	status := ev.Status
	if status == "" {
		status = domain.EventStatusPending
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return []any{ev.EventID, string(ev.EventType), ev.AggregateType, ev.AggregateID, ev.Payload, string(status), createdAt}
}

// Get reads one event.
func (r *EventRepository) Get(ctx context.Context, id string) (*domain.DomainEvent, error) {
	var (
		ev             domain.DomainEvent
		evType, status string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, payload, status, created_at
		FROM domain_events
		WHERE id = $1
	`, id).Scan(&ev.EventID, &evType, &ev.AggregateType, &ev.AggregateID, &ev.Payload, &status, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("domain event %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get domain event %s: %w", id, err)
	}
	ev.EventType = domain.EventType(evType)
	ev.Status = domain.EventStatus(status)
	return &ev, nil
}

// MarkStatus records delivery progress for an event.
func (r *EventRepository) MarkStatus(ctx context.Context, id string, status domain.EventStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE domain_events SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set domain event %s to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("domain event %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// DeleteCompletedBefore removes delivered events older than cutoff.
func (r *EventRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM domain_events WHERE status = $1 AND created_at < $2`,
		string(domain.EventStatusCompleted), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete completed domain events: %w", err)
	}
	return tag.RowsAffected(), nil
}
