// Package events delivers domain events from publishers to the saga handlers.
//
// In outbox mode Publish writes the event row and its River relay job in one
// transaction, so an event is delivered if and only if it was stored. In
// in-process mode the row is written and the handlers run on the event worker
// pool; events in flight at a crash are lost.
package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/config"
	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/jobs"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/pkg/worker"
)

// TxBeginner opens a transaction. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store writes outbox rows.
type Store interface {
	InsertTx(ctx context.Context, tx pgx.Tx, ev *domain.DomainEvent) (bool, error)
	Insert(ctx context.Context, ev *domain.DomainEvent) (bool, error)
	MarkStatus(ctx context.Context, id string, status domain.EventStatus) error
}

// JobInserter enqueues River jobs inside a transaction. Satisfied by
// *river.Client[pgx.Tx].
type JobInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Submitter runs a task on a named worker pool. Satisfied by *worker.Pools.
type Submitter interface {
	SubmitDetached(poolName string, task worker.Task) error
}

// Dispatcher runs the handlers of an event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *domain.DomainEvent) error
}

// Bus implements domain.Publisher.
type Bus struct {
	delivery   string
	db         TxBeginner
	store      Store
	jobs       JobInserter
	pools      Submitter
	dispatcher Dispatcher
}

var _ domain.Publisher = (*Bus)(nil)

// NewOutboxBus creates a bus that relays events through River.
func NewOutboxBus(db TxBeginner, store Store, jobs JobInserter) *Bus {
	return &Bus{delivery: config.DeliveryOutbox, db: db, store: store, jobs: jobs}
}

// NewInProcessBus creates a bus that dispatches on the event worker pool.
// store may be nil, in which case events are not recorded.
func NewInProcessBus(store Store, pools Submitter, dispatcher Dispatcher) *Bus {
	return &Bus{delivery: config.DeliveryInProcess, store: store, pools: pools, dispatcher: dispatcher}
}

// Delivery returns the delivery mode of the bus.
func (b *Bus) Delivery() string { return b.delivery }

// Publish stores the event and schedules its delivery. Publishing an event id
// that is already stored is a no-op, which makes publishers safe to retry.
func (b *Bus) Publish(ctx context.Context, event *domain.DomainEvent) error {
	if event == nil || event.EventID == "" {
		return fmt.Errorf("publish: event id is required")
	}
	if b.delivery == config.DeliveryOutbox {
		return b.publishOutbox(ctx, event)
	}
	return b.publishInProcess(ctx, event)
}

func (b *Bus) publishOutbox(ctx context.Context, event *domain.DomainEvent) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := b.store.InsertTx(ctx, tx, event)
	if err != nil {
		return err
	}
	if !inserted {
		logger.Debug("domain event already published",
			zap.String("event_id", event.EventID),
		)
		return nil
	}

	if _, err := b.jobs.InsertTx(ctx, tx, jobs.DomainEventArgs{EventID: event.EventID}, nil); err != nil {
		return fmt.Errorf("enqueue delivery of %s: %w", event.EventID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit publish tx: %w", err)
	}

	logger.Info("domain event published",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
	)
	return nil
}

func (b *Bus) publishInProcess(ctx context.Context, event *domain.DomainEvent) error {
	if b.store != nil {
		inserted, err := b.store.Insert(ctx, event)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
	}

	err := b.pools.SubmitDetached(worker.PoolEvents, func(ctx context.Context) {
		status := domain.EventStatusCompleted
		if err := b.dispatcher.Dispatch(ctx, event); err != nil {
			status = domain.EventStatusFailed
		}
		if b.store == nil {
			return
		}
		if err := b.store.MarkStatus(ctx, event.EventID, status); err != nil {
			logger.Warn("failed to record domain event status",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("submit domain event %s: %w", event.EventID, err)
	}
	return nil
}
