// Package jobs defines River job types for async processing.
//
// Jobs follow the claim-check pattern: args carry only the domain event id and
// the worker loads the event row written in the publisher's transaction.
package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/pkg/logger"
)

// QueueDomainEvents is the River queue that relays outbox rows to handlers.
const QueueDomainEvents = "domain_events"

// DomainEventArgs carries only EventID.
type DomainEventArgs struct {
	EventID string `json:"event_id"`
}

// Kind returns the job kind identifier for domain event delivery.
func (DomainEventArgs) Kind() string { return "domain_event" }

// InsertOpts returns default insert options for delivery jobs.
func (DomainEventArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueDomainEvents,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByQueue: true,
		},
	}
}

// EventStore is the part of the outbox table the relay needs.
type EventStore interface {
	Get(ctx context.Context, id string) (*domain.DomainEvent, error)
	MarkStatus(ctx context.Context, id string, status domain.EventStatus) error
}

// Dispatcher hands an event to its registered handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *domain.DomainEvent) error
}

// DomainEventWorker relays one stored event to the dispatcher.
//
// Execution flow:
//  1. Fetch the DomainEvent by EventID
//  2. Skip events already COMPLETED (duplicate delivery)
//  3. Mark PROCESSING and dispatch
//  4. Mark COMPLETED, or FAILED and return the error so River retries
type DomainEventWorker struct {
	river.WorkerDefaults[DomainEventArgs]
	events     EventStore
	dispatcher Dispatcher
}

// NewDomainEventWorker creates a DomainEventWorker.
func NewDomainEventWorker(events EventStore, dispatcher Dispatcher) *DomainEventWorker {
	return &DomainEventWorker{events: events, dispatcher: dispatcher}
}

// Work delivers the event.
func (w *DomainEventWorker) Work(ctx context.Context, job *river.Job[DomainEventArgs]) error {
	if w == nil || w.events == nil || w.dispatcher == nil {
		return fmt.Errorf("domain event worker is not initialized")
	}
	eventID := job.Args.EventID

	event, err := w.events.Get(ctx, eventID)
	if err != nil {
		return fmt.Errorf("fetch domain event %s: %w", eventID, err)
	}
	if event.Status == domain.EventStatusCompleted {
		logger.Info("domain event already delivered, skipping",
			zap.String("event_id", eventID),
		)
		return nil
	}

	if err := w.events.MarkStatus(ctx, eventID, domain.EventStatusProcessing); err != nil {
		return err
	}

	if err := w.dispatcher.Dispatch(ctx, event); err != nil {
		if markErr := w.events.MarkStatus(ctx, eventID, domain.EventStatusFailed); markErr != nil {
			logger.Warn("failed to mark domain event failed",
				zap.String("event_id", eventID),
				zap.Error(markErr),
			)
		}
		return fmt.Errorf("dispatch domain event %s: %w", eventID, err)
	}

	if err := w.events.MarkStatus(ctx, eventID, domain.EventStatusCompleted); err != nil {
		return err
	}
	logger.Debug("domain event delivered",
		zap.String("event_id", eventID),
		zap.String("event_type", string(event.EventType)),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}
