package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/pkg/logger"
)

// DefaultEventRetention is how long delivered domain events stay in the outbox.
const DefaultEventRetention = 7 * 24 * time.Hour

// EventCleanupArgs is a periodic maintenance job that removes delivered
// domain events from the outbox table.
type EventCleanupArgs struct{}

// Kind returns the job kind identifier for periodic outbox cleanup.
func (EventCleanupArgs) Kind() string { return "domain_event_cleanup" }

// InsertOpts ensures at most one cleanup job is enqueued within the same day.
func (EventCleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// EventPruner deletes delivered events created before cutoff.
type EventPruner interface {
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventCleanupWorker deletes delivered events older than the retention.
type EventCleanupWorker struct {
	river.WorkerDefaults[EventCleanupArgs]
	events    EventPruner
	retention time.Duration
	now       func() time.Time
}

// NewEventCleanupWorker creates a cleanup worker. Non-positive retention
// falls back to DefaultEventRetention.
func NewEventCleanupWorker(events EventPruner, retention time.Duration) *EventCleanupWorker {
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	return &EventCleanupWorker{
		events:    events,
		retention: retention,
		now:       time.Now,
	}
}

// Work removes expired outbox rows.
func (w *EventCleanupWorker) Work(ctx context.Context, _ *river.Job[EventCleanupArgs]) error {
	if w == nil || w.events == nil {
		return fmt.Errorf("event cleanup worker is not initialized")
	}

	cutoff := w.now().UTC().Add(-w.retention)
	deleted, err := w.events.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete delivered events before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	logger.Info("domain event cleanup completed",
		zap.Int64("deleted_rows", deleted),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("retention", w.retention),
	)
	return nil
}
