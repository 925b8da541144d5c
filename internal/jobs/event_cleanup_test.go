package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/riverqueue/river"

	"payflow.io/payflow/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

type fakePruner struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakePruner) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func TestEventCleanupArgsKind(t *testing.T) {
	t.Parallel()

	if got := (EventCleanupArgs{}).Kind(); got != "domain_event_cleanup" {
		t.Fatalf("Kind() = %q, want %q", got, "domain_event_cleanup")
	}
}

func TestEventCleanupArgsInsertOpts(t *testing.T) {
	t.Parallel()

	opts := (EventCleanupArgs{}).InsertOpts()
	if opts.Queue != river.QueueDefault {
		t.Fatalf("Queue = %q, want %q", opts.Queue, river.QueueDefault)
	}
	if opts.MaxAttempts != 1 {
		t.Fatalf("MaxAttempts = %d, want 1", opts.MaxAttempts)
	}
	if opts.UniqueOpts.ByPeriod != 24*time.Hour {
		t.Fatalf("UniqueOpts.ByPeriod = %s, want %s", opts.UniqueOpts.ByPeriod, 24*time.Hour)
	}
	if !opts.UniqueOpts.ByQueue || !opts.UniqueOpts.ByArgs {
		t.Fatal("UniqueOpts must be by queue and by args")
	}
}

func TestNewEventCleanupWorkerRetention(t *testing.T) {
	t.Parallel()

	t.Run("defaults when non-positive", func(t *testing.T) {
		w := NewEventCleanupWorker(nil, 0)
		if w.retention != DefaultEventRetention {
			t.Fatalf("retention = %s, want %s", w.retention, DefaultEventRetention)
		}
	})

	t.Run("uses explicit retention when provided", func(t *testing.T) {
		want := 48 * time.Hour
		w := NewEventCleanupWorker(nil, want)
		if w.retention != want {
			t.Fatalf("retention = %s, want %s", w.retention, want)
		}
	})
}

func TestEventCleanupWorkerWork(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("deletes before cutoff", func(t *testing.T) {
		pruner := &fakePruner{deleted: 3}
		w := NewEventCleanupWorker(pruner, 24*time.Hour)
		w.now = func() time.Time { return now }

		if err := w.Work(context.Background(), nil); err != nil {
			t.Fatalf("Work() error = %v", err)
		}
		if want := now.Add(-24 * time.Hour); !pruner.cutoff.Equal(want) {
			t.Fatalf("cutoff = %s, want %s", pruner.cutoff, want)
		}
	})

	t.Run("propagates store errors", func(t *testing.T) {
		w := NewEventCleanupWorker(&fakePruner{err: errors.New("db down")}, time.Hour)
		w.now = func() time.Time { return now }

		err := w.Work(context.Background(), nil)
		if err == nil || !strings.Contains(err.Error(), "db down") {
			t.Fatalf("Work() error = %v, want contains %q", err, "db down")
		}
	})
}

func TestEventCleanupWorkerWork_Uninitialized(t *testing.T) {
	t.Parallel()

	t.Run("nil receiver", func(t *testing.T) {
		var w *EventCleanupWorker
		err := w.Work(context.Background(), nil)
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("Work() error = %v, want contains %q", err, "not initialized")
		}
	})

	t.Run("nil store", func(t *testing.T) {
		w := &EventCleanupWorker{}
		err := w.Work(context.Background(), nil)
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("Work() error = %v, want contains %q", err, "not initialized")
		}
	})
}
