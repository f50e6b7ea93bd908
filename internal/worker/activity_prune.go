// Package worker holds the service's background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// ActivityStore defines the store operations needed by the prune worker.
type ActivityStore interface {
	PruneActivity(ctx context.Context, before time.Time) (int64, error)
}

// ActivityPruneWorker periodically deletes user activity older than the retention window.
type ActivityPruneWorker struct {
	store     ActivityStore
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewActivityPruneWorker creates a worker with the given store, interval, and retention.
func NewActivityPruneWorker(store ActivityStore, interval, retention time.Duration) *ActivityPruneWorker {
	return &ActivityPruneWorker{
		store:     store,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// The first prune happens one interval after start.
func (w *ActivityPruneWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "activity-prune",
		"interval", w.interval.String(),
		"retention", w.retention.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "activity-prune",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.prune(ctx)
		}
	}
}

// prune executes a single prune cycle.
func (w *ActivityPruneWorker) prune(ctx context.Context) {
	start := w.now()
	cutoff := start.Add(-w.retention)

	deleted, err := w.store.PruneActivity(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("activity prune failed",
			"component", "worker",
			"action", "prune_failed",
			"error", err,
		)
		return
	}

	slog.Info("activity prune completed",
		"component", "worker",
		"action", "prune_complete",
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"deleted", deleted,
		"duration_ms", w.now().Sub(start).Milliseconds(),
	)
}
