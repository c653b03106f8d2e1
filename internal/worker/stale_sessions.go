package worker

import (
	"context"
	"log/slog"
	"time"
)

// SessionCloser closes IN PROGRESS sessions left over from previous days.
type SessionCloser interface {
	CloseStale(ctx context.Context, actor string) (int, error)
}

// StaleSessionWorker periodically ends sessions that were never finished,
// so their slots can be started again.
type StaleSessionWorker struct {
	closer   SessionCloser
	interval time.Duration
	actor    string
}

// NewStaleSessionWorker creates a worker that runs every interval and
// records actor on the sessions it ends.
func NewStaleSessionWorker(closer SessionCloser, interval time.Duration, actor string) *StaleSessionWorker {
	return &StaleSessionWorker{
		closer:   closer,
		interval: interval,
		actor:    actor,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Runs one cycle immediately so sessions abandoned while the service was
// down are released at startup.
func (w *StaleSessionWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "stale-sessions",
		"interval", w.interval.String(),
		"actor", w.actor,
	)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "stale-sessions",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce executes a single close cycle.
func (w *StaleSessionWorker) runOnce(ctx context.Context) {
	start := time.Now()

	closed, err := w.closer.CloseStale(ctx, w.actor)
	if err != nil {
		// Check for graceful shutdown
		if ctx.Err() != nil {
			return
		}
		slog.Error("stale session cycle failed",
			"component", "worker",
			"action", "close_stale_failed",
			"error", err,
		)
		return
	}

	level := slog.LevelDebug
	if closed > 0 {
		level = slog.LevelInfo
	}
	slog.Log(ctx, level, "stale session cycle completed",
		"component", "worker",
		"action", "close_stale_complete",
		"closed", closed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
