package tutor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/ds-tutor/internal/store"
)

const (
	defaultIdleSweepInterval = 5 * time.Minute
	// inactiveUserRetention bounds how long an unseen anonymous user keeps
	// a stored level preference.
	inactiveUserRetention = 90 * 24 * time.Hour
)

// IdleWorkerConfig controls the idle eviction worker.
type IdleWorkerConfig struct {
	// TTL is how long a conversation may sit unused before it is destroyed.
	TTL time.Duration
	// Interval between sweeps. Zero means five minutes.
	Interval time.Duration
}

// StartIdleWorker runs a background goroutine that periodically destroys idle
// conversations and prunes long-inactive users from repo (which may be nil).
// It stops when ctx is done.
func StartIdleWorker(ctx context.Context, mgr *Manager, repo store.Repository, cfg IdleWorkerConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultIdleSweepInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Idle worker started", "interval", interval, "ttl", cfg.TTL)

		for {
			select {
			case now := <-ticker.C:
				sweepIdle(ctx, mgr, repo, cfg.TTL, now)
			case <-ctx.Done():
				slog.Info("Idle worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepIdle(ctx context.Context, mgr *Manager, repo store.Repository, ttl time.Duration, now time.Time) {
	if ttl > 0 {
		if evicted := mgr.EvictIdle(ttl, now); evicted > 0 {
			slog.Info("Idle worker evicted conversations", "count", evicted, "remaining", mgr.Len())
		}
	}

	if repo == nil {
		return
	}
	if deleted, err := repo.DeleteInactiveUsers(ctx, inactiveUserRetention); err != nil {
		if ctx.Err() != nil {
			slog.Debug("Idle worker: context canceled during user cleanup", "error", err)
			return
		}
		slog.Error("Idle worker failed to delete inactive users", "error", err)
	} else if deleted > 0 {
		slog.Info("Idle worker deleted inactive users", "count", deleted)
	}
}
