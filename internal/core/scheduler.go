package core

// scheduler.go prunes stored comparisons past their retention period.
//
// The job runs once at start and then every Interval until its context is
// cancelled. A failed run is logged and retried at the next tick; it never
// stops the server.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls the prune job.
type RetentionConfig struct {
	Days     int           // Keep comparisons this many days; <= 0 disables pruning
	Interval time.Duration // Time between runs (default 1h)
}

// StartRetention runs the prune job until ctx is cancelled. It blocks; call
// it in its own goroutine.
func (s *Service) StartRetention(ctx context.Context, cfg RetentionConfig) {
	if cfg.Days <= 0 {
		slog.Info("retention disabled")
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	slog.Info("retention scheduler started",
		"retention_days", cfg.Days,
		"interval", cfg.Interval.String(),
	)

	s.PruneExpired(ctx, cfg.Days)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.PruneExpired(ctx, cfg.Days)
		}
	}
}

// PruneExpired deletes comparisons older than days and returns how many
// were removed.
func (s *Service) PruneExpired(ctx context.Context, days int) int64 {
	start := s.now()
	cutoff := start.Add(-time.Duration(days) * 24 * time.Hour)

	n, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("prune failed", "error", err)
		return 0
	}
	slog.Info("pruned expired comparisons",
		"deleted", n,
		"cutoff", cutoff.UTC().Format(time.RFC3339),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return n
}
