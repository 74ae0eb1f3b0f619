// Package notifications runs the notification retention sweep.
package notifications

import (
	"context"
	"log/slog"
	"time"

	"tidepool/internal/middleware"
	"tidepool/internal/observability"
	"tidepool/internal/repository"
)

const (
	// DefaultRetention is how long read notifications are kept.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultInterval is how often the sweep runs.
	DefaultInterval = 24 * time.Hour
	// DefaultBatchSize bounds each delete statement.
	DefaultBatchSize = 500
)

// Sweeper periodically deletes read notifications older than the
// retention window. Unread notifications are never swept.
type Sweeper struct {
	repo      repository.NotificationRepository
	retention time.Duration
	interval  time.Duration
	batchSize int
}

// NewSweeper returns a sweeper with the default retention policy.
func NewSweeper(repo repository.NotificationRepository) *Sweeper {
	return &Sweeper{
		repo:      repo,
		retention: DefaultRetention,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
	}
}

// WithPolicy overrides retention, interval, and batch size. Zero values
// keep the defaults.
func (s *Sweeper) WithPolicy(retention, interval time.Duration, batchSize int) *Sweeper {
	if retention > 0 {
		s.retention = retention
	}
	if interval > 0 {
		s.interval = interval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	return s
}

// Run sweeps once immediately, then on every tick until ctx is
// cancelled. Intended to run in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			middleware.Logger.Info("notification sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.repo.DeleteReadOlderThan(ctx, cutoff, s.batchSize)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "notification sweep failed",
			slog.String("error", err.Error()),
			slog.Int64("deleted_before_failure", deleted),
		)
		return
	}
	if deleted > 0 {
		observability.NotificationsSwept.Add(float64(deleted))
		middleware.Logger.InfoContext(ctx, "notification sweep completed",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
}
