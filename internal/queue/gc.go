package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Defaults for DeadLetterSweeper
const (
	DefaultSweepInterval = time.Hour
	DefaultDeadRetention = 24 * time.Hour
	defaultSweepTimeout  = 2 * time.Minute
)

// DeadLetterSweeper discards reminders that exhausted their delivery attempts
// once they have sat in the dead-letter queue longer than the retention window.
type DeadLetterSweeper struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	purged atomic.Int64
}

// NewDeadLetterSweeper creates a sweeper. Non-positive durations fall back to
// DefaultSweepInterval and DefaultDeadRetention.
func NewDeadLetterSweeper(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *DeadLetterSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retention <= 0 {
		retention = DefaultDeadRetention
	}
	return &DeadLetterSweeper{purger: purger, interval: interval, retention: retention, logger: logger}
}

// Purged reports how many dead reminders the sweeper has discarded so far
func (s *DeadLetterSweeper) Purged() int64 {
	return s.purged.Load()
}

// Start sweeps once right away and then every interval until ctx is done.
func (s *DeadLetterSweeper) Start(ctx context.Context) error {
	if s.purger == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("dead_reminder_sweep_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *DeadLetterSweeper) sweep(ctx context.Context) error {
	if s.purger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultSweepTimeout)
	defer cancel()

	n, err := s.purger.PurgeOlderThan(ctx, s.retention)
	if n > 0 {
		s.purged.Add(int64(n))
		s.logger.Info("dead_reminders_discarded",
			zap.Int("count", n),
			zap.Duration("older_than", s.retention),
		)
	}
	if err != nil {
		return fmt.Errorf("purge dead reminders: %w", err)
	}
	return nil
}
