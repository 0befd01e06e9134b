package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Backgrounder persists in-memory pantry state.
type Backgrounder interface {
	Background(ctx context.Context) error
}

// StateFlusher periodically persists state that is otherwise only written
// when the app is backgrounded, such as bulk edits.
type StateFlusher struct {
	target   Backgrounder
	interval time.Duration
	logger   *zap.Logger
}

// NewStateFlusher creates a new state flusher
func NewStateFlusher(target Backgrounder, interval time.Duration, logger *zap.Logger) *StateFlusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateFlusher{
		target:   target,
		interval: interval,
		logger:   logger,
	}
}

// Start flushes every interval until ctx is cancelled. A non-positive
// interval disables periodic flushing.
func (f *StateFlusher) Start(ctx context.Context) error {
	if f.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.FlushOnce(ctx)
		}
	}
}

// FlushOnce persists state once and logs failures.
func (f *StateFlusher) FlushOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := f.target.Background(ctx); err != nil {
		f.logger.Error("state_flush_failed", zap.Error(err))
		return
	}
	f.logger.Debug("state_flushed")
}
