package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalService keeps one in-process timer per pending reminder. Pending
// reminders are lost when the process exits; callers re-issue them on start.
type LocalService struct {
	mu       sync.Mutex
	timers   map[uuid.UUID]*time.Timer
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

var _ Service = (*LocalService)(nil)

func NewLocalService(notifier Notifier, log *zap.Logger) *LocalService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalService{
		timers:   make(map[uuid.UUID]*time.Timer),
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// Schedule arms a timer for req. Reminders whose fire time has already
// passed are dropped, matching a non-repeating calendar trigger.
func (s *LocalService) Schedule(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(req.ID)

	delay := req.FireAt.Sub(s.now())
	if delay < 0 {
		s.logger.Debug("reminder_in_past_skipped",
			zap.String("item_id", req.ID.String()),
			zap.Time("fire_at", req.FireAt),
		)
		return nil
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[req.ID] != timer {
			// Replaced or cancelled after the timer fired
			s.mu.Unlock()
			return
		}
		delete(s.timers, req.ID)
		s.mu.Unlock()

		s.deliver(req)
	})
	s.timers[req.ID] = timer
	return nil
}

// Cancel stops pending timers.
func (s *LocalService) Cancel(_ context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.stopLocked(id)
	}
	return nil
}

// Pending reports whether a reminder is armed for id.
func (s *LocalService) Pending(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// PendingCount returns the number of armed reminders.
func (s *LocalService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops every pending timer.
func (s *LocalService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.stopLocked(id)
	}
}

func (s *LocalService) stopLocked(id uuid.UUID) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *LocalService) deliver(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.notifier.Notify(ctx, Notification{
		ItemID: req.ID,
		Title:  req.Title,
		Body:   req.Body,
		FireAt: req.FireAt,
	})
	if err != nil {
		s.logger.Error("reminder_delivery_failed",
			zap.String("item_id", req.ID.String()),
			zap.Error(err),
		)
	}
}
