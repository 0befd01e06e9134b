package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-pantry/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryWindow is how long after its fire time a queued reminder is still delivered.
const DeliveryWindow = 24 * time.Hour

// QueueService publishes reminders as delayed jobs for the worker process.
type QueueService struct {
	queue    queue.JobQueue
	registry *Registry
	logger   *zap.Logger
}

var _ Service = (*QueueService)(nil)

func NewQueueService(q queue.JobQueue, registry *Registry, log *zap.Logger) *QueueService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueService{queue: q, registry: registry, logger: log}
}

// Schedule enqueues a reminder_delivery job and makes it the live job for
// the item, superseding any earlier one.
func (s *QueueService) Schedule(ctx context.Context, req Request) error {
	job := queue.NewReminderJob(req.ID, queue.ReminderPayload{
		Title:   req.Title,
		Body:    req.Body,
		FireAt:  req.FireAt,
		Repeats: req.Repeats,
	}, DeliveryWindow)

	if job.IsExpired() {
		s.logger.Debug("reminder_in_past_skipped",
			zap.String("item_id", req.ID.String()),
			zap.Time("fire_at", req.FireAt),
		)
		return s.registry.Clear(ctx, req.ID)
	}

	// Register first so the worker never sees a live job it cannot match
	if err := s.registry.Set(ctx, req.ID, job.ID); err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return errors.Join(fmt.Errorf("failed to enqueue reminder: %w", err), s.registry.Clear(ctx, req.ID))
	}

	s.logger.Debug("reminder_enqueued",
		zap.String("item_id", req.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Time("fire_at", req.FireAt),
	)
	return nil
}

// Cancel clears the live job of each item. The queued messages stay in the
// broker and are discarded by the worker.
func (s *QueueService) Cancel(ctx context.Context, ids ...uuid.UUID) error {
	var errs []error
	for _, id := range ids {
		if err := s.registry.Clear(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
