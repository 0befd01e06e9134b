package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-pantry/internal/queue"
	"github.com/benvon/smart-pantry/internal/reminder"
	"github.com/benvon/smart-pantry/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultRetryDelay is the delay before the first redelivery of a failed reminder.
const DefaultRetryDelay = 30 * time.Second

// LiveJobs tells the deliverer which job currently owns an item's reminder.
type LiveJobs interface {
	IsLive(ctx context.Context, itemID, jobID uuid.UUID) (bool, error)
	Clear(ctx context.Context, itemID uuid.UUID) error
}

var _ LiveJobs = (*reminder.Registry)(nil)

// ReminderDeliverer processes reminder delivery jobs
type ReminderDeliverer struct {
	notifier   reminder.Notifier
	registry   LiveJobs
	jobQueue   queue.JobQueue // For re-enqueueing jobs with delays
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewReminderDeliverer creates a new reminder deliverer
func NewReminderDeliverer(notifier reminder.Notifier, registry LiveJobs, jobQueue queue.JobQueue, retryDelay time.Duration, logger *zap.Logger) *ReminderDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &ReminderDeliverer{
		notifier:   notifier,
		registry:   registry,
		jobQueue:   jobQueue,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// ProcessJob processes a job based on its type
func (d *ReminderDeliverer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		d.logger.Info("reminder_job_expired",
			zap.String("job_id", job.ID.String()),
			zap.String("item_id", job.ItemID.String()),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack expired job: %w", ackErr)
		}
		return nil
	}

	// Delivered early by the broker; put it back until NotBefore
	if !job.ShouldProcess() {
		return d.requeue(ctx, msg, job)
	}

	switch job.Type {
	case queue.JobTypeReminderDelivery:
		delivered, err := d.deliver(ctx, job)
		if err != nil {
			return d.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		if delivered {
			d.logger.Info("reminder_job_completed",
				zap.String("job_id", job.ID.String()),
				zap.String("item_id", job.ItemID.String()),
				zap.Int("retry_count", job.RetryCount),
			)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			d.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// deliver notifies the user if job is still the live job for its item.
// It reports false when the job was superseded or cancelled.
func (d *ReminderDeliverer) deliver(ctx context.Context, job *queue.Job) (bool, error) {
	if job.Reminder == nil {
		return false, fmt.Errorf("reminder payload is required for %s job", job.Type)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "reminder.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("item_id", job.ItemID.String()),
		attribute.Int("retry_count", job.RetryCount),
	)

	live, err := d.registry.IsLive(ctx, job.ItemID, job.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check live job: %w", err)
	}
	if !live {
		d.logger.Debug("reminder_job_superseded",
			zap.String("job_id", job.ID.String()),
			zap.String("item_id", job.ItemID.String()),
		)
		return false, nil
	}

	err = d.notifier.Notify(ctx, reminder.Notification{
		ItemID: job.ItemID,
		Title:  job.Reminder.Title,
		Body:   job.Reminder.Body,
		FireAt: job.Reminder.FireAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to notify: %w", err)
	}

	if !job.Reminder.Repeats {
		if clearErr := d.registry.Clear(ctx, job.ItemID); clearErr != nil {
			d.logger.Warn("failed_to_clear_delivered_reminder",
				zap.String("item_id", job.ItemID.String()),
				zap.Error(clearErr),
			)
		}
	}
	return true, nil
}

// requeue puts a job that arrived before NotBefore back on the delayed exchange.
func (d *ReminderDeliverer) requeue(ctx context.Context, msg queue.MessageInterface, job *queue.Job) error {
	if d.jobQueue == nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			return fmt.Errorf("failed to nack early job: %w", nackErr)
		}
		return nil
	}
	if err := d.jobQueue.Enqueue(ctx, job); err != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			d.logger.Warn("failed_to_nack_early_job", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue early job: %w", err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack early job: %w", ackErr)
	}
	d.logger.Debug("reminder_job_not_ready",
		zap.String("job_id", job.ID.String()),
		zap.Timep("not_before", job.NotBefore),
	)
	return nil
}

// handleJobError re-enqueues a failed job with backoff, or dead-letters it
// once its retries are used up.
func (d *ReminderDeliverer) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if job.CanRetry() && d.jobQueue != nil {
		delay := d.backoff(job.RetryCount)
		retry := job.RetryAfter(delay)

		if enqueueErr := d.jobQueue.Enqueue(ctx, retry); enqueueErr != nil {
			d.logger.Warn("failed_to_reenqueue_reminder_job",
				zap.String("job_id", job.ID.String()),
				zap.Error(enqueueErr),
			)
			// Fall back to nack with requeue
			if nackErr := msg.Nack(true); nackErr != nil {
				d.logger.Warn("failed_to_nack_reminder_job", zap.Error(nackErr))
			}
			return fmt.Errorf("delivery failed, failed to re-enqueue: %w", enqueueErr)
		}

		if ackErr := msg.Ack(); ackErr != nil {
			d.logger.Warn("failed_to_ack_before_retry", zap.Error(ackErr))
		}
		d.logger.Warn("reminder_delivery_retry_scheduled",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", retry.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		return fmt.Errorf("delivery failed (will retry): %w", err)
	}

	// Max retries exceeded, send to DLQ
	d.logger.Error("reminder_delivery_failed",
		zap.String("job_id", job.ID.String()),
		zap.String("item_id", job.ItemID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		d.logger.Warn("failed_to_nack_job_to_dlq", zap.Error(nackErr))
	}
	return fmt.Errorf("delivery failed (max retries): %w", err)
}

// backoff doubles the retry delay per attempt.
func (d *ReminderDeliverer) backoff(retryCount int) time.Duration {
	delay := d.retryDelay
	for i := 0; i < retryCount && delay < time.Hour; i++ {
		delay *= 2
	}
	return delay
}
