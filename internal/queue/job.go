package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeReminderDelivery delivers one item reminder at its fire time
	JobTypeReminderDelivery JobType = "reminder_delivery"
)

// DefaultMaxRetries is how often a failed delivery is retried before it is dead-lettered
const DefaultMaxRetries = 3

// ReminderPayload is the notification carried by a reminder_delivery job.
type ReminderPayload struct {
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	FireAt  time.Time `json:"fire_at"`
	Repeats bool      `json:"repeats"`
}

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID        `json:"id"`
	Type       JobType          `json:"type"`
	ItemID     uuid.UUID        `json:"item_id"`
	NotBefore  *time.Time       `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time       `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	Reminder   *ReminderPayload `json:"reminder,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	RetryCount int              `json:"retry_count"`
	MaxRetries int              `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, itemID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		ItemID:     itemID,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// NewReminderJob creates a reminder_delivery job that becomes ready at
// payload.FireAt and expires window later.
func NewReminderJob(itemID uuid.UUID, payload ReminderPayload, window time.Duration) *Job {
	job := NewJob(JobTypeReminderDelivery, itemID)
	notBefore := payload.FireAt
	notAfter := payload.FireAt.Add(window)
	job.NotBefore = &notBefore
	job.NotAfter = &notAfter
	job.Reminder = &payload
	return job
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryAfter returns a copy of the job, with the same id, that becomes ready
// after delay and carries one more retry.
func (j *Job) RetryAfter(delay time.Duration) *Job {
	notBefore := time.Now().Add(delay)
	retry := *j
	retry.NotBefore = &notBefore
	retry.RetryCount = j.RetryCount + 1
	return &retry
}
