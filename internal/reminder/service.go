// Package reminder delivers item reminders at their fire time. The scheduling
// engine talks to it only through Service.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the title of every item reminder.
const DefaultTitle = "Smart Pantry Notification"

// BodyFor returns the reminder text for an item.
func BodyFor(name string) string {
	return fmt.Sprintf("%s will expire soon.", name)
}

// Request is one reminder to deliver. ID is the item id, so a later request
// with the same id replaces the earlier one.
type Request struct {
	ID      uuid.UUID
	Title   string
	Body    string
	FireAt  time.Time
	Repeats bool
}

// Service is the external reminder delivery service.
type Service interface {
	// Schedule registers a reminder, replacing any pending one with the same id.
	Schedule(ctx context.Context, req Request) error
	// Cancel removes pending reminders. Unknown ids are ignored.
	Cancel(ctx context.Context, ids ...uuid.UUID) error
}

// Notification is what a Notifier delivers.
type Notification struct {
	ItemID uuid.UUID `json:"item_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	FireAt time.Time `json:"fire_at"`
}
