package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is a tracked grocery item. NotificationTime is always derived from
// ExpirationDate, PriorDays and a time of day; it is never set directly by
// a caller of the API.
type Item struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	ExpirationDate        *time.Time `json:"expirationDate,omitempty"`
	NotificationTime      *time.Time `json:"notificationTime,omitempty"`
	IsNotificationEnabled bool       `json:"isNotificationEnabled"`
	PriorDays             int        `json:"priordate"`
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	out.ExpirationDate = cloneTime(i.ExpirationDate)
	out.NotificationTime = cloneTime(i.NotificationTime)
	return out
}

// HasReminder reports whether the item may have a reminder issued for it.
func (i Item) HasReminder() bool {
	return i.IsNotificationEnabled && i.NotificationTime != nil
}

// ItemPatch holds optional changes to an item. Nil fields are left untouched.
type ItemPatch struct {
	Name                  *string
	ExpirationDate        *time.Time
	NotificationTime      *time.Time
	IsNotificationEnabled *bool
	PriorDays             *int
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
