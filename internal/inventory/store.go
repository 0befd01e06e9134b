// Package inventory holds the ordered in-memory list of items.
package inventory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/validation"
	"github.com/google/uuid"
)

// ErrItemNotFound is returned when no item has the requested id.
var ErrItemNotFound = errors.New("item not found")

// Store owns the item list. Items are kept ordered by expiration date with
// undated items last; callers always receive copies.
type Store struct {
	mu    sync.RWMutex
	items []models.Item
	clock calendar.Clock
	// rev counts mutations since the store was created. Replace keeps it.
	rev uint64
}

// NewStore creates a store seeded with items (kept in the given order).
func NewStore(clock calendar.Clock, items []models.Item) *Store {
	s := &Store{clock: clock}
	s.Replace(items)
	return s
}

// Replace swaps the whole list, used when loading persisted state.
func (s *Store) Replace(items []models.Item) {
	copied := make([]models.Item, 0, len(items))
	for _, item := range items {
		copied = append(copied, item.Clone())
	}
	s.mu.Lock()
	s.items = copied
	s.mu.Unlock()
}

// Create validates the input, derives the notification time and inserts a new
// item at its ordered position.
func (s *Store) Create(name string, expirationDate *time.Time, tod calendar.TimeOfDay, enabled bool, priorDays int) (models.Item, error) {
	clean, err := validation.ValidateItemName(name)
	if err != nil {
		return models.Item{}, fmt.Errorf("invalid item: %w", err)
	}
	if err := validation.ValidatePriorDays(priorDays); err != nil {
		return models.Item{}, fmt.Errorf("invalid item: %w", err)
	}

	notifyAt := calendar.DeriveNotificationInstant(expirationDate, tod, priorDays, s.clock.Now())
	item := models.Item{
		ID:                    uuid.New(),
		Name:                  clean,
		ExpirationDate:        copyTime(expirationDate),
		NotificationTime:      &notifyAt,
		IsNotificationEnabled: enabled,
		PriorDays:             priorDays,
	}

	s.mu.Lock()
	s.insert(item)
	s.rev++
	s.mu.Unlock()

	return item.Clone(), nil
}

// Update applies patch to the item with the given id. A changed expiration
// date moves the item to its new ordered position.
func (s *Store) Update(id uuid.UUID, patch models.ItemPatch) (models.Item, error) {
	var name string
	if patch.Name != nil {
		clean, err := validation.ValidateItemName(*patch.Name)
		if err != nil {
			return models.Item{}, fmt.Errorf("invalid item name: %w", err)
		}
		name = clean
	}
	if patch.PriorDays != nil {
		if err := validation.ValidatePriorDays(*patch.PriorDays); err != nil {
			return models.Item{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Item{}, ErrItemNotFound
	}
	item := s.items[idx]

	if patch.Name != nil {
		item.Name = name
	}
	if patch.NotificationTime != nil {
		item.NotificationTime = copyTime(patch.NotificationTime)
	}
	if patch.IsNotificationEnabled != nil {
		item.IsNotificationEnabled = *patch.IsNotificationEnabled
	}
	if patch.PriorDays != nil {
		item.PriorDays = *patch.PriorDays
	}

	if patch.ExpirationDate != nil {
		item.ExpirationDate = copyTime(patch.ExpirationDate)
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		s.insert(item)
	} else {
		s.items[idx] = item
	}
	s.rev++

	return item.Clone(), nil
}

// Remove deletes the item with the given id and returns it.
func (s *Store) Remove(id uuid.UUID) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Item{}, ErrItemNotFound
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.rev++
	return removed, nil
}

// FindByID returns a copy of the item with the given id.
func (s *Store) FindByID(id uuid.UUID) (models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Item{}, ErrItemNotFound
	}
	return s.items[idx].Clone(), nil
}

// List returns a copy of all items in order.
func (s *Store) List() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out
}

// Revision changes whenever an item is created, updated or removed. Callers
// compare it against the revision they last persisted.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// RemoveAllExpired removes every item whose expiration day is before asOf's
// day and returns them. Items expiring on asOf's day are kept, as are items
// without an expiration date.
func (s *Store) RemoveAllExpired(asOf time.Time) []models.Item {
	today := calendar.StartOfDay(asOf)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.Item
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ExpirationDate != nil && calendar.StartOfDay(item.ExpirationDate.In(asOf.Location())).Before(today) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	if len(removed) > 0 {
		s.rev++
	}
	return removed
}

// insert places item before the first item that expires later. Undated items
// sort as far future. Must be called with mu held.
func (s *Store) insert(item models.Item) {
	pos := len(s.items)
	if item.ExpirationDate != nil {
		for i, existing := range s.items {
			if existing.ExpirationDate == nil || existing.ExpirationDate.After(*item.ExpirationDate) {
				pos = i
				break
			}
		}
	}
	s.items = append(s.items, models.Item{})
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = item
}

func (s *Store) indexOf(id uuid.UUID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
