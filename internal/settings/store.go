// Package settings holds the notification defaults applied to new items.
package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/validation"
)

// Persister loads and saves the settings blob.
type Persister interface {
	LoadSettings(ctx context.Context) models.Settings
	SaveSettings(ctx context.Context, s models.Settings) error
}

// Store is the single settings object. Every mutation is saved immediately.
type Store struct {
	mu      sync.RWMutex
	current models.Settings
	persist Persister
	// dirty is set when a save failed, so Load does not discard the
	// in-memory value in favour of an older persisted one.
	dirty bool
}

// NewStore loads the persisted settings, or the defaults if none exist.
func NewStore(ctx context.Context, persist Persister) *Store {
	return &Store{current: persist.LoadSettings(ctx), persist: persist}
}

// Load re-reads the persisted settings and returns them.
func (s *Store) Load(ctx context.Context) models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		s.current = s.persist.LoadSettings(ctx)
	}
	return s.current
}

// Current returns the in-memory settings without touching persistence.
func (s *Store) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetDefaultPriorDays changes the default days-before-expiration offset.
func (s *Store) SetDefaultPriorDays(ctx context.Context, days int) (models.Settings, error) {
	if err := validation.ValidatePriorDays(days); err != nil {
		return s.Current(), err
	}
	return s.mutate(ctx, func(m *models.Settings) { m.DefaultPriorDays = days })
}

// SetDefaultEnableNotify changes whether new items start with reminders on.
func (s *Store) SetDefaultEnableNotify(ctx context.Context, enabled bool) (models.Settings, error) {
	return s.mutate(ctx, func(m *models.Settings) { m.DefaultEnableNotify = enabled })
}

// SetDefaultNotifyTime changes the default reminder time of day.
func (s *Store) SetDefaultNotifyTime(ctx context.Context, tod calendar.TimeOfDay) (models.Settings, error) {
	if !tod.Valid() {
		return s.Current(), fmt.Errorf("invalid default notify time %s", tod)
	}
	return s.mutate(ctx, func(m *models.Settings) { m.DefaultNotifyTime = tod })
}

// Save retries a write that failed. Settings a mutation already saved are
// not written again, so a store shared with another process keeps its copy.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked(ctx)
}

func (s *Store) mutate(ctx context.Context, fn func(*models.Settings)) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.current)
	return s.current, s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	if err := s.persist.SaveSettings(ctx, s.current); err != nil {
		s.dirty = true
		return fmt.Errorf("failed to save settings: %w", err)
	}
	s.dirty = false
	return nil
}
