package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
)

// mockPersister records saves in memory.
type mockPersister struct {
	stored  *models.Settings
	saves   int
	saveErr error
}

var _ Persister = (*mockPersister)(nil)

func (m *mockPersister) LoadSettings(_ context.Context) models.Settings {
	if m.stored == nil {
		return models.DefaultSettings()
	}
	return *m.stored
}

func (m *mockPersister) SaveSettings(_ context.Context, s models.Settings) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.stored = &s
	return nil
}

func TestNewStore_Defaults(t *testing.T) {
	t.Parallel()

	s := NewStore(context.Background(), &mockPersister{})
	if got := s.Current(); got != models.DefaultSettings() {
		t.Errorf("Expected defaults, got %+v", got)
	}
}

func TestNewStore_LoadsPersisted(t *testing.T) {
	t.Parallel()

	persisted := models.Settings{DefaultPriorDays: 5, DefaultEnableNotify: true, DefaultNotifyTime: calendar.TimeOfDay{Hour: 7}}
	s := NewStore(context.Background(), &mockPersister{stored: &persisted})
	if got := s.Current(); got != persisted {
		t.Errorf("Expected %+v, got %+v", persisted, got)
	}
}

func TestMutationsPersistImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &mockPersister{}
	s := NewStore(ctx, p)

	if _, err := s.SetDefaultPriorDays(ctx, 3); err != nil {
		t.Fatalf("SetDefaultPriorDays failed: %v", err)
	}
	if _, err := s.SetDefaultEnableNotify(ctx, true); err != nil {
		t.Fatalf("SetDefaultEnableNotify failed: %v", err)
	}
	if _, err := s.SetDefaultNotifyTime(ctx, calendar.TimeOfDay{Hour: 9, Minute: 30}); err != nil {
		t.Fatalf("SetDefaultNotifyTime failed: %v", err)
	}

	if p.saves != 3 {
		t.Errorf("Expected 3 saves, got %d", p.saves)
	}
	want := models.Settings{DefaultPriorDays: 3, DefaultEnableNotify: true, DefaultNotifyTime: calendar.TimeOfDay{Hour: 9, Minute: 30}}
	if *p.stored != want {
		t.Errorf("Expected persisted %+v, got %+v", want, *p.stored)
	}
	if got := s.Load(ctx); got != want {
		t.Errorf("Expected Load to return %+v, got %+v", want, got)
	}
}

func TestMutationsRejectInvalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &mockPersister{}
	s := NewStore(ctx, p)

	if _, err := s.SetDefaultPriorDays(ctx, 31); err == nil {
		t.Error("Expected error for 31 days")
	}
	if _, err := s.SetDefaultNotifyTime(ctx, calendar.TimeOfDay{Hour: 24}); err == nil {
		t.Error("Expected error for 24:00")
	}
	if p.saves != 0 {
		t.Errorf("Expected no saves, got %d", p.saves)
	}
}

func TestLoad_KeepsUnsavedChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &mockPersister{saveErr: errors.New("disk full")}
	s := NewStore(ctx, p)

	if _, err := s.SetDefaultPriorDays(ctx, 4); err == nil {
		t.Fatal("Expected save error")
	}
	if got := s.Load(ctx); got.DefaultPriorDays != 4 {
		t.Errorf("Expected unsaved value 4 to survive Load, got %d", got.DefaultPriorDays)
	}

	p.saveErr = nil
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p.stored.DefaultPriorDays != 4 {
		t.Errorf("Expected 4 persisted, got %d", p.stored.DefaultPriorDays)
	}
}

func TestSave_OnlyRetriesFailedWrites(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failFirst bool
		wantSaves int
	}{
		{name: "clean settings are not rewritten", wantSaves: 1},
		{name: "failed write is retried", failFirst: true, wantSaves: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			p := &mockPersister{}
			if tt.failFirst {
				p.saveErr = errors.New("redis: connection refused")
			}
			s := NewStore(ctx, p)
			_, _ = s.SetDefaultPriorDays(ctx, 2)

			p.saveErr = nil
			if err := s.Save(ctx); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := s.Save(ctx); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if p.saves != tt.wantSaves {
				t.Errorf("Expected %d writes, got %d", tt.wantSaves, p.saves)
			}
		})
	}
}
