package codec

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/kv"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestItems_RoundTrip(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("test", -5*60*60)
	items := []models.Item{
		{
			ID:                    uuid.New(),
			Name:                  "Milk",
			ExpirationDate:        ptrTime(time.Date(2024, 6, 10, 0, 0, 0, 0, loc)),
			NotificationTime:      ptrTime(time.Date(2024, 6, 7, 9, 0, 0, 0, loc)),
			IsNotificationEnabled: true,
			PriorDays:             3,
		},
		{
			ID:   uuid.New(),
			Name: "Salt",
		},
	}

	data, err := EncodeItems(items)
	if err != nil {
		t.Fatalf("EncodeItems failed: %v", err)
	}
	got, err := DecodeItems(data)
	if err != nil {
		t.Fatalf("DecodeItems failed: %v", err)
	}

	if len(got) != len(items) {
		t.Fatalf("Expected %d items, got %d", len(items), len(got))
	}
	for i := range items {
		want, have := items[i], got[i]
		if want.ID != have.ID || want.Name != have.Name ||
			want.IsNotificationEnabled != have.IsNotificationEnabled || want.PriorDays != have.PriorDays {
			t.Errorf("Item %d mismatch: want %+v, got %+v", i, want, have)
		}
		if !equalTimePtr(want.ExpirationDate, have.ExpirationDate) {
			t.Errorf("Item %d expiration mismatch", i)
		}
		if !equalTimePtr(want.NotificationTime, have.NotificationTime) {
			t.Errorf("Item %d notification time mismatch", i)
		}
	}
}

func TestDecodeItems_RegeneratesMissingID(t *testing.T) {
	t.Parallel()

	data := []byte(`[{"name":"Eggs","isNotificationEnabled":false,"priordate":2},{"id":"","name":"Ham","isNotificationEnabled":false,"priordate":0}]`)
	got, err := DecodeItems(data)
	if err != nil {
		t.Fatalf("DecodeItems failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(got))
	}
	for _, item := range got {
		if item.ID == uuid.Nil {
			t.Errorf("Expected generated id for %s", item.Name)
		}
	}
	if got[0].ID == got[1].ID {
		t.Error("Expected distinct generated ids")
	}

	// The generated id is stable once written back
	again, err := EncodeItems(got)
	if err != nil {
		t.Fatalf("EncodeItems failed: %v", err)
	}
	reread, err := DecodeItems(again)
	if err != nil {
		t.Fatalf("DecodeItems failed: %v", err)
	}
	if reread[0].ID != got[0].ID {
		t.Errorf("Expected id %s to be stable, got %s", got[0].ID, reread[0].ID)
	}
}

func TestDecodeItems_EnforcesInvariants(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 60)
	data := []byte(`[{"id":"` + uuid.NewString() + `","name":"` + long + `","isNotificationEnabled":true,"priordate":45}]`)
	got, err := DecodeItems(data)
	if err != nil {
		t.Fatalf("DecodeItems failed: %v", err)
	}
	if len([]rune(got[0].Name)) != 40 {
		t.Errorf("Expected name truncated to 40, got %d", len([]rune(got[0].Name)))
	}
	if got[0].PriorDays != 30 {
		t.Errorf("Expected prior days clamped to 30, got %d", got[0].PriorDays)
	}
}

func TestDecodeItems_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := DecodeItems([]byte(`{"not":"a list"}`)); err == nil {
		t.Error("Expected error for malformed blob")
	}
}

func TestSettings_Decode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want models.Settings
	}{
		{
			name: "all fields",
			data: `{"default_prior_day":3,"default_enable_notify":true,"default_notify_time":"09:00"}`,
			want: models.Settings{DefaultPriorDays: 3, DefaultEnableNotify: true, DefaultNotifyTime: calendar.TimeOfDay{Hour: 9}},
		},
		{
			name: "timestamp time",
			data: `{"default_prior_day":1,"default_enable_notify":false,"default_notify_time":"2024-01-01T18:30:00Z"}`,
			want: models.Settings{DefaultPriorDays: 1, DefaultNotifyTime: calendar.TimeOfDay{Hour: 18, Minute: 30}},
		},
		{
			name: "missing fields default",
			data: `{}`,
			want: models.DefaultSettings(),
		},
		{
			name: "days clamped",
			data: `{"default_prior_day":-2}`,
			want: models.DefaultSettings(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeSettings([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeSettings failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestRecipes_RoundTrip(t *testing.T) {
	t.Parallel()

	recipes := []models.Recipe{{ID: uuid.New(), Name: "Omelette", Information: "Eggs\nSalt"}}
	data, err := EncodeRecipes(recipes)
	if err != nil {
		t.Fatalf("EncodeRecipes failed: %v", err)
	}
	got, err := DecodeRecipes(data)
	if err != nil {
		t.Fatalf("DecodeRecipes failed: %v", err)
	}
	if !reflect.DeepEqual(recipes, got) {
		t.Errorf("Expected %+v, got %+v", recipes, got)
	}
}

func TestRepository_LoadFallbacks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewRepository(store, zap.NewNop())

	// Nothing persisted
	if items := repo.LoadItems(ctx); len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
	if s := repo.LoadSettings(ctx); s != models.DefaultSettings() {
		t.Errorf("Expected default settings, got %+v", s)
	}
	if f := repo.LoadFavorites(ctx); len(f) != 0 {
		t.Errorf("Expected no favorites, got %d", len(f))
	}

	// Corrupt blobs decode to empty data
	_ = store.Put(ctx, ItemsKey, []byte("garbage"))
	_ = store.Put(ctx, SettingsKey, []byte("garbage"))
	_ = store.Put(ctx, FavoritesKey, []byte("garbage"))
	if items := repo.LoadItems(ctx); items == nil || len(items) != 0 {
		t.Errorf("Expected empty item list, got %v", items)
	}
	if s := repo.LoadSettings(ctx); s != models.DefaultSettings() {
		t.Errorf("Expected default settings, got %+v", s)
	}
	if f := repo.LoadFavorites(ctx); len(f) != 0 {
		t.Errorf("Expected no favorites, got %d", len(f))
	}
}

func TestRepository_SaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewRepository(kv.NewMemoryStore(), nil)

	items := []models.Item{{ID: uuid.New(), Name: "Bread", PriorDays: 1}}
	if err := repo.SaveItems(ctx, items); err != nil {
		t.Fatalf("SaveItems failed: %v", err)
	}
	if got := repo.LoadItems(ctx); len(got) != 1 || got[0].ID != items[0].ID {
		t.Errorf("Unexpected items: %+v", got)
	}

	s := models.Settings{DefaultPriorDays: 2, DefaultEnableNotify: true, DefaultNotifyTime: calendar.TimeOfDay{Hour: 8}}
	if err := repo.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if got := repo.LoadSettings(ctx); got != s {
		t.Errorf("Expected %+v, got %+v", s, got)
	}
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
