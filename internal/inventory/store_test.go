package inventory

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/google/uuid"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTestStore() *Store {
	return NewStore(calendar.FixedClock{T: testNow}, nil)
}

func names(items []models.Item) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return strings.Join(out, ",")
}

func TestCreate_DerivesNotificationTime(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	item, err := s.Create("Milk", day(2024, 6, 10), calendar.TimeOfDay{Hour: 9}, true, 3)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	want := time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC)
	if item.NotificationTime == nil || !item.NotificationTime.Equal(want) {
		t.Errorf("Expected notification time %s, got %v", want, item.NotificationTime)
	}
	if item.ID == uuid.Nil {
		t.Error("Expected id to be assigned")
	}
	if !item.IsNotificationEnabled || item.PriorDays != 3 {
		t.Errorf("Unexpected item: %+v", item)
	}
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	if _, err := s.Create(strings.Repeat("a", 41), nil, calendar.Midnight, false, 0); err == nil {
		t.Error("Expected error for 41-character name")
	}
	if _, err := s.Create("  ", nil, calendar.Midnight, false, 0); err == nil {
		t.Error("Expected error for blank name")
	}
	if _, err := s.Create("Milk", nil, calendar.Midnight, false, 31); err == nil {
		t.Error("Expected error for 31 prior days")
	}
	if s.Len() != 0 {
		t.Errorf("Expected no items after failed creates, got %d", s.Len())
	}
}

func TestCreate_Ordering(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	mustCreate := func(name string, exp *time.Time) {
		if _, err := s.Create(name, exp, calendar.Midnight, false, 0); err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
	}

	mustCreate("June10", day(2024, 6, 10))
	mustCreate("Undated", nil)
	mustCreate("June5", day(2024, 6, 5))
	mustCreate("June20", day(2024, 6, 20))
	mustCreate("June10b", day(2024, 6, 10))

	got := names(s.List())
	want := "June5,June10,June10b,June20,Undated"
	if got != want {
		t.Errorf("Expected order %s, got %s", want, got)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	a, _ := s.Create("A", day(2024, 6, 5), calendar.Midnight, false, 0)
	_, _ = s.Create("B", day(2024, 6, 10), calendar.Midnight, false, 0)

	newName := "Apples"
	updated, err := s.Update(a.ID, models.ItemPatch{Name: &newName, ExpirationDate: day(2024, 6, 15)})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "Apples" {
		t.Errorf("Expected renamed item, got %s", updated.Name)
	}
	if got := names(s.List()); got != "B,Apples" {
		t.Errorf("Expected item to move after B, got %s", got)
	}

	tooMany := 40
	if _, err := s.Update(a.ID, models.ItemPatch{PriorDays: &tooMany}); err == nil {
		t.Error("Expected error for out-of-range prior days")
	}

	if _, err := s.Update(uuid.New(), models.ItemPatch{Name: &newName}); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestRemoveAndFind(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	item, _ := s.Create("Milk", nil, calendar.Midnight, false, 0)

	found, err := s.FindByID(item.ID)
	if err != nil || found.Name != "Milk" {
		t.Fatalf("FindByID failed: %+v, %v", found, err)
	}

	if _, err := s.Remove(item.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := s.FindByID(item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound after remove, got %v", err)
	}
	if _, err := s.Remove(item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound on second remove, got %v", err)
	}
}

func TestList_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	_, _ = s.Create("Milk", day(2024, 6, 10), calendar.Midnight, false, 0)

	list := s.List()
	list[0].Name = "Changed"
	*list[0].ExpirationDate = time.Time{}

	again := s.List()
	if again[0].Name != "Milk" || again[0].ExpirationDate.IsZero() {
		t.Error("List exposed internal state")
	}
}

func TestRemoveAllExpired(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	today := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, _ = s.Create("Yesterday", day(2024, 5, 31), calendar.Midnight, false, 0)
	_, _ = s.Create("Today", day(2024, 6, 1), calendar.Midnight, false, 0)
	_, _ = s.Create("Tomorrow", day(2024, 6, 2), calendar.Midnight, false, 0)
	_, _ = s.Create("Undated", nil, calendar.Midnight, false, 0)

	removed := s.RemoveAllExpired(today.Add(15 * time.Hour))
	if len(removed) != 1 || removed[0].Name != "Yesterday" {
		t.Errorf("Expected only Yesterday removed, got %s", names(removed))
	}
	if got := names(s.List()); got != "Today,Tomorrow,Undated" {
		t.Errorf("Unexpected remaining items: %s", got)
	}

	if again := s.RemoveAllExpired(today); len(again) != 0 {
		t.Errorf("Expected nothing removed on second call, got %d", len(again))
	}
}

func TestRevision(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	milk, err := s.Create("Milk", day(2024, 5, 20), calendar.TimeOfDay{Hour: 9}, true, 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	name := "Oat milk"

	tests := []struct {
		name    string
		mutate  func()
		changed bool
	}{
		{name: "replace keeps the revision", mutate: func() { s.Replace(s.List()) }},
		{name: "read keeps the revision", mutate: func() { _, _ = s.FindByID(milk.ID) }},
		{name: "update", mutate: func() { _, _ = s.Update(milk.ID, models.ItemPatch{Name: &name}) }, changed: true},
		{name: "failed update", mutate: func() { _, _ = s.Update(uuid.New(), models.ItemPatch{Name: &name}) }},
		{name: "nothing expired", mutate: func() { s.RemoveAllExpired(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) }},
		{name: "expired removed", mutate: func() { s.RemoveAllExpired(testNow) }, changed: true},
		{name: "create", mutate: func() { _, _ = s.Create("Eggs", nil, calendar.TimeOfDay{Hour: 9}, false, 1) }, changed: true},
	}

	// Steps share one store and run in order
	for _, tt := range tests {
		before := s.Revision()
		tt.mutate()
		if got := s.Revision() != before; got != tt.changed {
			t.Errorf("%s: revision changed = %v, want %v", tt.name, got, tt.changed)
		}
	}
}
