package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-pantry/internal/calendar"
	"github.com/benvon/smart-pantry/internal/cascade"
	"github.com/benvon/smart-pantry/internal/entry"
	"github.com/benvon/smart-pantry/internal/kv"
	"github.com/benvon/smart-pantry/internal/models"
	"github.com/benvon/smart-pantry/internal/reminder"
	"github.com/benvon/smart-pantry/internal/services/ai"
	"github.com/benvon/smart-pantry/internal/services/barcode"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeService records pending reminders by item id
type fakeService struct {
	mu      sync.Mutex
	pending map[uuid.UUID]reminder.Request
}

var _ reminder.Service = (*fakeService)(nil)

func (f *fakeService) Schedule(_ context.Context, req reminder.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[req.ID] = req
	return nil
}

func (f *fakeService) Cancel(_ context.Context, ids ...uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.pending, id)
	}
	return nil
}

// mockCompleter answers label requests with fixed values
type mockCompleter struct {
	name string
	date time.Time
	err  error
}

var _ entry.Completer = (*mockCompleter)(nil)

func (m *mockCompleter) NameFromImage(context.Context, []byte, string) (string, error) {
	return m.name, m.err
}

func (m *mockCompleter) NameFromText(context.Context, string) (string, error) {
	return m.name, m.err
}

func (m *mockCompleter) ExpirationFromText(context.Context, string) (time.Time, error) {
	return m.date, m.err
}

// mockSuggester returns a fixed suggestion
type mockSuggester struct {
	suggestion  ai.Suggestion
	err         error
	ingredients []string
	meal        models.MealType
}

var _ RecipeSuggester = (*mockSuggester)(nil)

func (m *mockSuggester) SuggestRecipe(_ context.Context, meal models.MealType, ingredients []string) (ai.Suggestion, error) {
	m.meal = meal
	m.ingredients = ingredients
	return m.suggestion, m.err
}

type stubLookup struct{ name string }

func (s stubLookup) Lookup(context.Context, string) (string, error) { return s.name, nil }

type testEnv struct {
	core      *cascade.Coordinator
	draft     *entry.Draft
	router    *mux.Router
	suggester *mockSuggester
}

type envOptions struct {
	completer entry.Completer
	lookup    barcode.Lookup
	suggester RecipeSuggester
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	ctx := context.Background()
	clock := calendar.FixedClock{T: testNow}
	log := zap.NewNop()
	core := cascade.Open(ctx, kv.NewMemoryStore(), &fakeService{pending: map[uuid.UUID]reminder.Request{}}, clock, log)

	var session *barcode.Session
	if opts.lookup != nil {
		session = barcode.NewSession(opts.lookup)
	}
	draft := entry.NewDraft(core, opts.completer, session, clock, log)
	t.Cleanup(func() {
		_ = draft.Close(context.Background())
		_ = core.Close(context.Background())
	})

	env := &testEnv{core: core, draft: draft, router: mux.NewRouter()}
	if s, ok := opts.suggester.(*mockSuggester); ok {
		env.suggester = s
	}

	api := env.router.PathPrefix("/api/v1").Subrouter()
	items := NewItemHandler(core, clock, log)
	items.RegisterRoutes(api.PathPrefix("/items").Subrouter())
	NewSettingsHandler(core, log).RegisterRoutes(api.PathPrefix("/settings").Subrouter())
	NewDraftHandler(draft, items, log).RegisterRoutes(api.PathPrefix("/draft").Subrouter())
	NewRecipeHandler(core, opts.suggester, log).RegisterRoutes(api.PathPrefix("/recipes").Subrouter())
	NewLifecycleHandler(core, log).RegisterRoutes(api.PathPrefix("/lifecycle").Subrouter())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// envelope is the response wrapper written by respondJSON and respondJSONError
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("Failed to decode data %s: %v", env.Data, err)
		}
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (e *testEnv) createItem(t *testing.T, name, date string) ItemResponse {
	t.Helper()

	body := map[string]any{"name": name}
	if date != "" {
		body["expiration_date"] = date
	}
	rec := e.do(t, http.MethodPost, "/api/v1/items", body)
	expectStatus(t, rec, http.StatusCreated)
	var item ItemResponse
	decodeData(t, rec, &item)
	return item
}
