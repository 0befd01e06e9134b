package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/benvon/smart-pantry/internal/entry"
	"github.com/benvon/smart-pantry/internal/services/barcode"
)

func waitDraft(t *testing.T, env *testEnv) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.draft.Wait(ctx); err != nil {
		t.Fatalf("Draft requests did not finish: %v", err)
	}
}

func TestDraftHandler_TypedFieldsAndConfirm(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodPatch, "/api/v1/draft", map[string]any{"name": "Yogurt", "expiration_input": "20240615"})
	expectStatus(t, rec, http.StatusOK)
	var view entry.View
	decodeData(t, rec, &view)
	if view.Name != "Yogurt" || view.ExpirationInput != "2024-06-15" {
		t.Errorf("Unexpected draft %+v", view)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/draft/confirm", nil)
	expectStatus(t, rec, http.StatusCreated)
	var item ItemResponse
	decodeData(t, rec, &item)
	if item.Name != "Yogurt" || item.ExpirationDate == nil || *item.ExpirationDate != "2024-06-15" {
		t.Errorf("Unexpected item %+v", item)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/draft", nil)
	decodeData(t, rec, &view)
	if view.Name != "" || view.ExpirationInput != "" {
		t.Errorf("Expected draft reset after confirm, got %+v", view)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/draft/confirm", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestDraftHandler_ResetClearsForm(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{})
	env.do(t, http.MethodPatch, "/api/v1/draft", map[string]any{"name": "Yogurt"})

	rec := env.do(t, http.MethodDelete, "/api/v1/draft", nil)
	expectStatus(t, rec, http.StatusOK)
	var view entry.View
	decodeData(t, rec, &view)
	if view.Name != "" {
		t.Errorf("Expected empty name, got %q", view.Name)
	}
}

func TestDraftHandler_Completions(t *testing.T) {
	t.Parallel()

	image := base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		validate   func(*testing.T, entry.View)
	}{
		{
			name:       "name from image",
			path:       "/api/v1/draft/name-from-image",
			body:       map[string]any{"image_base64": image, "mime_type": "image/png"},
			wantStatus: http.StatusAccepted,
			validate: func(t *testing.T, v entry.View) {
				if v.Name != "Cheddar" {
					t.Errorf("Expected Cheddar, got %q", v.Name)
				}
			},
		},
		{
			name:       "name from text",
			path:       "/api/v1/draft/name-from-text",
			body:       map[string]any{"text": "AGED CHEDDAR 200G"},
			wantStatus: http.StatusAccepted,
			validate: func(t *testing.T, v entry.View) {
				if v.Name != "Cheddar" {
					t.Errorf("Expected Cheddar, got %q", v.Name)
				}
			},
		},
		{
			name:       "expiration from text",
			path:       "/api/v1/draft/expiration-from-text",
			body:       map[string]any{"text": "BEST BEFORE 20 JUN 2024"},
			wantStatus: http.StatusAccepted,
			validate: func(t *testing.T, v entry.View) {
				if v.ExpirationInput != "2024-06-20" {
					t.Errorf("Expected 2024-06-20, got %q", v.ExpirationInput)
				}
			},
		},
		{
			name:       "unsupported image type",
			path:       "/api/v1/draft/name-from-image",
			body:       map[string]any{"image_base64": image, "mime_type": "image/gif"},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "image not base64",
			path:       "/api/v1/draft/name-from-image",
			body:       map[string]any{"image_base64": "%%%", "mime_type": "image/png"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty text",
			path:       "/api/v1/draft/name-from-text",
			body:       map[string]any{"text": ""},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, envOptions{completer: &mockCompleter{
				name: "Cheddar",
				date: time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
			}})
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			expectStatus(t, rec, tt.wantStatus)
			if tt.validate == nil {
				return
			}

			waitDraft(t, env)
			rec = env.do(t, http.MethodGet, "/api/v1/draft", nil)
			var view entry.View
			decodeData(t, rec, &view)
			if view.LoadingName || view.LoadingDate {
				t.Error("Expected loading flags cleared")
			}
			tt.validate(t, view)
		})
	}
}

func TestDraftHandler_CompletionFailureKeepsForm(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{completer: &mockCompleter{err: errors.New("upstream down")}})
	env.do(t, http.MethodPatch, "/api/v1/draft", map[string]any{"name": "Typed"})

	rec := env.do(t, http.MethodPost, "/api/v1/draft/name-from-text", map[string]any{"text": "label"})
	expectStatus(t, rec, http.StatusAccepted)
	waitDraft(t, env)

	rec = env.do(t, http.MethodGet, "/api/v1/draft", nil)
	var view entry.View
	decodeData(t, rec, &view)
	if view.Name != "Typed" || view.LoadingName {
		t.Errorf("Expected typed name kept and loading cleared, got %+v", view)
	}
}

func TestDraftHandler_Unavailable(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{})
	for _, path := range []string{"/api/v1/draft/name-from-text", "/api/v1/draft/expiration-from-text"} {
		rec := env.do(t, http.MethodPost, path, map[string]any{"text": "label"})
		expectStatus(t, rec, http.StatusServiceUnavailable)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/draft/barcode", map[string]any{"code": "012345678905"})
	expectStatus(t, rec, http.StatusServiceUnavailable)
	rec = env.do(t, http.MethodPost, "/api/v1/draft/barcode/rearm", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestDraftHandler_Barcode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, envOptions{lookup: stubLookup{name: "Organic Milk"}})

	rec := env.do(t, http.MethodPost, "/api/v1/draft/barcode", map[string]any{"code": "012345678905"})
	expectStatus(t, rec, http.StatusOK)
	var resp BarcodeResponse
	decodeData(t, rec, &resp)
	if resp.Product != "Organic Milk" || resp.Draft.Name != "Organic Milk" {
		t.Errorf("Expected product used as name, got %+v", resp)
	}
	if resp.Draft.Barcode.State != barcode.StateStopped {
		t.Errorf("Expected session stopped after a read, got %s", resp.Draft.Barcode.State)
	}

	// A stopped session ignores further codes until re-armed
	rec = env.do(t, http.MethodPost, "/api/v1/draft/barcode", map[string]any{"code": "012345678905"})
	expectStatus(t, rec, http.StatusConflict)

	rec = env.do(t, http.MethodPost, "/api/v1/draft/barcode/rearm", nil)
	expectStatus(t, rec, http.StatusOK)
	var view entry.View
	decodeData(t, rec, &view)
	if view.Barcode.State != barcode.StateScanning {
		t.Errorf("Expected scanning after rearm, got %s", view.Barcode.State)
	}
}
