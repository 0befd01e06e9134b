package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/smart-pantry/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
	}{
		{"GET request", "GET", "/api/v1/items", http.StatusOK},
		{"POST request", "POST", "/api/v1/items", http.StatusCreated},
		{"404 request", "GET", "/notfound", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			middleware := Logging(zap.New(core))(handler)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			middleware.ServeHTTP(w, req)

			resp := w.Result()
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, resp.StatusCode)
			}

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected one http_request log, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("Expected logged status %d, got %v", tt.handlerStatus, fields["status_code"])
			}
			if fields["request_id"] != resp.Header.Get(request.RequestIDHeader) {
				t.Errorf("Expected logged request id to match header")
			}
		})
	}
}

func TestLogging_RequestID(t *testing.T) {
	t.Parallel()

	incoming := uuid.New().String()

	tests := []struct {
		name     string
		header   string
		expectID func(string) bool
	}{
		{"generated when missing", "", func(id string) bool { _, err := uuid.Parse(id); return err == nil }},
		{"kept when valid", incoming, func(id string) bool { return id == incoming }},
		{"replaced when invalid", "<script>", func(id string) bool { return id != "<script>" && id != "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = request.RequestIDFromContext(r.Context())
			})

			req := httptest.NewRequest("GET", "/healthz", nil)
			if tt.header != "" {
				req.Header.Set(request.RequestIDHeader, tt.header)
			}
			w := httptest.NewRecorder()
			Logging(zap.NewNop())(handler).ServeHTTP(w, req)

			got := w.Header().Get(request.RequestIDHeader)
			if !tt.expectID(got) {
				t.Errorf("Unexpected request id %q", got)
			}
			if seen != got {
				t.Errorf("Expected context id %q to match header %q", seen, got)
			}
		})
	}
}
