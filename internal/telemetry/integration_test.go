package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installRecorder swaps the global provider for one that records spans in
// memory and restores the previous globals when the test ends.
func installRecorder(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	return exporter, tp
}

func TestItemRouteSpans(t *testing.T) {
	exporter, tp := installRecorder(t)

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServerServiceName))
	r.HandleFunc("/api/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods("DELETE")

	const upstreamTrace = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceparent string
		wantTraceID string
	}{
		{name: "new trace"},
		{
			name:        "continues caller trace",
			traceparent: "00-" + upstreamTrace + "-00f067aa0ba902b7-01",
			wantTraceID: upstreamTrace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest("DELETE", "/api/v1/items/3f1c8a52-7d4e-4c1b-9a57-0d2b6f8e9c11", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusNoContent {
				t.Fatalf("Expected 204, got %d", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("flush: %v", err)
			}

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("Expected one span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name != "/api/v1/items/{id}" {
				t.Errorf("Expected span named after the route template, got %q", span.Name)
			}
			if !span.SpanContext.TraceID().IsValid() {
				t.Error("Expected a valid trace ID")
			}
			if tt.wantTraceID != "" && span.SpanContext.TraceID().String() != tt.wantTraceID {
				t.Errorf("Expected trace %s, got %s", tt.wantTraceID, span.SpanContext.TraceID())
			}
		})
	}
}

func TestTracerRecordsReminderSpans(t *testing.T) {
	exporter, _ := installRecorder(t)

	ctx, parent := Tracer().Start(context.Background(), "reminder.schedule")
	_, child := Tracer().Start(ctx, "reminder.deliver")
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("Expected two spans, got %d", len(spans))
	}
	deliver, schedule := spans[0], spans[1]
	if deliver.Name != "reminder.deliver" || schedule.Name != "reminder.schedule" {
		t.Fatalf("Unexpected span order: %q, %q", deliver.Name, schedule.Name)
	}
	if deliver.Parent.SpanID() != schedule.SpanContext.SpanID() {
		t.Error("Expected deliver span to be a child of schedule")
	}
}
