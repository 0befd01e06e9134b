// Package telemetry configures OpenTelemetry tracing for the API server and the
// reminder worker.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ServerServiceName identifies spans from the API server
	ServerServiceName = "smart-pantry-api"
	// WorkerServiceName identifies spans from the reminder worker
	WorkerServiceName = "smart-pantry-worker"

	instrumentationName = "github.com/benvon/smart-pantry"
)

// Tracer returns the tracer used for spans outside the HTTP middleware.
// It is a no-op until InitTracer has installed a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

type tracerOptions struct {
	exporter sdktrace.SpanExporter
	sampler  sdktrace.Sampler
	version  string
}

// Option adjusts the provider built by InitTracer
type Option func(*tracerOptions)

// WithExporter replaces the OTLP exporter, so spans can be captured in process
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *tracerOptions) { o.exporter = exp }
}

// WithSampleRatio keeps roughly the given fraction of new traces. Spans whose
// caller sampled the trace are always kept.
func WithSampleRatio(ratio float64) Option {
	return func(o *tracerOptions) {
		o.sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// WithServiceVersion records the build version on every span
func WithServiceVersion(v string) Option {
	return func(o *tracerOptions) { o.version = v }
}

// InitTracer installs a global tracer provider that exports to the OTLP/HTTP
// collector at endpoint, plus the W3C trace-context and baggage propagators.
func InitTracer(ctx context.Context, serviceName, endpoint string, opts ...Option) (*sdktrace.TracerProvider, error) {
	o := tracerOptions{sampler: sdktrace.AlwaysSample()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.exporter == nil {
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		o.exporter = exp
	}

	res, err := resource.New(ctx, resource.WithAttributes(serviceAttributes(serviceName, o.version)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(o.exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(o.sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

func serviceAttributes(name, version string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if version != "" {
		attrs = append(attrs, semconv.ServiceVersion(version))
	}
	return attrs
}

// Shutdown flushes pending spans and stops the provider. A nil provider is a no-op.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}
