package exporter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerWrapper hides whether tracing is enabled from the code that creates spans.
// With a nil TracerProvider it falls back to the noop provider, so callers never
// need nil checks on the returned spans.
type TracerWrapper struct {
	tracer trace.Tracer
}

// NewTracerWrapper creates a wrapper around tp, or around a noop provider when tp is nil.
//
// Example:
//
//	tracing := NewTracerWrapper(tp, "a10-exporter/axapi-client")
//	ctx, span := tracing.StartSpan(ctx, "axapi.auth", trace.SpanKindClient)
//	defer span.End()
func NewTracerWrapper(tp trace.TracerProvider, name string) *TracerWrapper {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &TracerWrapper{tracer: tp.Tracer(name)}
}

// StartSpan starts a span of the given kind. The returned span is never nil.
func (w *TracerWrapper) StartSpan(ctx context.Context, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(kind)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return w.tracer.Start(ctx, operation, opts...)
}

// Tracer returns the underlying tracer.
func (w *TracerWrapper) Tracer() trace.Tracer {
	return w.tracer
}
