package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for all spans the service emits.
const tracerName = "github.com/sainte-ai/emotion-engine"

// StartSpan opens a span on the globally registered tracer provider. The
// handlers use it around the two provider calls on the hot path
// ("stt.transcribe", "scorer.score"); [Middleware] uses it for the enclosing
// HTTP server span. The caller must End the returned span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// Tracer returns the service tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// CorrelationID returns the hex trace ID of the span in ctx, or "" when the
// request carries no trace. [Middleware] reflects it to clients as the
// X-Correlation-ID header, so a user-reported ID can be looked up directly
// in traces and logs.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default logger annotated with the trace and span IDs
// from ctx, so a request's log lines can be joined with its trace. Without
// an active span it returns the default logger unchanged.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
