package observe

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// apiRoutes is the service's fixed endpoint set. Request metrics and span
// names are keyed on these so that probing random paths cannot blow up the
// label cardinality of emotion.http.request.duration.
var apiRoutes = map[string]struct{}{
	"/api/transcribe":      {},
	"/api/emotion":         {},
	"/api/emotion/blended": {},
	"/ws/emotion":          {},
	"/healthz":             {},
	"/readyz":              {},
	"/metrics":             {},
}

// routeLabel maps a request path onto the endpoint set, collapsing everything
// else to "other".
func routeLabel(path string) string {
	if _, ok := apiRoutes[path]; ok {
		return path
	}
	return "other"
}

// statusWriter captures the status code written by the downstream handler.
// Unwrap keeps http.ResponseController working through the wrapper, which the
// websocket upgrade on /ws/emotion needs to hijack the connection.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware instruments every request: it picks up W3C trace context from
// the caller (or starts a fresh trace), wraps the request in a server span
// named after the matched route, reflects the trace ID back as
// X-Correlation-ID, and records duration, route, and status on
// [Metrics.HTTPRequestDuration]. Completion is logged through [Logger] so the
// line carries the same trace ID as the span.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeLabel(r.URL.Path)

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", route),
					attribute.Int("status", sw.status),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(sw.status))

			Logger(ctx).Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", elapsed,
			)
		})
	}
}
