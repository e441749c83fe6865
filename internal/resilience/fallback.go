package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sainte-ai/emotion-engine/internal/observe"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] fails or
// sits behind an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the breaker template applied to every backend in the
	// group. Its Name field is overwritten with each backend's registered
	// name.
	CircuitBreaker CircuitBreakerConfig

	// Metrics receives the per-backend request and error counters. Nil
	// selects [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// backend pairs a provider value with its dedicated circuit breaker.
type backend[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup chains a primary backend with zero or more fallbacks of the
// same provider type. A call is routed to the first backend whose breaker
// admits it and that returns success; each attempt is counted on
// [observe.Metrics.ProviderRequests] under the group's pipeline-stage kind
// ("scorer", "stt").
//
// Backends must be registered before the group serves traffic; after that
// the group is safe for concurrent use.
type FallbackGroup[T any] struct {
	kind     string
	cfg      FallbackConfig
	metrics  *observe.Metrics
	backends []backend[T]
}

// NewFallbackGroup creates a group for one pipeline stage with primary as the
// preferred backend. Fallbacks are added with [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](kind string, primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	fg := &FallbackGroup[T]{kind: kind, cfg: cfg, metrics: m}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a backend. Backends are tried in registration order,
// after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.backends = append(fg.backends, backend[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// ExecuteWithResult tries fn against each backend in order until one
// succeeds, returning that backend's result. Backends with open breakers are
// skipped without counting a request. Returns [ErrAllFailed] wrapping the
// last error when no backend succeeds.
//
// This is a package-level function because Go does not support method-level
// type parameters.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.backends {
		b := &fg.backends[i]
		var result R
		err := b.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(b.value)
			return callErr
		})
		switch {
		case err == nil:
			fg.metrics.RecordProviderRequest(ctx, b.name, fg.kind, "ok")
			return result, nil
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("skipping backend, circuit open",
				"backend", b.name, "kind", fg.kind)
		default:
			fg.metrics.RecordProviderRequest(ctx, b.name, fg.kind, "error")
			fg.metrics.RecordProviderError(ctx, b.name, fg.kind)
			slog.Warn("backend failed, trying next",
				"backend", b.name, "kind", fg.kind, "error", err)
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
