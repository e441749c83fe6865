package session

import (
	"context"
	"sync"
	"time"

	"github.com/sainte-ai/emotion-engine/internal/blend"
	"github.com/sainte-ai/emotion-engine/internal/observe"
)

// DefaultTTL is how long an idle session's trajectory is kept before expiry.
const DefaultTTL = 30 * time.Minute

// janitorInterval is how often the background sweep removes expired entries.
const janitorInterval = time.Minute

// Compile-time interface assertion.
var _ Store = (*Memory)(nil)

type memoryEntry struct {
	dist    blend.Distribution
	expires time.Time
}

// Memory is an in-process [Store] with per-entry TTL expiry. Expired entries
// are dropped lazily on Load and swept periodically by a background janitor
// goroutine. Safe for concurrent use.
type Memory struct {
	ttl     time.Duration
	metrics *observe.Metrics

	mu      sync.Mutex
	entries map[string]memoryEntry

	done     chan struct{}
	stopOnce sync.Once
}

// MemoryOption configures a [Memory] store.
type MemoryOption func(*Memory)

// WithTTL overrides the idle expiry. d must be positive; non-positive values
// keep the default.
func WithTTL(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithMetrics reports the live entry count on the given metrics'
// ActiveSessions gauge. Without it the store records nothing.
func WithMetrics(met *observe.Metrics) MemoryOption {
	return func(m *Memory) { m.metrics = met }
}

// NewMemory creates an in-memory trajectory store and starts its janitor.
// Call Close to stop the janitor when the store is no longer needed.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		ttl:     DefaultTTL,
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	go m.janitor()
	return m
}

// Load implements [Store].
func (m *Memory) Load(ctx context.Context, sessionID string) (blend.Distribution, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[sessionID]
	if !ok {
		return blend.Distribution{}, false, nil
	}
	if time.Now().After(e.expires) {
		delete(m.entries, sessionID)
		m.gauge(ctx, -1)
		return blend.Distribution{}, false, nil
	}
	return e.dist, true, nil
}

// Save implements [Store].
func (m *Memory) Save(ctx context.Context, sessionID string, dist blend.Distribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[sessionID]; !exists {
		m.gauge(ctx, 1)
	}
	m.entries[sessionID] = memoryEntry{dist: dist, expires: time.Now().Add(m.ttl)}
	return nil
}

// Forget implements [Store].
func (m *Memory) Forget(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[sessionID]; exists {
		delete(m.entries, sessionID)
		m.gauge(ctx, -1)
	}
	return nil
}

// Close stops the janitor goroutine. Calling Close more than once is safe.
func (m *Memory) Close() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

// Len returns the number of live entries, counting entries that have expired
// but not yet been swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// janitor periodically removes expired entries so that abandoned sessions do
// not accumulate.
func (m *Memory) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for id, e := range m.entries {
				if now.After(e.expires) {
					delete(m.entries, id)
					m.gauge(context.Background(), -1)
				}
			}
			m.mu.Unlock()
		}
	}
}

// gauge adjusts the ActiveSessions gauge when metrics are configured.
// Must be called with m.mu held so deltas match map mutations.
func (m *Memory) gauge(ctx context.Context, delta int64) {
	if m.metrics != nil {
		m.metrics.ActiveSessions.Add(ctx, delta)
	}
}
