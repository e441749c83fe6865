package session

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sainte-ai/emotion-engine/internal/blend"
	"github.com/sainte-ai/emotion-engine/internal/observe"
)

func TestMemory_SaveLoad(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	dist := blend.Distribution{Calm: 0.5, Guarded: 0.3, Lit: 0.2}
	if err := m.Save(ctx, "s1", dist); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := m.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load: session not found after Save")
	}
	if got != dist {
		t.Errorf("Load = %+v, want %+v", got, dist)
	}
}

func TestMemory_LoadMissing(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, ok, err := m.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Error("Load of an unknown session should report not found")
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(WithTTL(10 * time.Millisecond))
	defer m.Close()
	ctx := context.Background()

	if err := m.Save(ctx, "s1", blend.Distribution{Calm: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := m.Load(ctx, "s1"); ok {
		t.Error("Load should report not found after the TTL has passed")
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy expiry", m.Len())
	}
}

func TestMemory_SaveResetsTTL(t *testing.T) {
	m := NewMemory(WithTTL(50 * time.Millisecond))
	defer m.Close()
	ctx := context.Background()

	dist := blend.Distribution{Lit: 1}
	m.Save(ctx, "s1", dist)
	time.Sleep(30 * time.Millisecond)
	m.Save(ctx, "s1", dist)
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := m.Load(ctx, "s1"); !ok {
		t.Error("a re-saved session should survive past the original expiry")
	}
}

func TestMemory_Forget(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	m.Save(ctx, "s1", blend.Distribution{Calm: 1})
	if err := m.Forget(ctx, "s1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok, _ := m.Load(ctx, "s1"); ok {
		t.Error("Load should report not found after Forget")
	}

	// Forgetting an unknown session is not an error.
	if err := m.Forget(ctx, "never-existed"); err != nil {
		t.Errorf("Forget of an unknown session: %v", err)
	}
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	m := NewMemory()
	m.Close()
	m.Close()
}

// activeSessions reads the ActiveSessions gauge value from the reader.
func activeSessions(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "emotion.active_sessions" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				return 0
			}
			return sum.DataPoints[0].Value
		}
	}
	return 0
}

func TestMemory_TracksActiveSessionsGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m := NewMemory(WithTTL(20*time.Millisecond), WithMetrics(met))
	defer m.Close()
	ctx := context.Background()

	m.Save(ctx, "s1", blend.Distribution{Calm: 1})
	m.Save(ctx, "s2", blend.Distribution{Lit: 1})
	m.Save(ctx, "s1", blend.Distribution{Guarded: 1}) // overwrite, not a new session
	if got := activeSessions(t, reader); got != 2 {
		t.Fatalf("gauge = %d after two distinct saves, want 2", got)
	}

	m.Forget(ctx, "s2")
	if got := activeSessions(t, reader); got != 1 {
		t.Fatalf("gauge = %d after Forget, want 1", got)
	}

	// Lazy expiry on Load decrements too.
	time.Sleep(30 * time.Millisecond)
	m.Load(ctx, "s1")
	if got := activeSessions(t, reader); got != 0 {
		t.Errorf("gauge = %d after TTL expiry, want 0", got)
	}
}
