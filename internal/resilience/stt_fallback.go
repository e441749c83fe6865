package resilience

import (
	"context"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/stt"
)

// STTFallback implements [stt.Transcriber] with automatic failover across
// multiple STT backends. Each backend has its own circuit breaker, so a
// flapping whisper-server is bypassed in favour of a healthy fallback (e.g.,
// the OpenAI API) until its breaker closes again.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup("stt", primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcriber as a fallback.
func (f *STTFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Transcribe runs the clip against the first healthy backend. If the primary
// fails, subsequent fallbacks are tried in registration order.
func (f *STTFallback) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	return ExecuteWithResult(ctx, f.group, func(t stt.Transcriber) (string, error) {
		return t.Transcribe(ctx, clip)
	})
}
