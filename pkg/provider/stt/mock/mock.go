// Package mock provides a configurable in-memory transcriber for tests.
package mock

import (
	"context"
	"sync"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber implements stt.Transcriber with canned output. Safe for
// concurrent use.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned from every Transcribe call unless TranscribeFunc is set.
	Text string
	// Err, when non-nil, is returned from Transcribe.
	Err error
	// TranscribeFunc, when set, overrides Text and Err entirely.
	TranscribeFunc func(ctx context.Context, clip audio.Clip) (string, error)

	// Clips records every clip passed to Transcribe.
	Clips []audio.Clip
}

// New returns a mock Transcriber that always yields the given text.
func New(text string) *Transcriber {
	return &Transcriber{Text: text}
}

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	t.mu.Lock()
	t.Clips = append(t.Clips, clip)
	fn := t.TranscribeFunc
	text, err := t.Text, t.Err
	t.mu.Unlock()

	if len(clip.Data) == 0 {
		return "", stt.ErrEmptyAudio
	}
	if fn != nil {
		return fn(ctx, clip)
	}
	return text, err
}

// CallCount returns how many times Transcribe was invoked.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Clips)
}
