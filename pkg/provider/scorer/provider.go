// Package scorer defines the Provider interface for emotion scoring backends.
//
// A scorer consumes a normalised audio clip together with its transcript and
// produces a raw score vector over the fixed emotion categories in
// [calm, guarded, lit] order. Scores are deliberately unnormalised: the blend
// engine applies its own temperature-scaled softmax, so providers may return
// logits, heuristic accumulators, or already-normalised probabilities — the
// contract boundary is the raw vector, which keeps upstream scoring logic
// swappable without touching the pipeline.
//
// Implementations must be safe for concurrent use.
package scorer

import (
	"context"
	"errors"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
)

// ErrEmptyInput is returned when a provider is invoked with neither audio
// samples nor transcript text to score.
var ErrEmptyInput = errors.New("scorer: no audio or transcript to score")

// Provider is the abstraction over any emotion scoring backend.
type Provider interface {
	// Score computes raw emotion scores for the clip and transcript in
	// [calm, guarded, lit] order. clip is expected to be 16 kHz mono PCM16;
	// providers that only use the transcript may ignore it. Either input may
	// be empty, but not both.
	Score(ctx context.Context, clip audio.Clip, transcript string) ([3]float64, error)
}
