// Package mock provides a configurable in-memory scorer for tests.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
)

// Compile-time interface assertion.
var _ scorer.Provider = (*Scorer)(nil)

// Scorer implements scorer.Provider with canned scores. Safe for concurrent
// use.
type Scorer struct {
	mu sync.Mutex

	// Scores is returned from every Score call unless ScoreFunc is set.
	Scores [3]float64
	// Err, when non-nil, is returned from Score.
	Err error
	// ScoreFunc, when set, overrides Scores and Err entirely.
	ScoreFunc func(ctx context.Context, clip audio.Clip, transcript string) ([3]float64, error)

	// Calls records the transcript of every Score invocation.
	Calls []string
}

// New returns a mock Scorer that always yields the given scores.
func New(scores [3]float64) *Scorer {
	return &Scorer{Scores: scores}
}

// Score implements scorer.Provider.
func (s *Scorer) Score(ctx context.Context, clip audio.Clip, transcript string) ([3]float64, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, transcript)
	fn := s.ScoreFunc
	scores, err := s.Scores, s.Err
	s.mu.Unlock()

	if len(clip.Data) == 0 && strings.TrimSpace(transcript) == "" {
		return [3]float64{}, scorer.ErrEmptyInput
	}
	if fn != nil {
		return fn(ctx, clip, transcript)
	}
	return scores, err
}

// CallCount returns how many times Score was invoked.
func (s *Scorer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}
