package resilience

import (
	"context"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
)

// ScorerFallback implements [scorer.Provider] with automatic failover across
// multiple scoring backends. The usual wiring is an LLM or remote classifier
// as the primary with the rule scorer as the last-resort fallback, since the
// rule scorer is local and cannot fail for operational reasons.
type ScorerFallback struct {
	group *FallbackGroup[scorer.Provider]
}

// Compile-time interface assertion.
var _ scorer.Provider = (*ScorerFallback)(nil)

// NewScorerFallback creates a [ScorerFallback] with primary as the preferred
// backend.
func NewScorerFallback(primary scorer.Provider, primaryName string, cfg FallbackConfig) *ScorerFallback {
	return &ScorerFallback{
		group: NewFallbackGroup("scorer", primary, primaryName, cfg),
	}
}

// AddFallback registers an additional scorer as a fallback.
func (f *ScorerFallback) AddFallback(name string, p scorer.Provider) {
	f.group.AddFallback(name, p)
}

// Score runs the input against the first healthy backend. If the primary
// fails, subsequent fallbacks are tried in registration order.
func (f *ScorerFallback) Score(ctx context.Context, clip audio.Clip, transcript string) ([3]float64, error) {
	return ExecuteWithResult(ctx, f.group, func(p scorer.Provider) ([3]float64, error) {
		return p.Score(ctx, clip, transcript)
	})
}
