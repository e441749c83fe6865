// Package rule provides a heuristic emotion scorer combining lexical
// indicator matching on the transcript with an RMS-energy reading of the
// audio. It stands in for a trained fusion classifier and implements
// scorer.Provider, so it can be swapped out without touching the pipeline.
//
// Transcript tokens are matched against per-category indicator phrases.
// Multi-word indicators match as substrings; single-word indicators also
// match fuzzily via Jaro-Winkler similarity, which absorbs the small
// spelling drift STT output tends to carry ("definately", "excitedd").
package rule

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
)

// Compile-time interface assertion.
var _ scorer.Provider = (*Scorer)(nil)

// Score accumulation constants. Every category starts at the uniform base;
// indicator hits and energy bands add on top, and the blend engine's softmax
// turns the accumulated scores into a distribution.
const (
	baseScore = 0.33

	calmHitWeight    = 0.1
	guardedHitWeight = 0.1
	litHitWeight     = 0.15

	// Energy bands on normalised RMS (1.0 = full-scale PCM).
	highEnergy = 0.5
	lowEnergy  = 0.2

	energyLitWeight     = 0.2
	energyGuardedWeight = 0.15
	energyCalmWeight    = 0.1

	// defaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a
	// single-word indicator to count as a hit.
	defaultFuzzyThreshold = 0.92
)

// Lexical indicators per category.
var (
	calmIndicators    = []string{"yeah", "actually", "clear", "peaceful", "fine", "okay", "calm", "steady"}
	guardedIndicators = []string{"i mean", "i guess", "maybe", "kind of", "tired", "worried", "uncertain"}
	litIndicators     = []string{"let's do it", "amazing", "excited", "can't wait", "love", "yes", "ready"}
)

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity for fuzzy
// single-word indicator matches. Default: 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.fuzzyThreshold = threshold
	}
}

// Scorer is the heuristic scorer. It is read-only after construction and
// safe for concurrent use.
type Scorer struct {
	fuzzyThreshold float64
}

// New returns a new heuristic [Scorer].
func New(opts ...Option) *Scorer {
	s := &Scorer{fuzzyThreshold: defaultFuzzyThreshold}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score implements scorer.Provider. The context is unused — scoring is a
// bounded local computation.
func (s *Scorer) Score(_ context.Context, clip audio.Clip, transcript string) ([3]float64, error) {
	if len(clip.Data) == 0 && strings.TrimSpace(transcript) == "" {
		return [3]float64{}, scorer.ErrEmptyInput
	}

	calm, guarded, lit := baseScore, baseScore, baseScore

	lower := strings.ToLower(transcript)
	tokens := strings.Fields(lower)

	for _, ind := range calmIndicators {
		if s.matches(lower, tokens, ind) {
			calm += calmHitWeight
		}
	}
	for _, ind := range guardedIndicators {
		if s.matches(lower, tokens, ind) {
			guarded += guardedHitWeight
		}
	}
	for _, ind := range litIndicators {
		if s.matches(lower, tokens, ind) {
			lit += litHitWeight
		}
	}

	if len(clip.Data) > 0 {
		switch energy := audio.RMS(clip.Data); {
		case energy > highEnergy:
			lit += energyLitWeight
		case energy < lowEnergy:
			guarded += energyGuardedWeight
		default:
			calm += energyCalmWeight
		}
	}

	return [3]float64{calm, guarded, lit}, nil
}

// matches reports whether the indicator occurs in the transcript.
// Multi-word indicators match by substring only; single-word indicators
// match by exact token or by Jaro-Winkler similarity above the threshold.
func (s *Scorer) matches(lower string, tokens []string, indicator string) bool {
	if strings.Contains(indicator, " ") {
		return strings.Contains(lower, indicator)
	}
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?;:\"")
		if tok == indicator {
			return true
		}
		if matchr.JaroWinkler(tok, indicator, false) >= s.fuzzyThreshold {
			return true
		}
	}
	return false
}
