// Package blend implements the emotion blending pipeline: it converts raw
// classifier scores over the fixed three-category emotion space (calm,
// guarded, lit) into a normalized probability distribution, optionally
// smooths that distribution against a previous one for temporal continuity,
// classifies the result into a human-readable blend label, and maps it to
// continuous modulation parameters for downstream TTS and avatar rendering.
//
// Everything in this package is pure computation over three floats: no I/O,
// no logging, no shared state. All functions are safe for concurrent use.
// Distributions are immutable value types — every operation returns a new
// value and never mutates its inputs.
package blend

import (
	"errors"
	"fmt"
	"math"
)

// Tolerance is the maximum absolute deviation from 1.0 permitted for the sum
// of a distribution's components.
const Tolerance = 1e-6

const (
	// DefaultSharpness is the softmax temperature used by [Pipeline] when the
	// caller does not override it. Lower values sharpen the distribution
	// toward the dominant category; higher values flatten it toward uniform.
	DefaultSharpness = 0.7

	// DefaultRetention is the smoothing weight given to the previous
	// distribution by [Pipeline]. 0 means no smoothing, 1 means the previous
	// distribution is kept unchanged.
	DefaultRetention = 0.3
)

// Validation errors. Both are raised before any computation proceeds and are
// never silently corrected beyond the documented clamping steps.
var (
	// ErrInvalidParameter indicates an out-of-domain tunable, such as a
	// non-positive sharpness or a retention outside [0, 1].
	ErrInvalidParameter = errors.New("blend: invalid parameter")

	// ErrInvalidDistribution indicates a malformed probability input:
	// NaN or infinite components, negative values, or a sum that deviates
	// from 1.0 by more than [Tolerance].
	ErrInvalidDistribution = errors.New("blend: invalid distribution")
)

// Category identifies one of the three fixed emotion categories.
type Category string

const (
	CategoryCalm    Category = "calm"
	CategoryGuarded Category = "guarded"
	CategoryLit     Category = "lit"
)

// Categories lists the three categories in canonical score-vector order.
var Categories = [3]Category{CategoryCalm, CategoryGuarded, CategoryLit}

// Distribution is a probability distribution over the three emotion
// categories. A valid distribution has every component in [0, 1] and the
// components summing to 1.0 within [Tolerance].
type Distribution struct {
	Calm    float64 `json:"calm"`
	Guarded float64 `json:"guarded"`
	Lit     float64 `json:"lit"`
}

// Vector returns the distribution as a score vector in canonical
// [calm, guarded, lit] order.
func (d Distribution) Vector() [3]float64 {
	return [3]float64{d.Calm, d.Guarded, d.Lit}
}

// Sum returns the total probability mass. For a valid distribution this is
// 1.0 within [Tolerance].
func (d Distribution) Sum() float64 {
	return d.Calm + d.Guarded + d.Lit
}

// Dominant returns the category with the highest probability and that
// probability. Ties resolve in canonical order (calm, guarded, lit).
func (d Distribution) Dominant() (Category, float64) {
	cat, best := CategoryCalm, d.Calm
	if d.Guarded > best {
		cat, best = CategoryGuarded, d.Guarded
	}
	if d.Lit > best {
		cat, best = CategoryLit, d.Lit
	}
	return cat, best
}

// Validate reports whether d is a well-formed probability distribution.
// It returns an error wrapping [ErrInvalidDistribution] when any component
// is NaN, infinite, or outside [0, 1], or when the components do not sum to
// 1.0 within [Tolerance].
func (d Distribution) Validate() error {
	for i, p := range d.Vector() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidDistribution, Categories[i])
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s = %v is outside [0, 1]", ErrInvalidDistribution, Categories[i], p)
		}
	}
	if diff := math.Abs(d.Sum() - 1); diff > Tolerance {
		return fmt.Errorf("%w: components sum to %v, want 1.0 ±%v", ErrInvalidDistribution, d.Sum(), Tolerance)
	}
	return nil
}

// Normalize converts a raw score vector (logits or unnormalized scores in
// [calm, guarded, lit] order) into a probability distribution using a
// temperature-scaled softmax: each score is divided by sharpness, the
// maximum is subtracted for numerical stability, and the exponentials are
// normalized by their sum. Each resulting component is clamped into [0, 1]
// to guard against floating-point drift.
//
// sharpness must be > 0; otherwise an error wrapping [ErrInvalidParameter]
// is returned. Raw scores must be finite.
func Normalize(raw [3]float64, sharpness float64) (Distribution, error) {
	if sharpness <= 0 || math.IsNaN(sharpness) {
		return Distribution{}, fmt.Errorf("%w: sharpness must be > 0, got %v", ErrInvalidParameter, sharpness)
	}
	for i, s := range raw {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Distribution{}, fmt.Errorf("%w: raw score for %s is not finite", ErrInvalidDistribution, Categories[i])
		}
	}

	var scaled [3]float64
	maxScaled := math.Inf(-1)
	for i, s := range raw {
		scaled[i] = s / sharpness
		if scaled[i] > maxScaled {
			maxScaled = scaled[i]
		}
	}

	var exps [3]float64
	sum := 0.0
	for i, s := range scaled {
		exps[i] = math.Exp(s - maxScaled)
		sum += exps[i]
	}

	var probs [3]float64
	for i, e := range exps {
		probs[i] = clamp01(e / sum)
	}
	return Distribution{Calm: probs[0], Guarded: probs[1], Lit: probs[2]}, nil
}

// Smooth blends a new distribution against the previous one by per-category
// linear interpolation:
//
//	result[k] = (1 - retention)*current[k] + retention*previous[k]
//
// retention must lie in [0, 1]; 0 returns current exactly and 1 returns
// previous exactly. Because both inputs sum to 1 and the weights sum to 1,
// the result sums to 1 by affine closure — Smooth deliberately performs no
// renormalization, so a smoothing bug surfaces as an invalid distribution
// instead of being masked.
func Smooth(previous, current Distribution, retention float64) (Distribution, error) {
	if retention < 0 || retention > 1 || math.IsNaN(retention) {
		return Distribution{}, fmt.Errorf("%w: retention must be in [0, 1], got %v", ErrInvalidParameter, retention)
	}
	if err := previous.Validate(); err != nil {
		return Distribution{}, fmt.Errorf("previous: %w", err)
	}
	if err := current.Validate(); err != nil {
		return Distribution{}, fmt.Errorf("current: %w", err)
	}
	switch retention {
	case 0:
		return current, nil
	case 1:
		return previous, nil
	}
	return Distribution{
		Calm:    (1-retention)*current.Calm + retention*previous.Calm,
		Guarded: (1-retention)*current.Guarded + retention*previous.Guarded,
		Lit:     (1-retention)*current.Lit + retention*previous.Lit,
	}, nil
}

// Label describes the qualitative shape of a distribution.
type Label string

const (
	LabelHopefulCalm     Label = "hopeful calm"
	LabelGuardedOptimism Label = "guarded optimism"
	LabelResolutePeace   Label = "resolute peace"
	LabelPureCalm        Label = "pure calm"
	LabelPureGuarded     Label = "pure guarded"
	LabelPureLit         Label = "pure lit"
	LabelNeutralBlend    Label = "neutral blend"
)

// Classification thresholds. Category pairs are not mutually exclusive at
// the pair threshold, so the evaluation order in [Classify] is part of the
// contract.
const (
	pureThreshold = 0.6
	pairThreshold = 0.3
)

// Classify derives the blend label for a distribution. Evaluation is
// first-match in fixed priority order: the three two-category mixed states
// (pair threshold 0.3), then the three pure single-category states (pure
// threshold 0.6) in calm, guarded, lit order, and finally "neutral blend"
// when no threshold is met.
func Classify(d Distribution) Label {
	switch {
	case d.Calm > pairThreshold && d.Lit > pairThreshold:
		return LabelHopefulCalm
	case d.Guarded > pairThreshold && d.Lit > pairThreshold:
		return LabelGuardedOptimism
	case d.Calm > pairThreshold && d.Guarded > pairThreshold:
		return LabelResolutePeace
	case d.Calm > pureThreshold:
		return LabelPureCalm
	case d.Guarded > pureThreshold:
		return LabelPureGuarded
	case d.Lit > pureThreshold:
		return LabelPureLit
	default:
		return LabelNeutralBlend
	}
}

// Tuning carries the two pipeline tunables. The zero value is not valid;
// use [DefaultTuning] and override fields as needed.
type Tuning struct {
	// Sharpness is the softmax temperature passed to [Normalize].
	Sharpness float64

	// Retention is the smoothing weight passed to [Smooth] when a previous
	// distribution is supplied.
	Retention float64
}

// DefaultTuning returns the standard pipeline tuning
// ([DefaultSharpness], [DefaultRetention]).
func DefaultTuning() Tuning {
	return Tuning{Sharpness: DefaultSharpness, Retention: DefaultRetention}
}

// Result is the output of [Pipeline]: the final (possibly smoothed)
// distribution, its blend label, and the derived modulation parameters.
type Result struct {
	Distribution Distribution `json:"blend_vector"`
	Label        Label        `json:"emotion_blend"`
	Modulation   Modulation   `json:"modulation"`
}

// Pipeline is the sole externally-invoked entry point of the blend engine.
// It normalizes the raw score vector, smooths against previous when previous
// is non-nil (nil means "no smoothing — use the normalized output directly"),
// classifies the result, and maps it to modulation parameters. Pipeline is
// pure: no side effects, no I/O.
func Pipeline(raw [3]float64, previous *Distribution, tuning Tuning) (Result, error) {
	dist, err := Normalize(raw, tuning.Sharpness)
	if err != nil {
		return Result{}, err
	}

	if previous != nil {
		dist, err = Smooth(*previous, dist, tuning.Retention)
		if err != nil {
			return Result{}, err
		}
	}

	mod, err := MapToModulation(dist)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Distribution: dist,
		Label:        Classify(dist),
		Modulation:   mod,
	}, nil
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
