package blend

import (
	"fmt"
	"math"
)

// Modulation constants. These are presentation-layer tunings shared with the
// avatar and TTS renderers; changing them changes the rendered output for
// every request, so they are fixed at compile time rather than configurable.
const (
	// pitchGain scales the calm↔lit contrast into a small signed pitch shift.
	pitchGain = 0.08

	// baseSpeed is the speaking-rate scale at a fully guarded-free, lit-free
	// distribution.
	baseSpeed = 0.9

	// speedUpGain and speedDownGain scale the lit (faster) and guarded
	// (slower) contributions to the speaking rate.
	speedUpGain   = 0.2
	speedDownGain = 0.05

	// Glow intensity weights. Lit is the most visually intense state, calm
	// sits in the middle, guarded is dimmest.
	glowWeightCalm    = 0.4
	glowWeightGuarded = 0.25
	glowWeightLit     = 0.9

	// easingThreshold selects the easing curve in the blended mapper: a
	// category must hold a strict majority before its curve wins. The
	// discrete mapper keys on the dominant category instead; see
	// [MapDiscrete].
	easingThreshold = 0.5
)

// Glow anchor colors, one per category. The rendered glow color is the
// probability-weighted average of these RGB triples.
var (
	anchorCalm    = [3]float64{245, 158, 66}  // warm amber
	anchorGuarded = [3]float64{74, 144, 226}  // cool blue
	anchorLit     = [3]float64{126, 211, 33}  // vivid green
)

// EasingCurve names the animation easing applied to glow transitions.
type EasingCurve string

const (
	EasingSine   EasingCurve = "sine"
	EasingEaseIn EasingCurve = "ease-in"
	EasingCubic  EasingCurve = "cubic"
)

// Modulation is the bundle of continuous rendering parameters derived from a
// distribution. It has no lifecycle of its own — it is recomputed fresh from
// the distribution on every request.
type Modulation struct {
	// PitchShift is a small signed TTS pitch adjustment, rounded to three
	// decimals. Negative when calm dominates, positive when lit dominates.
	PitchShift float64 `json:"tts_pitch_shift"`

	// SpeedScale is the TTS speaking-rate multiplier centred near 1.0,
	// rounded to three decimals.
	SpeedScale float64 `json:"tts_speed_scale"`

	// GlowIntensity is the avatar glow brightness in [0, 1], rounded to two
	// decimals.
	GlowIntensity float64 `json:"glow_intensity"`

	// GlowColor is the avatar glow color as a lowercase "#rrggbb" hex
	// string, interpolated between the three category anchor colors.
	GlowColor string `json:"glow_color"`

	// EasingCurve is the glow animation easing.
	EasingCurve EasingCurve `json:"glow_easing_curve"`
}

// MapToModulation deterministically maps a blended distribution to modulation
// parameters. The distribution is validated before any arithmetic proceeds;
// identical input always yields byte-identical output.
//
// The easing curve uses strict-majority thresholds (calm > 0.5 → sine,
// guarded > 0.5 → ease-in, otherwise cubic). The historical per-call-site
// divergence between 0.5 and 0.6 for the guarded branch is resolved here at
// 0.5; callers that key on a discrete dominant category should use
// [MapDiscrete] instead.
func MapToModulation(d Distribution) (Modulation, error) {
	if err := d.Validate(); err != nil {
		return Modulation{}, err
	}

	var curve EasingCurve
	switch {
	case d.Calm > easingThreshold:
		curve = EasingSine
	case d.Guarded > easingThreshold:
		curve = EasingEaseIn
	default:
		curve = EasingCubic
	}

	return Modulation{
		PitchShift:    round3((d.Lit - d.Calm) * pitchGain),
		SpeedScale:    round3(baseSpeed + d.Lit*speedUpGain - d.Guarded*speedDownGain),
		GlowIntensity: round2(clamp01(glowWeightCalm*d.Calm + glowWeightGuarded*d.Guarded + glowWeightLit*d.Lit)),
		GlowColor:     interpolateColor(d),
		EasingCurve:   curve,
	}, nil
}

// MapDiscrete maps a distribution to modulation parameters for the discrete
// (dominant-category) call path. Pitch uses the same calm↔lit contrast as the
// blended mapper; speed omits the guarded slowdown; glow intensity is the
// dominant probability itself; the easing curve is keyed on the dominant
// category rather than a threshold.
func MapDiscrete(d Distribution) (Modulation, error) {
	if err := d.Validate(); err != nil {
		return Modulation{}, err
	}

	dominant, confidence := d.Dominant()

	var curve EasingCurve
	switch dominant {
	case CategoryCalm:
		curve = EasingSine
	case CategoryGuarded:
		curve = EasingEaseIn
	default:
		curve = EasingCubic
	}

	return Modulation{
		PitchShift:    round3((d.Lit - d.Calm) * pitchGain),
		SpeedScale:    round3(baseSpeed + d.Lit*speedUpGain),
		GlowIntensity: round2(confidence),
		GlowColor:     interpolateColor(d),
		EasingCurve:   curve,
	}, nil
}

// interpolateColor blends the three anchor colors by probability weight.
// Each channel is clamped to [0, 255] and truncated to an integer before hex
// encoding, so the output is stable for identical inputs.
func interpolateColor(d Distribution) string {
	var rgb [3]int
	for i := range rgb {
		c := d.Calm*anchorCalm[i] + d.Guarded*anchorGuarded[i] + d.Lit*anchorLit[i]
		if c < 0 {
			c = 0
		}
		if c > 255 {
			c = 255
		}
		rgb[i] = int(c)
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
