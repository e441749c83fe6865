package blend

import (
	"errors"
	"math"
	"testing"
)

func TestMapToModulation_PureCalmBoundary(t *testing.T) {
	mod, err := MapToModulation(Distribution{Calm: 1, Guarded: 0, Lit: 0})
	if err != nil {
		t.Fatalf("MapToModulation: %v", err)
	}

	if mod.PitchShift != -0.08 {
		t.Errorf("pitch = %v, want -0.08 (most negative achievable)", mod.PitchShift)
	}
	if mod.SpeedScale != 0.9 {
		t.Errorf("speed = %v, want 0.9", mod.SpeedScale)
	}
	if mod.GlowIntensity != 0.4 {
		t.Errorf("glow intensity = %v, want 0.4 (calm weight)", mod.GlowIntensity)
	}
	if mod.EasingCurve != EasingSine {
		t.Errorf("easing = %q, want %q", mod.EasingCurve, EasingSine)
	}
	if mod.GlowColor != "#f59e42" {
		t.Errorf("glow color = %q, want calm anchor #f59e42", mod.GlowColor)
	}
}

func TestMapToModulation_PureLitBoundary(t *testing.T) {
	mod, err := MapToModulation(Distribution{Calm: 0, Guarded: 0, Lit: 1})
	if err != nil {
		t.Fatalf("MapToModulation: %v", err)
	}

	if mod.PitchShift != 0.08 {
		t.Errorf("pitch = %v, want 0.08 (positive maximum)", mod.PitchShift)
	}
	if mod.SpeedScale != 1.1 {
		t.Errorf("speed = %v, want 1.1", mod.SpeedScale)
	}
	if mod.GlowIntensity != 0.9 {
		t.Errorf("glow intensity = %v, want 0.9 (lit weight)", mod.GlowIntensity)
	}
	if mod.EasingCurve != EasingCubic {
		t.Errorf("easing = %q, want %q", mod.EasingCurve, EasingCubic)
	}
	if mod.GlowColor != "#7ed321" {
		t.Errorf("glow color = %q, want lit anchor #7ed321", mod.GlowColor)
	}
}

func TestMapToModulation_PureGuarded(t *testing.T) {
	mod, err := MapToModulation(Distribution{Calm: 0, Guarded: 1, Lit: 0})
	if err != nil {
		t.Fatalf("MapToModulation: %v", err)
	}

	if mod.PitchShift != 0 {
		t.Errorf("pitch = %v, want 0", mod.PitchShift)
	}
	if mod.SpeedScale != 0.85 {
		t.Errorf("speed = %v, want 0.85", mod.SpeedScale)
	}
	if mod.GlowIntensity != 0.25 {
		t.Errorf("glow intensity = %v, want 0.25 (guarded weight)", mod.GlowIntensity)
	}
	if mod.EasingCurve != EasingEaseIn {
		t.Errorf("easing = %q, want %q", mod.EasingCurve, EasingEaseIn)
	}
	if mod.GlowColor != "#4a90e2" {
		t.Errorf("glow color = %q, want guarded anchor #4a90e2", mod.GlowColor)
	}
}

func TestMapToModulation_Deterministic(t *testing.T) {
	d := Distribution{Calm: 0.21, Guarded: 0.33, Lit: 0.46}

	first, err := MapToModulation(d)
	if err != nil {
		t.Fatalf("MapToModulation: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := MapToModulation(d)
		if err != nil {
			t.Fatalf("MapToModulation (repeat %d): %v", i, err)
		}
		if again != first {
			t.Fatalf("repeat %d: %+v != %+v; identical input must yield identical output", i, again, first)
		}
	}
}

func TestMapToModulation_EasingThresholds(t *testing.T) {
	cases := []struct {
		name string
		d    Distribution
		want EasingCurve
	}{
		{"calm majority", Distribution{Calm: 0.51, Guarded: 0.25, Lit: 0.24}, EasingSine},
		{"guarded majority", Distribution{Calm: 0.24, Guarded: 0.51, Lit: 0.25}, EasingEaseIn},
		{"lit majority falls through to cubic", Distribution{Calm: 0.1, Guarded: 0.2, Lit: 0.7}, EasingCubic},
		{"no majority", Distribution{Calm: 0.4, Guarded: 0.35, Lit: 0.25}, EasingCubic},
		{"calm at exactly 0.5 is not a majority", Distribution{Calm: 0.5, Guarded: 0.3, Lit: 0.2}, EasingCubic},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mod, err := MapToModulation(tc.d)
			if err != nil {
				t.Fatalf("MapToModulation: %v", err)
			}
			if mod.EasingCurve != tc.want {
				t.Errorf("easing = %q, want %q", mod.EasingCurve, tc.want)
			}
		})
	}
}

func TestMapToModulation_Rounding(t *testing.T) {
	d := Distribution{Calm: 1.0 / 3, Guarded: 1.0 / 3, Lit: 1.0 / 3}

	mod, err := MapToModulation(d)
	if err != nil {
		t.Fatalf("MapToModulation: %v", err)
	}

	// (1/3 - 1/3) * 0.08 = 0 exactly; speed = 0.9 + 0.2/3 - 0.05/3 = 0.95.
	if mod.PitchShift != 0 {
		t.Errorf("pitch = %v, want 0", mod.PitchShift)
	}
	if mod.SpeedScale != 0.95 {
		t.Errorf("speed = %v, want 0.95 after rounding to 3 decimals", mod.SpeedScale)
	}
	// (0.4 + 0.25 + 0.9) / 3 = 0.51666... -> 0.52 at 2 decimals.
	if mod.GlowIntensity != 0.52 {
		t.Errorf("glow intensity = %v, want 0.52 after rounding to 2 decimals", mod.GlowIntensity)
	}
}

func TestMapToModulation_RejectsMalformedInput(t *testing.T) {
	cases := []Distribution{
		{Calm: math.NaN(), Guarded: 0.5, Lit: 0.5},
		{Calm: math.Inf(1), Guarded: 0, Lit: 0},
		{Calm: -0.2, Guarded: 0.7, Lit: 0.5},
		{Calm: 0.5, Guarded: 0.1, Lit: 0.1}, // sum far from 1
	}

	for _, d := range cases {
		if _, err := MapToModulation(d); !errors.Is(err, ErrInvalidDistribution) {
			t.Errorf("MapToModulation(%+v) error = %v, want ErrInvalidDistribution", d, err)
		}
		if _, err := MapDiscrete(d); !errors.Is(err, ErrInvalidDistribution) {
			t.Errorf("MapDiscrete(%+v) error = %v, want ErrInvalidDistribution", d, err)
		}
	}
}

func TestMapDiscrete_KeyedOnDominant(t *testing.T) {
	cases := []struct {
		name      string
		d         Distribution
		wantCurve EasingCurve
		wantGlow  float64
	}{
		{"calm dominant", Distribution{Calm: 0.45, Guarded: 0.3, Lit: 0.25}, EasingSine, 0.45},
		{"guarded dominant", Distribution{Calm: 0.3, Guarded: 0.45, Lit: 0.25}, EasingEaseIn, 0.45},
		{"lit dominant", Distribution{Calm: 0.25, Guarded: 0.3, Lit: 0.45}, EasingCubic, 0.45},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mod, err := MapDiscrete(tc.d)
			if err != nil {
				t.Fatalf("MapDiscrete: %v", err)
			}
			if mod.EasingCurve != tc.wantCurve {
				t.Errorf("easing = %q, want %q", mod.EasingCurve, tc.wantCurve)
			}
			if mod.GlowIntensity != tc.wantGlow {
				t.Errorf("glow intensity = %v, want dominant probability %v", mod.GlowIntensity, tc.wantGlow)
			}
		})
	}
}

func TestMapDiscrete_OmitsGuardedSlowdown(t *testing.T) {
	d := Distribution{Calm: 0.1, Guarded: 0.5, Lit: 0.4}

	mod, err := MapDiscrete(d)
	if err != nil {
		t.Fatalf("MapDiscrete: %v", err)
	}
	// 0.9 + 0.4*0.2 with no guarded term.
	if mod.SpeedScale != 0.98 {
		t.Errorf("speed = %v, want 0.98", mod.SpeedScale)
	}
}

func TestInterpolateColor_WeightedBlend(t *testing.T) {
	// Equal thirds of amber (245,158,66), blue (74,144,226), green (126,211,33):
	// channels (148.33, 171, 108.33) truncate to (148, 171, 108).
	d := Distribution{Calm: 1.0 / 3, Guarded: 1.0 / 3, Lit: 1.0 / 3}
	if got := interpolateColor(d); got != "#94ab6c" {
		t.Errorf("interpolateColor = %q, want #94ab6c", got)
	}
}

func TestInterpolateColor_HalfCalmHalfGuarded(t *testing.T) {
	// (245+74)/2=159.5->159, (158+144)/2=151, (66+226)/2=146.
	d := Distribution{Calm: 0.5, Guarded: 0.5, Lit: 0}
	if got := interpolateColor(d); got != "#9f9792" {
		t.Errorf("interpolateColor = %q, want #9f9792", got)
	}
}
