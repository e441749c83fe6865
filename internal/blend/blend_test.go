package blend

import (
	"errors"
	"math"
	"testing"
)

// almostEqual reports whether a and b differ by at most tol.
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func mustNormalize(t *testing.T, raw [3]float64, sharpness float64) Distribution {
	t.Helper()
	d, err := Normalize(raw, sharpness)
	if err != nil {
		t.Fatalf("Normalize(%v, %v): %v", raw, sharpness, err)
	}
	return d
}

func TestNormalize_SumsToOne(t *testing.T) {
	cases := []struct {
		name string
		raw  [3]float64
	}{
		{"uniform logits", [3]float64{0, 0, 0}},
		{"calm heavy", [3]float64{2.0, 0.5, 0.5}},
		{"negative logits", [3]float64{-1.5, -0.2, -3.0}},
		{"large spread", [3]float64{100, -100, 0}},
		{"already probabilities", [3]float64{0.2, 0.3, 0.5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := mustNormalize(t, tc.raw, DefaultSharpness)

			if !almostEqual(d.Sum(), 1.0, Tolerance) {
				t.Errorf("sum = %v, want 1.0 ±%v", d.Sum(), Tolerance)
			}
			for i, p := range d.Vector() {
				if p < 0 || p > 1 {
					t.Errorf("%s = %v, want in [0, 1]", Categories[i], p)
				}
			}
		})
	}
}

func TestNormalize_UniformLogits(t *testing.T) {
	d := mustNormalize(t, [3]float64{0, 0, 0}, DefaultSharpness)

	third := 1.0 / 3.0
	for i, p := range d.Vector() {
		if !almostEqual(p, third, 1e-9) {
			t.Errorf("%s = %v, want %v", Categories[i], p, third)
		}
	}
	if got := Classify(d); got != LabelNeutralBlend {
		t.Errorf("Classify = %q, want %q", got, LabelNeutralBlend)
	}
}

func TestNormalize_CalmHeavyScores(t *testing.T) {
	d := mustNormalize(t, [3]float64{2.0, 0.5, 0.5}, 0.7)

	if d.Calm <= 0.6 {
		t.Errorf("calm = %v, want > 0.6", d.Calm)
	}
	if got := Classify(d); got != LabelPureCalm {
		t.Errorf("Classify = %q, want %q", got, LabelPureCalm)
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	// Increasing one raw score while holding the others fixed must strictly
	// increase that category's probability.
	base := [3]float64{0.4, -0.3, 1.1}
	for i := range base {
		lower := mustNormalize(t, base, DefaultSharpness)

		bumped := base
		bumped[i] += 0.25
		higher := mustNormalize(t, bumped, DefaultSharpness)

		if higher.Vector()[i] <= lower.Vector()[i] {
			t.Errorf("bumping %s: probability %v -> %v, want strict increase",
				Categories[i], lower.Vector()[i], higher.Vector()[i])
		}
	}
}

func TestNormalize_SharpnessControlsConfidence(t *testing.T) {
	raw := [3]float64{1.0, 0.0, 0.0}

	sharp := mustNormalize(t, raw, 0.2)
	flat := mustNormalize(t, raw, 2.0)

	if sharp.Calm <= flat.Calm {
		t.Errorf("lower sharpness should concentrate mass: sharp calm = %v, flat calm = %v",
			sharp.Calm, flat.Calm)
	}
}

func TestNormalize_InvalidSharpness(t *testing.T) {
	for _, sharpness := range []float64{0, -0.7, math.NaN()} {
		_, err := Normalize([3]float64{1, 2, 3}, sharpness)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Normalize(sharpness=%v) error = %v, want ErrInvalidParameter", sharpness, err)
		}
	}
}

func TestNormalize_NonFiniteScores(t *testing.T) {
	for _, raw := range [][3]float64{
		{math.NaN(), 0, 0},
		{0, math.Inf(1), 0},
		{0, 0, math.Inf(-1)},
	} {
		_, err := Normalize(raw, DefaultSharpness)
		if !errors.Is(err, ErrInvalidDistribution) {
			t.Errorf("Normalize(%v) error = %v, want ErrInvalidDistribution", raw, err)
		}
	}
}

func TestSmooth_Identities(t *testing.T) {
	prev := Distribution{Calm: 0.7, Guarded: 0.2, Lit: 0.1}
	cur := Distribution{Calm: 0.1, Guarded: 0.3, Lit: 0.6}

	atZero, err := Smooth(prev, cur, 0)
	if err != nil {
		t.Fatalf("Smooth(retention=0): %v", err)
	}
	if atZero != cur {
		t.Errorf("Smooth(retention=0) = %+v, want current %+v exactly", atZero, cur)
	}

	atOne, err := Smooth(prev, cur, 1)
	if err != nil {
		t.Fatalf("Smooth(retention=1): %v", err)
	}
	if atOne != prev {
		t.Errorf("Smooth(retention=1) = %+v, want previous %+v exactly", atOne, prev)
	}
}

func TestSmooth_AffineClosure(t *testing.T) {
	prev := mustNormalize(t, [3]float64{1.2, 0.4, -0.3}, DefaultSharpness)
	cur := mustNormalize(t, [3]float64{-0.5, 0.9, 2.2}, DefaultSharpness)

	for _, retention := range []float64{0.1, 0.3, 0.5, 0.77, 0.99} {
		got, err := Smooth(prev, cur, retention)
		if err != nil {
			t.Fatalf("Smooth(retention=%v): %v", retention, err)
		}
		if !almostEqual(got.Sum(), 1.0, Tolerance) {
			t.Errorf("Smooth(retention=%v) sum = %v, want 1.0 ±%v", retention, got.Sum(), Tolerance)
		}
	}
}

func TestSmooth_Interpolates(t *testing.T) {
	prev := Distribution{Calm: 1, Guarded: 0, Lit: 0}
	cur := Distribution{Calm: 0, Guarded: 0, Lit: 1}

	got, err := Smooth(prev, cur, 0.3)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	if !almostEqual(got.Calm, 0.3, 1e-12) || !almostEqual(got.Lit, 0.7, 1e-12) {
		t.Errorf("Smooth = %+v, want calm 0.3, lit 0.7", got)
	}
}

func TestSmooth_InvalidRetention(t *testing.T) {
	d := Distribution{Calm: 1, Guarded: 0, Lit: 0}
	for _, retention := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := Smooth(d, d, retention)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Smooth(retention=%v) error = %v, want ErrInvalidParameter", retention, err)
		}
	}
}

func TestSmooth_RejectsMalformedInputs(t *testing.T) {
	valid := Distribution{Calm: 1, Guarded: 0, Lit: 0}
	broken := Distribution{Calm: 0.5, Guarded: 0.1, Lit: 0.1}

	if _, err := Smooth(broken, valid, 0.3); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("Smooth(broken previous) error = %v, want ErrInvalidDistribution", err)
	}
	if _, err := Smooth(valid, broken, 0.3); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("Smooth(broken current) error = %v, want ErrInvalidDistribution", err)
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	cases := []struct {
		name string
		d    Distribution
		want Label
	}{
		// Mixed states win over pure states: calm 0.35 and lit 0.4 both
		// clear the pair threshold before any single-category branch runs.
		{"hopeful calm beats singles", Distribution{Calm: 0.35, Guarded: 0.25, Lit: 0.4}, LabelHopefulCalm},
		{"guarded optimism", Distribution{Calm: 0.2, Guarded: 0.4, Lit: 0.4}, LabelGuardedOptimism},
		{"resolute peace", Distribution{Calm: 0.45, Guarded: 0.45, Lit: 0.1}, LabelResolutePeace},
		{"pure calm", Distribution{Calm: 0.7, Guarded: 0.15, Lit: 0.15}, LabelPureCalm},
		{"pure guarded", Distribution{Calm: 0.15, Guarded: 0.7, Lit: 0.15}, LabelPureGuarded},
		{"pure lit", Distribution{Calm: 0.15, Guarded: 0.15, Lit: 0.7}, LabelPureLit},
		{"pair just above threshold", Distribution{Calm: 0.34, Guarded: 0.36, Lit: 0.3}, LabelResolutePeace},
		{"nothing crosses", Distribution{Calm: 0.3, Guarded: 0.3, Lit: 0.4}, LabelNeutralBlend},
		{"uniform", Distribution{Calm: 1.0 / 3, Guarded: 1.0 / 3, Lit: 1.0 / 3}, LabelNeutralBlend},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.d); got != tc.want {
				t.Errorf("Classify(%+v) = %q, want %q", tc.d, got, tc.want)
			}
		})
	}
}

func TestClassify_SpecScenario(t *testing.T) {
	// calm 0.35 and lit 0.4 both exceed 0.3, so "hopeful calm" matches
	// before the lower-priority single-category branches.
	d := Distribution{Calm: 0.35, Guarded: 0.25, Lit: 0.4}
	if got := Classify(d); got != LabelHopefulCalm {
		t.Errorf("Classify = %q, want %q", got, LabelHopefulCalm)
	}
}

func TestPipeline_NoPrevious(t *testing.T) {
	res, err := Pipeline([3]float64{2.0, 0.5, 0.5}, nil, DefaultTuning())
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}

	if res.Distribution.Calm <= 0.6 {
		t.Errorf("calm = %v, want > 0.6", res.Distribution.Calm)
	}
	if res.Label != LabelPureCalm {
		t.Errorf("label = %q, want %q", res.Label, LabelPureCalm)
	}
	if res.Modulation.EasingCurve != EasingSine {
		t.Errorf("easing = %q, want %q", res.Modulation.EasingCurve, EasingSine)
	}
}

func TestPipeline_WithPrevious(t *testing.T) {
	previous := Distribution{Calm: 1, Guarded: 0, Lit: 0}

	res, err := Pipeline([3]float64{0, 0, 0}, &previous, DefaultTuning())
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}

	// 0.7 * 1/3 + 0.3 * 1 for calm.
	wantCalm := 0.7/3 + 0.3
	if !almostEqual(res.Distribution.Calm, wantCalm, 1e-9) {
		t.Errorf("smoothed calm = %v, want %v", res.Distribution.Calm, wantCalm)
	}
	if !almostEqual(res.Distribution.Sum(), 1.0, Tolerance) {
		t.Errorf("smoothed sum = %v, want 1.0 ±%v", res.Distribution.Sum(), Tolerance)
	}
}

func TestPipeline_SmoothingConverges(t *testing.T) {
	// Repeated identical raw scores must converge the smoothed distribution
	// toward the unsmoothed one instead of oscillating.
	raw := [3]float64{0.2, 0.1, 1.9}
	target := mustNormalize(t, raw, DefaultSharpness)

	prev := Distribution{Calm: 1, Guarded: 0, Lit: 0}
	lastGap := math.Abs(prev.Lit - target.Lit)
	for i := 0; i < 10; i++ {
		res, err := Pipeline(raw, &prev, DefaultTuning())
		if err != nil {
			t.Fatalf("Pipeline step %d: %v", i, err)
		}
		gap := math.Abs(res.Distribution.Lit - target.Lit)
		if gap >= lastGap && lastGap > 1e-12 {
			t.Fatalf("step %d: gap %v did not shrink from %v", i, gap, lastGap)
		}
		prev, lastGap = res.Distribution, gap
	}
}

func TestPipeline_InvalidTuning(t *testing.T) {
	if _, err := Pipeline([3]float64{1, 2, 3}, nil, Tuning{Sharpness: 0, Retention: 0.3}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero sharpness error = %v, want ErrInvalidParameter", err)
	}

	previous := Distribution{Calm: 1, Guarded: 0, Lit: 0}
	if _, err := Pipeline([3]float64{1, 2, 3}, &previous, Tuning{Sharpness: 0.7, Retention: 1.5}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("retention 1.5 error = %v, want ErrInvalidParameter", err)
	}
}

func TestDistribution_Dominant(t *testing.T) {
	d := Distribution{Calm: 0.2, Guarded: 0.5, Lit: 0.3}
	cat, p := d.Dominant()
	if cat != CategoryGuarded || p != 0.5 {
		t.Errorf("Dominant = %q/%v, want guarded/0.5", cat, p)
	}
}

func TestDistribution_Validate(t *testing.T) {
	cases := []struct {
		name    string
		d       Distribution
		wantErr bool
	}{
		{"valid", Distribution{Calm: 0.2, Guarded: 0.3, Lit: 0.5}, false},
		{"valid boundary", Distribution{Calm: 1, Guarded: 0, Lit: 0}, false},
		{"sum drift within tolerance", Distribution{Calm: 0.2 + 5e-7, Guarded: 0.3, Lit: 0.5}, false},
		{"sum too low", Distribution{Calm: 0.2, Guarded: 0.2, Lit: 0.2}, true},
		{"negative component", Distribution{Calm: -0.1, Guarded: 0.6, Lit: 0.5}, true},
		{"component above one", Distribution{Calm: 1.2, Guarded: -0.1, Lit: -0.1}, true},
		{"nan", Distribution{Calm: math.NaN(), Guarded: 0.5, Lit: 0.5}, true},
		{"inf", Distribution{Calm: math.Inf(1), Guarded: 0, Lit: 0}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalidDistribution) {
				t.Errorf("Validate(%+v) = %v, want ErrInvalidDistribution", tc.d, err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate(%+v) = %v, want nil", tc.d, err)
			}
		})
	}
}
