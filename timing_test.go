package strata

import (
	"math"
	"testing"
)

func TestTimingEndpoints(t *testing.T) {
	funcs := map[string]TimingFunction{
		"linear":      Linear,
		"ease":        Ease,
		"ease-in":     EaseIn,
		"ease-out":    EaseOut,
		"ease-in-out": EaseInOut,
		"out-bounce":  Tween("OutBounce"),
		"in-quad":     Tween("InQuad"),
	}
	for name, f := range funcs {
		t.Run(name, func(t *testing.T) {
			if got := f.Evaluate(0, 1); math.Abs(got) > 1e-3 {
				t.Errorf("Evaluate(0) = %v, want 0", got)
			}
			if got := f.Evaluate(1, 1); math.Abs(got-1) > 1e-3 {
				t.Errorf("Evaluate(1) = %v, want 1", got)
			}
		})
	}
}

func TestTimingClampsInput(t *testing.T) {
	if got := Linear.Evaluate(-3, 1); got != 0 {
		t.Errorf("Evaluate(-3) = %v, want 0", got)
	}
	if got := Linear.Evaluate(7, 1); got != 1 {
		t.Errorf("Evaluate(7) = %v, want 1", got)
	}
}

func TestTimingCubicBezier(t *testing.T) {
	// cubic-bezier(0.25, 0.1, 0.25, 1) at x=0.5 is about 0.8024.
	if got := Ease.Evaluate(0.5, 1); math.Abs(got-0.8024) > 1e-3 {
		t.Errorf("ease(0.5) = %v, want ~0.8024", got)
	}
	// A linear control polygon is the identity.
	lin := CubicBezier(0.25, 0.25, 0.75, 0.75)
	for _, x := range []float64{0.1, 0.3, 0.7, 0.9} {
		if got := lin.Evaluate(x, 1); math.Abs(got-x) > 1e-3 {
			t.Errorf("linear bezier(%v) = %v", x, got)
		}
	}
}

func TestTimingCubicBezierMonotonic(t *testing.T) {
	prev := -1.0
	for i := 0; i <= 100; i++ {
		v := EaseInOut.Evaluate(float64(i)/100, 2)
		if v < prev-1e-9 {
			t.Fatalf("ease-in-out not monotonic at %d: %v < %v", i, v, prev)
		}
		prev = v
	}
}

func TestTimingSteps(t *testing.T) {
	tests := []struct {
		name    string
		f       TimingFunction
		in, out float64
	}{
		{"end 0.3", Steps(4, false), 0.3, 0.25},
		{"end 0.99", Steps(4, false), 0.99, 0.75},
		{"start 0.01", Steps(4, true), 0.01, 0.25},
		{"start 0.5", Steps(4, true), 0.5, 0.5},
		{"zero steps", Steps(0, false), 0.42, 0.42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Evaluate(tt.in, 1); math.Abs(got-tt.out) > 1e-9 {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.in, got, tt.out)
			}
		})
	}
}

func TestTimingTweenCurves(t *testing.T) {
	if got := Tween("OutQuad").Evaluate(0.5, 1); math.Abs(got-0.75) > 1e-3 {
		t.Errorf("OutQuad(0.5) = %v, want 0.75", got)
	}
	if got := Tween("InQuad").Evaluate(0.5, 1); math.Abs(got-0.25) > 1e-3 {
		t.Errorf("InQuad(0.5) = %v, want 0.25", got)
	}
	if got := Tween("NoSuchCurve").Evaluate(0.3, 1); math.Abs(got-0.3) > 1e-6 {
		t.Errorf("unknown curve = %v, want linear 0.3", got)
	}
}
