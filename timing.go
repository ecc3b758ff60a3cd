package strata

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TimingKind selects how a TimingFunction maps progress.
type TimingKind uint8

const (
	TimingLinear      TimingKind = iota
	TimingCubicBezier            // CSS cubic-bezier(X1, Y1, X2, Y2)
	TimingSteps                  // CSS steps(Steps, start|end)
	TimingTween                  // named gween easing curve
)

// TimingFunction maps linear progress in [0, 1] to eased progress. It is a
// plain value so it can travel inside a FrameState.
type TimingFunction struct {
	Kind        TimingKind `json:"kind"`
	X1          float64    `json:"x1,omitempty"`
	Y1          float64    `json:"y1,omitempty"`
	X2          float64    `json:"x2,omitempty"`
	Y2          float64    `json:"y2,omitempty"`
	Steps       int        `json:"steps,omitempty"`
	StepAtStart bool       `json:"stepAtStart,omitempty"`
	Ease        string     `json:"ease,omitempty"`
}

var (
	Linear    = TimingFunction{Kind: TimingLinear}
	Ease      = CubicBezier(0.25, 0.1, 0.25, 1)
	EaseIn    = CubicBezier(0.42, 0, 1, 1)
	EaseOut   = CubicBezier(0, 0, 0.58, 1)
	EaseInOut = CubicBezier(0.42, 0, 0.58, 1)
)

// CubicBezier returns a cubic Bézier timing function.
func CubicBezier(x1, y1, x2, y2 float64) TimingFunction {
	return TimingFunction{Kind: TimingCubicBezier, X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Steps returns a stepping timing function with n intervals.
func Steps(n int, atStart bool) TimingFunction {
	return TimingFunction{Kind: TimingSteps, Steps: n, StepAtStart: atStart}
}

// Tween returns a timing function following the named gween easing curve,
// e.g. "OutBounce". Unknown names behave linearly.
func Tween(name string) TimingFunction {
	return TimingFunction{Kind: TimingTween, Ease: name}
}

var tweenFuncs = map[string]ease.TweenFunc{
	"Linear":       ease.Linear,
	"InQuad":       ease.InQuad,
	"OutQuad":      ease.OutQuad,
	"InOutQuad":    ease.InOutQuad,
	"InCubic":      ease.InCubic,
	"OutCubic":     ease.OutCubic,
	"InOutCubic":   ease.InOutCubic,
	"InSine":       ease.InSine,
	"OutSine":      ease.OutSine,
	"InOutSine":    ease.InOutSine,
	"InExpo":       ease.InExpo,
	"OutExpo":      ease.OutExpo,
	"InOutExpo":    ease.InOutExpo,
	"InCirc":       ease.InCirc,
	"OutCirc":      ease.OutCirc,
	"InOutCirc":    ease.InOutCirc,
	"InBack":       ease.InBack,
	"OutBack":      ease.OutBack,
	"InOutBack":    ease.InOutBack,
	"InElastic":    ease.InElastic,
	"OutElastic":   ease.OutElastic,
	"InOutElastic": ease.InOutElastic,
	"InBounce":     ease.InBounce,
	"OutBounce":    ease.OutBounce,
	"InOutBounce":  ease.InOutBounce,
}

// Evaluate maps t in [0, 1] for an animation of the given duration in
// seconds. The duration only sets the Bézier solver precision.
func (f TimingFunction) Evaluate(t, duration float64) float64 {
	t = math.Min(1, math.Max(0, t))
	switch f.Kind {
	case TimingCubicBezier:
		eps := 1e-6
		if duration > 0 {
			eps = 1 / (200 * duration)
		}
		return newUnitBezier(f.X1, f.Y1, f.X2, f.Y2).solve(t, eps)
	case TimingSteps:
		if f.Steps <= 0 {
			return t
		}
		n := float64(f.Steps)
		if f.StepAtStart {
			return math.Min(1, math.Ceil(t*n)/n)
		}
		return math.Floor(t*n) / n
	case TimingTween:
		fn, ok := tweenFuncs[f.Ease]
		if !ok {
			return t
		}
		v, _ := gween.New(0, 1, 1, fn).Set(float32(t))
		return float64(v)
	}
	return t
}

// unitBezier solves a cubic Bézier through (0,0) and (1,1) for y given x.
type unitBezier struct {
	ax, bx, cx float64
	ay, by, cy float64
}

func newUnitBezier(x1, y1, x2, y2 float64) unitBezier {
	var b unitBezier
	b.cx = 3 * x1
	b.bx = 3*(x2-x1) - b.cx
	b.ax = 1 - b.cx - b.bx
	b.cy = 3 * y1
	b.by = 3*(y2-y1) - b.cy
	b.ay = 1 - b.cy - b.by
	return b
}

func (b unitBezier) sampleX(t float64) float64 { return ((b.ax*t+b.bx)*t + b.cx) * t }
func (b unitBezier) sampleY(t float64) float64 { return ((b.ay*t+b.by)*t + b.cy) * t }
func (b unitBezier) sampleDX(t float64) float64 {
	return (3*b.ax*t+2*b.bx)*t + b.cx
}

func (b unitBezier) solveX(x, eps float64) float64 {
	t := x
	for i := 0; i < 8; i++ {
		x2 := b.sampleX(t) - x
		if math.Abs(x2) < eps {
			return t
		}
		d := b.sampleDX(t)
		if math.Abs(d) < 1e-6 {
			break
		}
		t -= x2 / d
	}

	lo, hi := 0.0, 1.0
	t = x
	for lo < hi {
		x2 := b.sampleX(t)
		if math.Abs(x2-x) < eps {
			return t
		}
		if x > x2 {
			lo = t
		} else {
			hi = t
		}
		t = (hi-lo)/2 + lo
		if hi-lo < 1e-12 {
			break
		}
	}
	return t
}

func (b unitBezier) solve(x, eps float64) float64 {
	return b.sampleY(b.solveX(x, eps))
}
