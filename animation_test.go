package strata

import (
	"math"
	"testing"
)

type recordingTarget struct {
	opacity   float64
	transform Matrix
	filters   FilterOperations
	calls     int
}

func (r *recordingTarget) setAnimatedOpacity(v float64) { r.opacity = v; r.calls++ }
func (r *recordingTarget) setAnimatedTransform(m Matrix) {
	r.transform = m
	r.calls++
}
func (r *recordingTarget) setAnimatedFilters(f FilterOperations) { r.filters = f; r.calls++ }

func fadeAnimation(start float64) Animation {
	return Animation{
		Name:     "fade",
		Property: PropertyOpacity,
		Keyframes: []Keyframe{
			{Time: 0, Opacity: 0},
			{Time: 1, Opacity: 1},
		},
		Duration:  2,
		Timing:    Linear,
		StartTime: start,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestAnimationOpacityInterpolates(t *testing.T) {
	var s Animations
	s.Add(fadeAnimation(10))
	tests := []struct {
		now  float64
		want float64
	}{
		{10, 0},
		{10.5, 0.25},
		{11, 0.5},
		{11.5, 0.75},
	}
	for _, tt := range tests {
		var r recordingTarget
		s.Apply(&r, tt.now)
		if !approx(r.opacity, tt.want) {
			t.Errorf("opacity at %v = %v, want %v", tt.now, r.opacity, tt.want)
		}
	}
}

func TestAnimationStopsWithoutFill(t *testing.T) {
	var s Animations
	s.Add(fadeAnimation(10))
	var r recordingTarget
	s.Apply(&r, 13)
	if r.calls != 0 {
		t.Errorf("finished animation without fill wrote %d values", r.calls)
	}
	if s.HasRunning() {
		t.Error("finished animation still running")
	}
	if s.HasActive(PropertyOpacity) {
		t.Error("finished animation without fill still active")
	}
}

func TestAnimationFillsForwards(t *testing.T) {
	var s Animations
	a := fadeAnimation(10)
	a.FillsForwards = true
	s.Add(a)
	var r recordingTarget
	s.Apply(&r, 20)
	if !approx(r.opacity, 1) {
		t.Errorf("filled opacity = %v, want 1", r.opacity)
	}
	if !s.HasActive(PropertyOpacity) {
		t.Error("filling animation should stay active")
	}
}

func TestAnimationStartsOnFirstApply(t *testing.T) {
	var s Animations
	s.Add(fadeAnimation(0))
	var r recordingTarget
	s.Apply(&r, 5)
	if !approx(r.opacity, 0) {
		t.Errorf("opacity on first apply = %v, want 0", r.opacity)
	}
	s.Apply(&r, 6)
	if !approx(r.opacity, 0.5) {
		t.Errorf("opacity after 1s = %v, want 0.5", r.opacity)
	}
}

func TestAnimationDirections(t *testing.T) {
	tests := []struct {
		name string
		dir  AnimationDirection
		now  float64 // second iteration, a quarter through
		want float64
	}{
		{"normal", DirectionNormal, 12.5, 0.25},
		{"reverse", DirectionReverse, 12.5, 0.75},
		{"alternate", DirectionAlternate, 12.5, 0.75},
		{"alternate reverse", DirectionAlternateReverse, 12.5, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Animations
			a := fadeAnimation(10)
			a.Iterations = 3
			a.Direction = tt.dir
			s.Add(a)
			var r recordingTarget
			s.Apply(&r, tt.now)
			if !approx(r.opacity, tt.want) {
				t.Errorf("opacity = %v, want %v", r.opacity, tt.want)
			}
		})
	}
}

func TestAnimationFractionalIterationsFill(t *testing.T) {
	var s Animations
	a := fadeAnimation(10)
	a.Iterations = 1.5
	a.FillsForwards = true
	s.Add(a)
	var r recordingTarget
	s.Apply(&r, 100)
	if !approx(r.opacity, 0.5) {
		t.Errorf("filled opacity after 1.5 iterations = %v, want 0.5", r.opacity)
	}
}

func TestAnimationInfiniteNeverStops(t *testing.T) {
	var s Animations
	a := fadeAnimation(10)
	a.Iterations = IterationInfinite
	s.Add(a)
	var r recordingTarget
	s.Apply(&r, 1000.5)
	if !s.HasRunning() {
		t.Error("infinite animation stopped")
	}
	if !approx(r.opacity, 0.25) {
		t.Errorf("opacity = %v, want 0.25", r.opacity)
	}
}

func TestAnimationPauseAndResume(t *testing.T) {
	var s Animations
	s.Add(fadeAnimation(10))
	s.Pause("fade", 1)
	var r recordingTarget
	s.Apply(&r, 50)
	if !approx(r.opacity, 0.5) {
		t.Errorf("paused opacity = %v, want 0.5", r.opacity)
	}
	s.Resume(100)
	s.Apply(&r, 100.5)
	if !approx(r.opacity, 0.75) {
		t.Errorf("resumed opacity = %v, want 0.75", r.opacity)
	}
}

func TestAnimationSuspendKeepsPosition(t *testing.T) {
	var s Animations
	s.Add(fadeAnimation(10))
	s.Suspend(11)
	var r recordingTarget
	s.Apply(&r, 40)
	if !approx(r.opacity, 0.5) {
		t.Errorf("suspended opacity = %v, want 0.5", r.opacity)
	}
}

func TestAnimationPerKeyframeTiming(t *testing.T) {
	step := Steps(2, false)
	var s Animations
	s.Add(Animation{
		Name:     "steps",
		Property: PropertyOpacity,
		Keyframes: []Keyframe{
			{Time: 0, Opacity: 0, Timing: &step},
			{Time: 1, Opacity: 1},
		},
		Duration:  1,
		Timing:    Linear,
		StartTime: 10,
	})
	var r recordingTarget
	s.Apply(&r, 10.4)
	if !approx(r.opacity, 0) {
		t.Errorf("opacity at 0.4 = %v, want 0", r.opacity)
	}
	s.Apply(&r, 10.6)
	if !approx(r.opacity, 0.5) {
		t.Errorf("opacity at 0.6 = %v, want 0.5", r.opacity)
	}
}

func TestAnimationTransformMatchingLists(t *testing.T) {
	var s Animations
	s.Add(Animation{
		Name:     "slide",
		Property: PropertyTransform,
		Keyframes: []Keyframe{
			{Time: 0, Transform: TransformOperations{TranslateOp(0, 0, 0)}},
			{Time: 1, Transform: TransformOperations{TranslateOp(100, 40, 0)}},
		},
		Duration:  1,
		Timing:    Linear,
		StartTime: 10,
	})
	if got := s.List()[0]; !got.ListsMatch {
		t.Error("ListsMatch = false for identical primitive lists")
	}
	var r recordingTarget
	s.Apply(&r, 10.5)
	if !approx(r.transform[3], 50) || !approx(r.transform[7], 20) {
		t.Errorf("translation = (%v,%v), want (50,20)", r.transform[3], r.transform[7])
	}
}

func TestAnimationTransformMismatchedListsRotation(t *testing.T) {
	tests := []struct {
		name string
		end  float64
		mid  float64
	}{
		{"quarter turn", 90, 45},
		{"three quarter turn keeps direction", 270, 135},
		{"negative three quarter turn", -270, -135},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Animations
			s.Add(Animation{
				Name:     "spin",
				Property: PropertyTransform,
				Keyframes: []Keyframe{
					{Time: 0, Transform: TransformOperations{TranslateOp(20, 0, 0), RotateZOp(0)}},
					{Time: 1, Transform: TransformOperations{RotateZOp(tt.end)}},
				},
				Duration:  1,
				Timing:    Linear,
				StartTime: 10,
			})
			if got := s.List()[0]; got.ListsMatch {
				t.Fatal("ListsMatch = true for different primitive lists")
			}
			var r recordingTarget
			s.Apply(&r, 10.5)
			assertMatrix(t, "midpoint", r.transform, Translate3D(10, 0, 0).Multiply(RotateZ(tt.mid)))
			s.Apply(&r, 10.25)
			assertMatrix(t, "quarter", r.transform, Translate3D(15, 0, 0).Multiply(RotateZ(tt.mid/2)))
		})
	}
}

func TestAnimationFilterBlend(t *testing.T) {
	var s Animations
	s.Add(Animation{
		Name:     "gray",
		Property: PropertyFilter,
		Keyframes: []Keyframe{
			{Time: 0, Filters: FilterOperations{{Type: FilterGrayscale, Amount: 0}}},
			{Time: 1, Filters: FilterOperations{{Type: FilterGrayscale, Amount: 1}}},
		},
		Duration:  1,
		Timing:    Linear,
		StartTime: 10,
	})
	var r recordingTarget
	s.Apply(&r, 10.25)
	if len(r.filters) != 1 || !approx(r.filters[0].Amount, 0.25) {
		t.Errorf("filters = %+v, want grayscale 0.25", r.filters)
	}
}

func TestValidateTransformKeyframes(t *testing.T) {
	tests := []struct {
		name        string
		frames      []Keyframe
		listsMatch  bool
		bigRotation bool
	}{
		{
			"matching",
			[]Keyframe{
				{Transform: TransformOperations{TranslateOp(0, 0, 0), RotateZOp(0)}},
				{Transform: TransformOperations{TranslateOp(5, 5, 0), RotateZOp(90)}},
			},
			true, false,
		},
		{
			"mismatched",
			[]Keyframe{
				{Transform: TransformOperations{TranslateOp(0, 0, 0)}},
				{Transform: TransformOperations{ScaleOp(2, 2, 1)}},
			},
			false, false,
		},
		{
			"empty keyframe matches",
			[]Keyframe{
				{},
				{Transform: TransformOperations{ScaleOp(2, 2, 1)}},
			},
			true, false,
		},
		{
			"big rotation",
			[]Keyframe{
				{Transform: TransformOperations{RotateZOp(0)}},
				{Transform: TransformOperations{RotateZOp(270)}},
			},
			true, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm, br := ValidateTransformKeyframes(tt.frames)
			if lm != tt.listsMatch || br != tt.bigRotation {
				t.Errorf("got (%v,%v), want (%v,%v)", lm, br, tt.listsMatch, tt.bigRotation)
			}
		})
	}
}

func TestAnimationsRemoveAndSet(t *testing.T) {
	var s Animations
	s.Add(fadeAnimation(1))
	a := fadeAnimation(1)
	a.Name = "other"
	s.Add(a)
	s.Remove("fade")
	if s.Len() != 1 || s.List()[0].Name != "other" {
		t.Fatalf("after Remove: %+v", s.List())
	}
	s.Set(nil)
	if s.Len() != 0 {
		t.Errorf("Set(nil) left %d animations", s.Len())
	}
}
