package strata

import "math"

// AnimatedProperty names the layer property an animation drives.
type AnimatedProperty uint8

const (
	PropertyTransform AnimatedProperty = iota
	PropertyOpacity
	PropertyFilter
)

// AnimationState is the playback state of an Animation.
type AnimationState uint8

const (
	AnimationPlaying AnimationState = iota
	AnimationPaused
	AnimationStopped
)

// AnimationDirection controls the playback direction of each iteration.
type AnimationDirection uint8

const (
	DirectionNormal           AnimationDirection = iota
	DirectionReverse                             // every iteration backwards
	DirectionAlternate                           // odd iterations backwards
	DirectionAlternateReverse                    // even iterations backwards
)

// IterationInfinite repeats an animation forever.
const IterationInfinite = -1

// Keyframe is one value of an animated property at a key time in [0, 1].
// Only the field matching the animation's property is read.
type Keyframe struct {
	Time      float64             `json:"time"`
	Opacity   float64             `json:"opacity,omitempty"`
	Transform TransformOperations `json:"transform,omitempty"`
	Filters   FilterOperations    `json:"filters,omitempty"`
	Timing    *TimingFunction     `json:"timing,omitempty"`
}

// Animation is a keyframe animation attached to a layer. Times are seconds.
// A zero StartTime starts the animation the first time it is applied.
type Animation struct {
	Name          string             `json:"name"`
	Property      AnimatedProperty   `json:"property"`
	Keyframes     []Keyframe         `json:"keyframes"`
	Duration      float64            `json:"duration"`
	Iterations    float64            `json:"iterations,omitempty"`
	Direction     AnimationDirection `json:"direction,omitempty"`
	FillsForwards bool               `json:"fillsForwards,omitempty"`
	Timing        TimingFunction     `json:"timing"`
	StartTime     float64            `json:"startTime,omitempty"`
	PauseTime     float64            `json:"pauseTime,omitempty"`
	State         AnimationState     `json:"state,omitempty"`

	// Derived from the keyframes when the animation is added to a list.
	ListsMatch  bool `json:"-"`
	BigRotation bool `json:"-"`
}

// ValidateTransformKeyframes checks whether every non-empty operation list
// has the same primitive types in the same order as the first non-empty
// one, and whether a rotation angle changes by 180 degrees or more between
// adjacent keyframes.
func ValidateTransformKeyframes(frames []Keyframe) (listsMatch, bigRotation bool) {
	first := -1
	for i, k := range frames {
		if len(k.Transform) > 0 {
			first = i
			break
		}
	}
	if first < 0 {
		return true, false
	}
	listsMatch = true
	ref := frames[first].Transform
	for _, k := range frames[first+1:] {
		if !ref.Matches(k.Transform) {
			listsMatch = false
		}
	}

	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1].Transform, frames[i].Transform
		n := max(len(prev), len(cur))
		for j := 0; j < n; j++ {
			var a, b float64
			var rotate bool
			if j < len(prev) && prev[j].Type == OpRotate {
				a, rotate = prev[j].Angle, true
			}
			if j < len(cur) && cur[j].Type == OpRotate {
				b, rotate = cur[j].Angle, true
			}
			if rotate && math.Abs(b-a) >= 180 {
				bigRotation = true
			}
		}
	}
	return listsMatch, bigRotation
}

// animationTarget receives the effective values computed each frame.
type animationTarget interface {
	setAnimatedOpacity(float64)
	setAnimatedTransform(Matrix)
	setAnimatedFilters(FilterOperations)
}

func (a *Animation) iterations() float64 {
	if a.Iterations == 0 {
		return 1
	}
	return a.Iterations
}

func (a *Animation) elapsed(now float64) float64 {
	if a.State == AnimationPaused {
		return a.PauseTime
	}
	return now - a.StartTime
}

func (a *Animation) isActive() bool {
	return a.State != AnimationStopped || a.FillsForwards
}

func shouldReverse(d AnimationDirection, loop int) bool {
	switch d {
	case DirectionReverse:
		return true
	case DirectionAlternate:
		return loop%2 == 1
	case DirectionAlternateReverse:
		return loop%2 == 0
	}
	return false
}

// normalizedProgress maps elapsed time to progress within the current
// iteration, accounting for direction.
func normalizedProgress(elapsed, duration float64, d AnimationDirection, iterations float64) float64 {
	if duration <= 0 {
		return 0
	}
	loop := int(elapsed / duration)
	remainder := elapsed - duration*float64(loop)
	v := remainder / duration
	if iterations != IterationInfinite && float64(loop) >= iterations {
		v = 1
		loop = int(iterations) - 1
		if iterations != math.Trunc(iterations) {
			loop = int(iterations)
			v = iterations - math.Trunc(iterations)
		}
	}
	if shouldReverse(d, loop) {
		return 1 - v
	}
	return v
}

func (a *Animation) apply(target animationTarget, now float64) {
	if a.StartTime == 0 && a.State == AnimationPlaying {
		a.StartTime = now
	}
	elapsed := math.Max(0, a.elapsed(now))
	if a.Iterations != IterationInfinite && elapsed >= a.Duration*a.iterations() {
		a.State = AnimationStopped
	}
	if !a.isActive() || len(a.Keyframes) == 0 {
		return
	}

	p := normalizedProgress(elapsed, a.Duration, a.Direction, a.iterations())
	frames := a.Keyframes
	if len(frames) == 1 || p <= frames[0].Time {
		a.applyValue(target, frames[0], frames[0], 0)
		return
	}
	last := frames[len(frames)-1]
	if p >= last.Time {
		a.applyValue(target, last, last, 1)
		return
	}
	for i := 0; i < len(frames)-1; i++ {
		from, to := frames[i], frames[i+1]
		if to.Time < p {
			continue
		}
		local := 0.0
		if span := to.Time - from.Time; span > 0 {
			local = (p - from.Time) / span
		}
		timing := a.Timing
		if from.Timing != nil {
			timing = *from.Timing
		}
		a.applyValue(target, from, to, timing.Evaluate(local, a.Duration))
		return
	}
}

func (a *Animation) applyValue(target animationTarget, from, to Keyframe, t float64) {
	switch a.Property {
	case PropertyOpacity:
		target.setAnimatedOpacity(lerp(from.Opacity, to.Opacity, t))
	case PropertyTransform:
		switch {
		case a.ListsMatch:
			target.setAnimatedTransform(to.Transform.Blend(from.Transform, t).Apply())
		case a.BigRotation:
			// The matrices alone cannot tell a 270 degree turn from a -90
			// degree one; the rotate operations can.
			turn := to.Transform.zRotation() - from.Transform.zRotation()
			target.setAnimatedTransform(to.Transform.Apply().blendTurning(from.Transform.Apply(), t, turn))
		default:
			target.setAnimatedTransform(to.Transform.Apply().Blend(from.Transform.Apply(), t))
		}
	case PropertyFilter:
		target.setAnimatedFilters(to.Filters.Blend(from.Filters, t))
	}
}

// Animations is the ordered list of animations running on one layer.
type Animations struct {
	list []Animation
}

func prepare(a Animation) Animation {
	if a.Property == PropertyTransform {
		a.ListsMatch, a.BigRotation = ValidateTransformKeyframes(a.Keyframes)
	}
	return a
}

// Add appends an animation.
func (s *Animations) Add(a Animation) {
	s.list = append(s.list, prepare(a))
}

// Set replaces the whole list.
func (s *Animations) Set(list []Animation) {
	s.list = s.list[:0]
	for _, a := range list {
		s.list = append(s.list, prepare(a))
	}
}

// List returns a copy of the animations.
func (s *Animations) List() []Animation {
	return append([]Animation(nil), s.list...)
}

// Len returns the number of animations.
func (s *Animations) Len() int { return len(s.list) }

// Remove drops every animation with the given name.
func (s *Animations) Remove(name string) {
	s.removeIf(func(a *Animation) bool { return a.Name == name })
}

// RemoveProperty drops the named animation of one property.
func (s *Animations) RemoveProperty(name string, p AnimatedProperty) {
	s.removeIf(func(a *Animation) bool { return a.Name == name && a.Property == p })
}

func (s *Animations) removeIf(pred func(*Animation) bool) {
	kept := s.list[:0]
	for i := range s.list {
		if !pred(&s.list[i]) {
			kept = append(kept, s.list[i])
		}
	}
	s.list = kept
}

// Pause freezes the named animations at offset seconds.
func (s *Animations) Pause(name string, offset float64) {
	for i := range s.list {
		if s.list[i].Name == name {
			s.list[i].State = AnimationPaused
			s.list[i].PauseTime = offset
		}
	}
}

// Suspend pauses every playing animation where it currently is.
func (s *Animations) Suspend(now float64) {
	for i := range s.list {
		a := &s.list[i]
		if a.State == AnimationPlaying {
			a.PauseTime = a.elapsed(now)
			a.State = AnimationPaused
		}
	}
}

// Resume restarts paused animations from their pause offset.
func (s *Animations) Resume(now float64) {
	for i := range s.list {
		a := &s.list[i]
		if a.State == AnimationPaused {
			a.StartTime = now - a.PauseTime
			a.State = AnimationPlaying
		}
	}
}

// HasActive reports whether an active animation drives p.
func (s *Animations) HasActive(p AnimatedProperty) bool {
	for i := range s.list {
		if s.list[i].Property == p && s.list[i].isActive() {
			return true
		}
	}
	return false
}

// HasRunning reports whether any animation is still playing.
func (s *Animations) HasRunning() bool {
	for i := range s.list {
		if s.list[i].State == AnimationPlaying {
			return true
		}
	}
	return false
}

// Apply evaluates every animation at now and pushes the results to target.
func (s *Animations) Apply(target animationTarget, now float64) {
	for i := range s.list {
		s.list[i].apply(target, now)
	}
}
