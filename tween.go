package strata

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to four properties of a producer Layer. Unlike
// keyframe animations, which the consumer runs on its own clock, a tween
// changes the layer itself, so every step is committed in a frame. Call
// Update from the producer goroutine. If the layer is destroyed, the group
// stops.
type TweenGroup struct {
	tweens [4]*gween.Tween
	count  int
	values [4]float64
	apply  func(l *Layer, v [4]float64)
	target *Layer
	Done   bool
}

// Update advances all tweens by dt seconds and writes the values through the
// layer's setters.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target == nil || g.target.Destroyed() {
		g.Done = true
		return
	}

	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		g.values[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
	g.apply(g.target, g.values)
}

// TweenPosition animates the layer's position to (toX, toY).
func TweenPosition(l *Layer, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	p := l.State().Position
	g := &TweenGroup{count: 2, target: l}
	g.tweens[0] = gween.New(float32(p.X), float32(toX), duration, fn)
	g.tweens[1] = gween.New(float32(p.Y), float32(toY), duration, fn)
	g.apply = func(l *Layer, v [4]float64) { l.SetPosition(Vec2{v[0], v[1]}) }
	return g
}

// TweenSize animates the layer's size to (toW, toH). Content layers repaint
// at every step.
func TweenSize(l *Layer, toW, toH float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	s := l.State().Size
	g := &TweenGroup{count: 2, target: l}
	g.tweens[0] = gween.New(float32(s.X), float32(toW), duration, fn)
	g.tweens[1] = gween.New(float32(s.Y), float32(toH), duration, fn)
	g.apply = func(l *Layer, v [4]float64) { l.SetSize(Vec2{v[0], v[1]}) }
	return g
}

// TweenSolidColor animates all four components of the layer's solid color.
func TweenSolidColor(l *Layer, to Color, duration float32, fn ease.TweenFunc) *TweenGroup {
	c := l.State().SolidColor
	g := &TweenGroup{count: 4, target: l}
	g.tweens[0] = gween.New(float32(c.R), float32(to.R), duration, fn)
	g.tweens[1] = gween.New(float32(c.G), float32(to.G), duration, fn)
	g.tweens[2] = gween.New(float32(c.B), float32(to.B), duration, fn)
	g.tweens[3] = gween.New(float32(c.A), float32(to.A), duration, fn)
	g.apply = func(l *Layer, v [4]float64) { l.SetSolidColor(Color{v[0], v[1], v[2], v[3]}) }
	return g
}

// TweenOpacity animates the layer's opacity.
func TweenOpacity(l *Layer, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, target: l}
	g.tweens[0] = gween.New(float32(l.State().Opacity), float32(to), duration, fn)
	g.apply = func(l *Layer, v [4]float64) { l.SetOpacity(v[0]) }
	return g
}
