package strata

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// wheelScrollStep is how many pixels one wheel notch scrolls.
const wheelScrollStep = 40

// pointerEvent is one frame of pointer input in screen coordinates.
type pointerEvent struct {
	x, y           float64
	pressed        bool
	wheelX, wheelY float64
}

// inputState tracks an in-progress drag scroll between frames.
type inputState struct {
	queue    []pointerEvent
	pressed  bool
	dragging LayerID
	last     Vec2
}

// HitTest returns the topmost layer whose bounds contain the screen point
// (x, y), using the combined transforms from the last ComputeTransforms and
// the camera, if any. Layers with zero opacity and their subtrees are
// skipped.
func (s *Scene) HitTest(x, y float64) (LayerID, bool) {
	root := s.nodes[s.root]
	if root == nil {
		return InvalidLayerID, false
	}
	if s.camera != nil {
		x, y = s.camera.ScreenToWorld(x, y)
	}
	hit := InvalidLayerID
	s.hitTest(root, Vec3{X: x, Y: y}, &hit)
	return hit, hit != InvalidLayerID
}

func (s *Scene) hitTest(n *layerNode, p Vec3, hit *LayerID) {
	if n.opacity <= 0 {
		return
	}
	if inv, ok := n.transform.Combined().Inverse(); ok {
		lp := inv.MapPoint(p)
		inside := lp.X >= 0 && lp.Y >= 0 && lp.X < n.state.Size.X && lp.Y < n.state.Size.Y
		if inside {
			*hit = n.id
		} else if n.state.MasksToBounds {
			return
		}
	}
	for _, id := range n.children {
		if c := s.nodes[id]; c != nil {
			s.hitTest(c, p, hit)
		}
	}
}

// scrollTarget returns the nearest scrollable layer at or above id.
func (s *Scene) scrollTarget(id LayerID) (LayerID, bool) {
	for n := s.nodes[id]; n != nil; n = s.nodes[n.parent] {
		if n.state.Scrollable {
			return n.id, true
		}
	}
	return InvalidLayerID, false
}

// processInput turns one frame of pointer input into user scrolls. Wheel
// input scrolls the scrollable layer under the cursor; dragging with the
// left button scrolls the layer the drag started on. Injected events take
// precedence over the real devices.
func (s *Scene) processInput() {
	ev, ok := s.nextInjected()
	if !ok {
		cx, cy := ebiten.CursorPosition()
		wx, wy := ebiten.Wheel()
		ev = pointerEvent{
			x:       float64(cx),
			y:       float64(cy),
			pressed: ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
			wheelX:  wx,
			wheelY:  wy,
		}
	}
	s.handlePointer(ev)
}

func (s *Scene) nextInjected() (pointerEvent, bool) {
	if len(s.input.queue) == 0 {
		return pointerEvent{}, false
	}
	ev := s.input.queue[0]
	s.input.queue = s.input.queue[1:]
	return ev, true
}

func (s *Scene) handlePointer(ev pointerEvent) {
	in := &s.input
	pos := Vec2{X: ev.x, Y: ev.y}

	if ev.wheelX != 0 || ev.wheelY != 0 {
		if hit, ok := s.HitTest(ev.x, ev.y); ok {
			if target, ok := s.scrollTarget(hit); ok {
				s.ScrollBy(target, Vec2{X: -ev.wheelX * wheelScrollStep, Y: -ev.wheelY * wheelScrollStep})
			}
		}
	}

	switch {
	case ev.pressed && !in.pressed:
		in.dragging = InvalidLayerID
		if hit, ok := s.HitTest(ev.x, ev.y); ok {
			if target, ok := s.scrollTarget(hit); ok {
				in.dragging = target
			}
		}
	case ev.pressed && in.dragging != InvalidLayerID:
		if d := in.last.Sub(pos); d != (Vec2{}) {
			if !s.ScrollBy(in.dragging, d) {
				in.dragging = InvalidLayerID
			}
		}
	case !ev.pressed:
		in.dragging = InvalidLayerID
	}
	in.pressed = ev.pressed
	in.last = pos
}
