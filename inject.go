package strata

// InjectPress queues a left-button press at the given screen coordinates.
// Each injected event is consumed by one Game update, replacing real mouse
// input for that frame.
func (s *Scene) InjectPress(x, y float64) {
	s.input.queue = append(s.input.queue, pointerEvent{x: x, y: y, pressed: true})
}

// InjectMove queues a pointer move with the button held down.
func (s *Scene) InjectMove(x, y float64) {
	s.InjectPress(x, y)
}

// InjectRelease queues a button release at the given screen coordinates.
func (s *Scene) InjectRelease(x, y float64) {
	s.input.queue = append(s.input.queue, pointerEvent{x: x, y: y})
}

// InjectWheel queues a wheel movement at the given screen coordinates, in
// notches as reported by ebiten.Wheel.
func (s *Scene) InjectWheel(x, y, dx, dy float64) {
	s.input.queue = append(s.input.queue, pointerEvent{x: x, y: y, wheelX: dx, wheelY: dy})
}

// InjectDrag queues a press at (fromX, fromY), frames-1 evenly spaced moves
// ending at (toX, toY) and a release there. Minimum frames is 2.
func (s *Scene) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	s.InjectPress(fromX, fromY)
	for i := 1; i < frames; i++ {
		t := float64(i) / float64(frames-1)
		s.InjectMove(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t)
	}
	s.InjectRelease(toX, toY)
}

// PendingInput returns the number of injected events not yet consumed.
func (s *Scene) PendingInput() int {
	return len(s.input.queue)
}
