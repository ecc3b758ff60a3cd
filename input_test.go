package strata

import (
	"testing"
)

// scrollFixture is a 100x100 scrollable viewport at (50, 50) holding a
// taller content layer.
func scrollFixture(t *testing.T) (p *testPair, scroller, content *Layer) {
	t.Helper()
	p = newTestPair(t)
	root := p.c.NewLayer()
	root.SetSize(Vec2{400, 400})
	scroller = p.c.NewLayer()
	scroller.SetPosition(Vec2{50, 50})
	scroller.SetSize(Vec2{100, 100})
	scroller.SetScrollable(true)
	scroller.SetMasksToBounds(true)
	content = solidLayer(p.c, 0, 0, 100, 300)
	scroller.AddChild(content)
	root.AddChild(scroller)
	p.c.SetRootLayer(root)
	p.sync(t)
	return p, scroller, content
}

func TestHitTest(t *testing.T) {
	p, scroller, content := scrollFixture(t)
	tests := []struct {
		name string
		x, y float64
		want LayerID
	}{
		{"content", 60, 60, content.ID()},
		{"root", 10, 10, p.c.RootLayer().ID()},
		{"clipped by scroller", 60, 200, p.c.RootLayer().ID()},
		{"outside", 500, 500, InvalidLayerID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := p.s.HitTest(tt.x, tt.y)
			if got != tt.want {
				t.Errorf("HitTest(%v, %v) = %d, want %d", tt.x, tt.y, got, tt.want)
			}
		})
	}
	if target, ok := p.s.scrollTarget(content.ID()); !ok || target != scroller.ID() {
		t.Errorf("scrollTarget = %d, %v, want %d", target, ok, scroller.ID())
	}
}

func TestHitTestFollowsUserScroll(t *testing.T) {
	p, scroller, content := scrollFixture(t)
	p.s.ScrollBy(scroller.ID(), Vec2{0, 295})
	p.s.ComputeTransforms()
	if got, _ := p.s.HitTest(60, 60); got != scroller.ID() {
		t.Errorf("HitTest above the content end = %d, want scroller", got)
	}
	if got, _ := p.s.HitTest(60, 52); got != content.ID() {
		t.Errorf("HitTest on the last content rows = %d, want content", got)
	}
}

func TestInjectWheelScrolls(t *testing.T) {
	p, scroller, _ := scrollFixture(t)
	p.s.InjectWheel(60, 60, 0, -1)
	p.s.processInput()

	if got := p.node(t, scroller.ID()).UserScroll; got != (Vec2{0, wheelScrollStep}) {
		t.Errorf("UserScroll = %v, want (0, %d)", got, wheelScrollStep)
	}
	if len(p.s.scrolls) != 1 {
		t.Errorf("queued %d scroll commits, want 1", len(p.s.scrolls))
	}
}

func TestInjectWheelOutsideScrollerIgnored(t *testing.T) {
	p, scroller, _ := scrollFixture(t)
	p.s.InjectWheel(10, 10, 0, -1)
	p.s.processInput()
	if got := p.node(t, scroller.ID()).UserScroll; got != (Vec2{}) {
		t.Errorf("UserScroll = %v, want zero", got)
	}
}

func TestInjectDragScrolls(t *testing.T) {
	p, scroller, _ := scrollFixture(t)
	p.s.InjectDrag(100, 140, 100, 80, 4)
	if got := p.s.PendingInput(); got != 5 {
		t.Fatalf("PendingInput = %d, want 5", got)
	}
	for p.s.PendingInput() > 0 {
		p.s.processInput()
		p.s.ComputeTransforms()
	}
	if got := p.node(t, scroller.ID()).UserScroll; got != (Vec2{0, 60}) {
		t.Errorf("UserScroll = %v, want (0, 60)", got)
	}
	if p.s.input.dragging != InvalidLayerID {
		t.Error("drag still active after release")
	}
}

func TestDragOnUnscrollableLayerDoesNothing(t *testing.T) {
	p, scroller, _ := scrollFixture(t)
	p.s.InjectDrag(10, 10, 10, 100, 3)
	for p.s.PendingInput() > 0 {
		p.s.processInput()
	}
	if got := p.node(t, scroller.ID()).UserScroll; got != (Vec2{}) {
		t.Errorf("UserScroll = %v, want zero", got)
	}
	if len(p.s.scrolls) != 0 {
		t.Errorf("queued %d scroll commits, want none", len(p.s.scrolls))
	}
}
