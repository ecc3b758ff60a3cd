package strata

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tanema/gween/ease"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestNewCameraIsIdentityView(t *testing.T) {
	c := NewCamera(Rect{0, 0, 640, 480})
	if diff := cmp.Diff(Identity(), c.ViewMatrix(), approx); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}
}

func TestCameraWorldToScreen(t *testing.T) {
	c := NewCamera(Rect{0, 0, 200, 200})
	c.X, c.Y = 100, 100
	c.Zoom = 2
	c.MarkDirty()

	tests := []struct {
		wx, wy, sx, sy float64
	}{
		{100, 100, 100, 100},
		{110, 100, 120, 100},
		{100, 90, 100, 80},
	}
	for _, tt := range tests {
		sx, sy := c.WorldToScreen(tt.wx, tt.wy)
		if math.Abs(sx-tt.sx) > 1e-9 || math.Abs(sy-tt.sy) > 1e-9 {
			t.Errorf("WorldToScreen(%v, %v) = (%v, %v), want (%v, %v)", tt.wx, tt.wy, sx, sy, tt.sx, tt.sy)
		}
		wx, wy := c.ScreenToWorld(sx, sy)
		if math.Abs(wx-tt.wx) > 1e-9 || math.Abs(wy-tt.wy) > 1e-9 {
			t.Errorf("ScreenToWorld round trip = (%v, %v), want (%v, %v)", wx, wy, tt.wx, tt.wy)
		}
	}
	want := Rect{50, 50, 100, 100}
	if diff := cmp.Diff(want, c.VisibleBounds(), approx); diff != "" {
		t.Errorf("VisibleBounds mismatch (-want +got):\n%s", diff)
	}
}

func TestCameraRotation(t *testing.T) {
	c := NewCamera(Rect{0, 0, 100, 100})
	c.Rotation = 90
	c.MarkDirty()
	// A point right of center ends up above it.
	sx, sy := c.WorldToScreen(60, 50)
	if math.Abs(sx-50) > 1e-9 || math.Abs(sy-40) > 1e-9 {
		t.Errorf("WorldToScreen = (%v, %v), want (50, 40)", sx, sy)
	}
}

func TestCameraClampToBounds(t *testing.T) {
	tests := []struct {
		name         string
		bounds       Rect
		x, y         float64
		wantX, wantY float64
	}{
		{"inside", Rect{0, 0, 1000, 1000}, 300, 400, 300, 400},
		{"past the left top", Rect{0, 0, 1000, 1000}, 10, 10, 50, 50},
		{"past the right bottom", Rect{0, 0, 1000, 1000}, 990, 990, 950, 950},
		{"smaller than the view", Rect{0, 0, 60, 40}, 500, 500, 30, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera(Rect{0, 0, 100, 100})
			c.SetBounds(tt.bounds)
			c.X, c.Y = tt.x, tt.y
			c.ClampToBounds()
			if c.X != tt.wantX || c.Y != tt.wantY {
				t.Errorf("position = (%v, %v), want (%v, %v)", c.X, c.Y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestCameraScrollTo(t *testing.T) {
	p := newTestPair(t)
	c := NewCamera(Rect{0, 0, 100, 100})
	c.X, c.Y = 0, 0
	c.ScrollTo(100, 50, 1, ease.Linear)

	c.update(p.s, 0.5)
	if math.Abs(c.X-50) > 1e-3 || math.Abs(c.Y-25) > 1e-3 {
		t.Errorf("halfway = (%v, %v), want (50, 25)", c.X, c.Y)
	}
	c.update(p.s, 0.5)
	if c.X != 100 || c.Y != 50 {
		t.Errorf("end = (%v, %v), want (100, 50)", c.X, c.Y)
	}
	if c.scrollTween != nil {
		t.Error("scroll tween kept after finishing")
	}
}

func TestCameraFollowsLayer(t *testing.T) {
	p := newTestPair(t)
	root := p.c.NewLayer()
	target := solidLayer(p.c, 300, 200, 10, 10)
	root.AddChild(target)
	p.c.SetRootLayer(root)
	p.sync(t)

	c := NewCamera(Rect{0, 0, 100, 100})
	c.Follow(target.ID(), 5, 0, 1)
	c.update(p.s, 0)
	if c.X != 305 || c.Y != 200 {
		t.Errorf("position = (%v, %v), want (305, 200)", c.X, c.Y)
	}

	target.Destroy()
	p.sync(t)
	c.update(p.s, 0)
	if c.follow != InvalidLayerID {
		t.Error("camera still follows a destroyed layer")
	}
}

func TestSceneCameraOffsetsAndCulls(t *testing.T) {
	p := newTestPair(t)
	root := p.c.NewLayer()
	near := solidLayer(p.c, 100, 100, 10, 10)
	far := solidLayer(p.c, 1000, 1000, 10, 10)
	root.AddChild(near)
	root.AddChild(far)
	p.c.SetRootLayer(root)
	p.sync(t)

	c := NewCamera(Rect{0, 0, 100, 100})
	c.X, c.Y = 100, 100
	p.s.SetCamera(c)

	cmds := p.s.Commands()
	want := []cmdSummary{{DrawSolid, near.ID(), 1}}
	if diff := cmp.Diff(want, summarize(cmds)); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
	if x, y := cmds[0].Matrix[3], cmds[0].Matrix[7]; x != 50 || y != 50 {
		t.Errorf("near layer drawn at (%v, %v), want (50, 50)", x, y)
	}

	if got, _ := p.s.HitTest(55, 55); got != near.ID() {
		t.Errorf("HitTest through the camera = %d, want %d", got, near.ID())
	}

	c.CullEnabled = false
	if got := len(p.s.Commands()); got != 2 {
		t.Errorf("without culling got %d commands, want 2", got)
	}
}
