package strata

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// scrollAnim holds active scroll-to tweens for camera X and Y.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// Camera is a consumer-side view onto the mirrored tree: position, zoom,
// rotation and viewport. It never reaches the producer; panning and zooming
// a Scene costs no repaint.
type Camera struct {
	// X and Y are the layer-space position the camera centers on.
	X, Y float64
	// Zoom is the scale factor (1 = no zoom, >1 = zoom in, <1 = zoom out).
	Zoom float64
	// Rotation is the camera rotation in degrees (clockwise).
	Rotation float64
	// Viewport is the screen-space rectangle the camera renders into.
	Viewport Rect

	// CullEnabled skips subtrees whose bounds miss the visible area.
	CullEnabled bool

	// BoundsEnabled clamps the camera position so the visible area stays
	// within Bounds.
	BoundsEnabled bool
	Bounds        Rect

	follow       LayerID
	followOffset Vec2
	followLerp   float64

	view, inv Matrix
	dirty     bool

	scrollTween *scrollAnim
}

// NewCamera returns a camera centered on the viewport's center with no
// zoom, so it starts out as the identity view.
func NewCamera(viewport Rect) *Camera {
	return &Camera{
		X:           viewport.X + viewport.Width/2,
		Y:           viewport.Y + viewport.Height/2,
		Zoom:        1,
		Viewport:    viewport,
		CullEnabled: true,
		dirty:       true,
	}
}

// Follow makes the camera track a layer's origin with the given offset and
// lerp factor. A lerp of 1 snaps immediately.
func (c *Camera) Follow(id LayerID, offsetX, offsetY, lerp float64) {
	c.follow = id
	c.followOffset = Vec2{offsetX, offsetY}
	c.followLerp = lerp
}

// Unfollow stops tracking.
func (c *Camera) Unfollow() {
	c.follow = InvalidLayerID
}

// ScrollTo animates the camera to (x, y) over duration seconds.
func (c *Camera) ScrollTo(x, y float64, duration float32, easeFn ease.TweenFunc) {
	c.scrollTween = &scrollAnim{
		tweenX: gween.New(float32(c.X), float32(x), duration, easeFn),
		tweenY: gween.New(float32(c.Y), float32(y), duration, easeFn),
	}
}

// SetBounds enables bounds clamping.
func (c *Camera) SetBounds(bounds Rect) {
	c.BoundsEnabled = true
	c.Bounds = bounds
}

// ClearBounds disables bounds clamping.
func (c *Camera) ClearBounds() {
	c.BoundsEnabled = false
}

// ClampToBounds clamps the position right away. Call it after changing X
// or Y directly. No-op if BoundsEnabled is false.
func (c *Camera) ClampToBounds() {
	if c.BoundsEnabled {
		c.clampToBounds()
	}
	c.dirty = true
}

// MarkDirty forces the view matrix to be recomputed.
func (c *Camera) MarkDirty() {
	c.dirty = true
}

// update advances follow, scroll and bounds clamping. Called from
// Scene.Update after transforms are combined.
func (c *Camera) update(s *Scene, dt float32) {
	if c.follow != InvalidLayerID {
		if m, ok := s.Combined(c.follow); ok {
			c.X += (m[3] + c.followOffset.X - c.X) * c.followLerp
			c.Y += (m[7] + c.followOffset.Y - c.Y) * c.followLerp
		} else {
			c.follow = InvalidLayerID
		}
	}

	if c.scrollTween != nil {
		if !c.scrollTween.doneX {
			val, done := c.scrollTween.tweenX.Update(dt)
			c.X = float64(val)
			c.scrollTween.doneX = done
		}
		if !c.scrollTween.doneY {
			val, done := c.scrollTween.tweenY.Update(dt)
			c.Y = float64(val)
			c.scrollTween.doneY = done
		}
		if c.scrollTween.doneX && c.scrollTween.doneY {
			c.scrollTween = nil
		}
	}

	if c.BoundsEnabled {
		c.clampToBounds()
	}
	c.dirty = true
}

func (c *Camera) clampToBounds() {
	halfW := c.Viewport.Width / (2 * c.Zoom)
	halfH := c.Viewport.Height / (2 * c.Zoom)

	minX := c.Bounds.X + halfW
	maxX := c.Bounds.X + c.Bounds.Width - halfW
	minY := c.Bounds.Y + halfH
	maxY := c.Bounds.Y + c.Bounds.Height - halfH

	if minX > maxX {
		c.X = c.Bounds.X + c.Bounds.Width/2
	} else {
		c.X = math.Max(minX, math.Min(c.X, maxX))
	}
	if minY > maxY {
		c.Y = c.Bounds.Y + c.Bounds.Height/2
	} else {
		c.Y = math.Max(minY, math.Min(c.Y, maxY))
	}
}

// ViewMatrix maps layer space to screen space:
// Translate(viewport center) · Scale(Zoom) · RotateZ(-Rotation) · Translate(-X, -Y).
func (c *Camera) ViewMatrix() Matrix {
	if !c.dirty {
		return c.view
	}
	c.dirty = false
	cx := c.Viewport.X + c.Viewport.Width/2
	cy := c.Viewport.Y + c.Viewport.Height/2
	c.view = Translate3D(cx, cy, 0).
		Multiply(Scale3D(c.Zoom, c.Zoom, 1)).
		Multiply(RotateZ(-c.Rotation)).
		Translate(-c.X, -c.Y, 0)
	c.inv, _ = c.view.Inverse()
	return c.view
}

// WorldToScreen converts layer-space coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	p := c.ViewMatrix().MapPoint(Vec3{X: wx, Y: wy})
	return p.X, p.Y
}

// ScreenToWorld converts screen coordinates to layer space.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	c.ViewMatrix()
	p := c.inv.MapPoint(Vec3{X: sx, Y: sy})
	return p.X, p.Y
}

// VisibleBounds returns the layer-space bounding box of the viewport.
func (c *Camera) VisibleBounds() Rect {
	c.ViewMatrix()
	return c.inv.MapRect(c.Viewport)
}

// SetCamera installs a camera used by Draw, Commands and HitTest. nil
// restores the identity view.
func (s *Scene) SetCamera(c *Camera) {
	s.camera = c
	if c != nil {
		c.MarkDirty()
	}
}

// Camera returns the installed camera, or nil.
func (s *Scene) Camera() *Camera { return s.camera }

// culled reports whether n's subtree lies entirely outside the camera's
// visible area.
func (s *Scene) culled(n *layerNode) bool {
	if s.camera == nil || !s.camera.CullEnabled {
		return false
	}
	b := s.subtreeBounds(n)
	if pad := float64(filterPadding(n.filters)); pad > 0 {
		b = Rect{b.X - pad, b.Y - pad, b.Width + 2*pad, b.Height + 2*pad}
	}
	return !b.Overlaps(s.visible)
}
