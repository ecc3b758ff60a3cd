package strata

import (
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// UpdateAtlas is a shared surface that packs the small paints of one commit
// cycle. The allocator lives only until DidSwapBuffers; the surface lives
// until the atlas has been idle longer than the inactivity tolerance.
type UpdateAtlas struct {
	id        AtlasID
	surface   *Surface
	minAlloc  image.Point
	allocator *AreaAllocator
	inactive  time.Duration
}

func newUpdateAtlas(id AtlasID, surface *Surface, minAlloc int) *UpdateAtlas {
	return &UpdateAtlas{
		id:       id,
		surface:  surface,
		minAlloc: image.Pt(minAlloc, minAlloc),
	}
}

// ID returns the atlas id.
func (a *UpdateAtlas) ID() AtlasID { return a.id }

// Surface returns the backing surface.
func (a *UpdateAtlas) Surface() *Surface { return a.surface }

// SupportsAlpha reports whether the surface keeps an alpha channel.
func (a *UpdateAtlas) SupportsAlpha() bool { return a.surface.Alpha }

// PaintOnAvailableBuffer reserves size pixels and paints them synchronously.
// paint receives the sub-image to draw into and its offset inside the
// surface. ok is false when the atlas has no room this cycle; a failed
// request neither counts as activity nor opens the cycle.
func (a *UpdateAtlas) PaintOnAvailableBuffer(size image.Point, paint func(dst *ebiten.Image, offset image.Point)) (image.Point, bool) {
	opened := a.allocator == nil
	if opened {
		a.allocator = NewAreaAllocator(a.surface.Size())
		a.allocator.SetMinimumAllocation(a.minAlloc)
	}
	r, ok := a.allocator.Allocate(size)
	if !ok {
		if opened {
			a.allocator = nil
		}
		return image.Point{}, false
	}
	a.inactive = 0
	if a.surface.Alpha {
		a.surface.Clear(r)
	}
	paint(a.surface.Region(r), r.Min)
	return r.Min, true
}

// DidSwapBuffers ends the commit cycle; the next paint starts a fresh layout.
func (a *UpdateAtlas) DidSwapBuffers() {
	a.allocator = nil
}

// IsInUse reports whether the current cycle has an open allocator.
func (a *UpdateAtlas) IsInUse() bool { return a.allocator != nil }

// AddTimeInactive accumulates idle time. Ignored while the atlas is in use.
func (a *UpdateAtlas) AddTimeInactive(d time.Duration) {
	if a.IsInUse() {
		return
	}
	a.inactive += d
}

// IsInactive reports whether the atlas has been idle longer than tolerance
// and has no open allocator.
func (a *UpdateAtlas) IsInactive(tolerance time.Duration) bool {
	return !a.IsInUse() && a.inactive > tolerance
}
