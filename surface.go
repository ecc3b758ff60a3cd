package strata

import (
	"fmt"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// SurfaceID names a Surface inside a Surfaces registry. FrameStates carry
// surface ids, never image handles.
type SurfaceID uint32

// Surface is a paintable image plus its alpha mode.
type Surface struct {
	ID    SurfaceID
	Image *ebiten.Image
	Alpha bool
}

// Size returns the surface size in pixels.
func (s *Surface) Size() image.Point {
	return s.Image.Bounds().Size()
}

// Region returns the sub-image covering r.
func (s *Surface) Region(r image.Rectangle) *ebiten.Image {
	return s.Image.SubImage(r).(*ebiten.Image)
}

// Clear resets r to transparent.
func (s *Surface) Clear(r image.Rectangle) {
	s.Region(r).Clear()
}

// SurfaceFactory creates surfaces on demand and takes them back once
// neither side references them.
type SurfaceFactory interface {
	NewSurface(size image.Point, alpha bool) (*Surface, error)
	Release(id SurfaceID)
}

// Surfaces is an ebiten-backed SurfaceFactory that also resolves ids. One
// registry is shared by a Coordinator and the Scene mirroring it; it is safe
// for concurrent use.
type Surfaces struct {
	mu    sync.RWMutex
	next  SurfaceID
	byID  map[SurfaceID]*Surface
	limit int
}

// NewSurfaces creates an empty registry.
func NewSurfaces() *Surfaces {
	return &Surfaces{byID: make(map[SurfaceID]*Surface)}
}

// SetLimit caps the number of live surfaces. Zero means unlimited. Requests
// beyond the cap fail with ErrSurfaceUnavailable.
func (s *Surfaces) SetLimit(n int) {
	s.mu.Lock()
	s.limit = n
	s.mu.Unlock()
}

// NewSurface allocates a surface of the given size.
func (s *Surfaces) NewSurface(size image.Point, alpha bool) (*Surface, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("strata: surface %v: %w", size, ErrInvalidSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.byID) >= s.limit {
		return nil, fmt.Errorf("strata: %d live surfaces: %w", len(s.byID), ErrSurfaceUnavailable)
	}
	s.next++
	surf := &Surface{
		ID:    s.next,
		Image: ebiten.NewImage(size.X, size.Y),
		Alpha: alpha,
	}
	s.byID[surf.ID] = surf
	return surf, nil
}

// Lookup resolves a surface id.
func (s *Surfaces) Lookup(id SurfaceID) (*Surface, bool) {
	s.mu.RLock()
	surf, ok := s.byID[id]
	s.mu.RUnlock()
	return surf, ok
}

// Release deallocates a surface. Unknown ids are ignored.
func (s *Surfaces) Release(id SurfaceID) {
	s.mu.Lock()
	surf, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()
	if ok {
		surf.Image.Deallocate()
	}
}

// Len returns the number of live surfaces.
func (s *Surfaces) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
