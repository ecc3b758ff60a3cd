package strata

import (
	"fmt"
	"image"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// WallClock returns seconds since the Unix epoch. Coordinator and Scene use
// it by default so that animation start times agree across processes on one
// machine.
func WallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Coordinator is the producer half of the compositor. It owns the producer
// layer tree, paints dirty content into update atlases and turns pending
// changes into FrameStates.
//
// A Coordinator is not safe for concurrent use. Host serialises access when
// the producer runs on its own goroutine.
type Coordinator struct {
	cfg      Config
	surfaces SurfaceFactory
	sink     EventSink
	now      func() float64

	layers    map[LayerID]*Layer
	lastLayer LayerID
	root      LayerID
	dirty     map[LayerID]struct{}

	next      *FrameState
	frame     uint64
	awaiting  bool
	suspended bool

	atlases   []*UpdateAtlas
	lastAtlas AtlasID

	images    map[ImageID]*Surface
	lastImage ImageID

	// surfaces dropped by the producer that the consumer may still sample
	// until it acknowledges the frame announcing their removal.
	deferred []SurfaceID
	inFlight []SurfaceID
}

// NewCoordinator creates a producer with the given configuration. surfaces
// provides atlas and image surfaces; it is normally shared with the Scene.
func NewCoordinator(cfg Config, surfaces SurfaceFactory) *Coordinator {
	if cfg.Debug {
		SetDebugMode(true)
	}
	return &Coordinator{
		cfg:      cfg,
		surfaces: surfaces,
		now:      WallClock,
		layers:   make(map[LayerID]*Layer),
		dirty:    make(map[LayerID]struct{}),
		images:   make(map[ImageID]*Surface),
	}
}

// Config returns the configuration the coordinator was created with.
func (c *Coordinator) Config() Config { return c.cfg }

// SetEventSink installs the optional lifecycle event sink.
func (c *Coordinator) SetEventSink(sink EventSink) { c.sink = sink }

// SetClock replaces the animation clock. fn returns seconds.
func (c *Coordinator) SetClock(fn func() float64) { c.now = fn }

func (c *Coordinator) pending() *FrameState {
	if c.next == nil {
		c.next = &FrameState{}
	}
	return c.next
}

func (c *Coordinator) markDirty(l *Layer) {
	if l.destroyed {
		return
	}
	c.dirty[l.id] = struct{}{}
}

// NewLayer creates a layer with default state. The consumer learns about it
// in the next flush.
func (c *Coordinator) NewLayer() *Layer {
	c.lastLayer++
	l := &Layer{id: c.lastLayer, c: c, state: DefaultLayerState()}
	c.layers[l.id] = l
	fs := c.pending()
	fs.Created = append(fs.Created, l.id)
	return l
}

// Layer resolves an id, or returns nil.
func (c *Coordinator) Layer(id LayerID) *Layer { return c.layers[id] }

// Len returns the number of live layers.
func (c *Coordinator) Len() int { return len(c.layers) }

// SetRootLayer selects the root of the rendered tree. nil clears it.
func (c *Coordinator) SetRootLayer(l *Layer) {
	id := InvalidLayerID
	if l != nil {
		id = l.id
	}
	if c.root == id {
		return
	}
	c.root = id
	c.pending()
}

// RootLayer returns the root layer, or nil.
func (c *Coordinator) RootLayer() *Layer { return c.layers[c.root] }

// destroy tears down l and its subtree. l is already detached.
func (c *Coordinator) destroy(l *Layer) {
	for _, id := range l.children {
		if child := c.layers[id]; child != nil {
			child.parent = InvalidLayerID
			c.destroy(child)
		}
	}
	l.children = nil
	l.destroyed = true
	l.pending = nil
	l.backing = nil
	delete(c.layers, l.id)
	delete(c.dirty, l.id)

	fs := c.pending()
	if i := slices.Index(fs.Created, l.id); i >= 0 {
		fs.Created = slices.Delete(fs.Created, i, i+1)
	} else {
		fs.Removed = append(fs.Removed, l.id)
	}
	if c.root == l.id {
		c.root = InvalidLayerID
	}
	for _, other := range c.layers {
		if other.state.Mask == l.id {
			other.SetMask(nil)
		}
		if other.state.Replica == l.id {
			other.SetReplica(nil)
		}
	}
}

// AwaitingAck reports whether a FrameState is in flight.
func (c *Coordinator) AwaitingAck() bool { return c.awaiting }

// NeedsFlush reports whether Flush would produce a FrameState.
func (c *Coordinator) NeedsFlush() bool {
	return !c.awaiting && (len(c.dirty) > 0 || c.next != nil)
}

// Flush visits the dirty layers, paints their invalidated content and
// returns the FrameState describing every change since the previous flush.
// It returns false while the previous frame is unacknowledged or when
// nothing changed; pending changes keep accumulating in that case.
func (c *Coordinator) Flush() (*FrameState, bool) {
	if !c.NeedsFlush() {
		return nil, false
	}
	start := time.Now()
	fs := c.pending()
	c.next = nil

	ids := slices.Sorted(maps.Keys(c.dirty))
	clear(c.dirty)
	painted := 0
	for _, id := range ids {
		if l := c.layers[id]; l != nil {
			painted += c.flushLayer(l, fs)
		}
	}

	c.frame++
	fs.Frame = c.frame
	fs.Root = c.root
	c.awaiting = true
	c.inFlight = append(c.inFlight, c.deferred...)
	c.deferred = c.deferred[:0]

	Logger().Debug("flush",
		slog.Uint64("frame", fs.Frame),
		slog.Int("layers", len(ids)),
		slog.Int("tiles_painted", painted),
		slog.Int("atlases", len(c.atlases)),
		slog.Duration("elapsed", time.Since(start)),
	)
	emit(c.sink, CompositorEvent{Type: EventFrameCommitted, Frame: fs.Frame})
	return fs, true
}

func (c *Coordinator) flushLayer(l *Layer, fs *FrameState) int {
	rec := l.pending
	l.pending = nil
	if rec == nil {
		rec = &ChangeRecord{}
	}
	painted := c.updateBackingStore(l, rec)
	if !reflect.ValueOf(rec).Elem().IsZero() {
		fs.update(l.id).merge(rec)
	}
	return painted
}

// updateBackingStore resizes l's tile grid and repaints its dirty area,
// appending tile operations to rec.
func (c *Coordinator) updateBackingStore(l *Layer, rec *ChangeRecord) int {
	bounds := l.bounds()
	if c.suspended {
		return 0
	}
	if !l.state.DrawsContent || bounds.Empty() {
		if l.backing != nil {
			rec.TilesToRemove = append(rec.TilesToRemove, l.backing.Purge()...)
		}
		l.needsDisplay = image.Rectangle{}
		return 0
	}
	if l.backing == nil {
		l.backing = NewBackingStore(c.cfg.TileEraseThreshold)
	}
	ts := image.Pt(c.cfg.TileSize, c.cfg.TileSize)
	ch := l.backing.Resize(bounds.Size(), ts, !l.state.ContentsOpaque)
	for _, t := range ch.Created {
		rec.TilesToCreate = append(rec.TilesToCreate, TileCreate{ID: t.ID, Scale: t.Scale})
		rec.TilesToUpdate = append(rec.TilesToUpdate, TileUpdate{ID: t.ID, TileRect: t.Rect})
		l.needsDisplay = l.needsDisplay.Union(t.Rect)
	}
	for _, t := range ch.Recycled {
		rec.TilesToUpdate = append(rec.TilesToUpdate, TileUpdate{ID: t.ID, TileRect: t.Rect})
		l.needsDisplay = l.needsDisplay.Union(t.Rect)
	}
	for _, t := range ch.Parked {
		rec.TilesToUpdate = append(rec.TilesToUpdate, TileUpdate{ID: t.ID})
	}
	rec.TilesToRemove = append(rec.TilesToRemove, ch.Removed...)
	if len(ch.Repaint) > 0 {
		Logger().Debug("coverage dropped",
			slog.Uint64("layer", uint64(l.id)),
			slog.Int("rects", len(ch.Repaint)),
		)
	}

	dirty := l.needsDisplay.Intersect(bounds)
	l.needsDisplay = image.Rectangle{}
	if dirty.Empty() {
		return 0
	}
	alpha := !l.state.ContentsOpaque
	painted := 0
	l.backing.UpdateContents(dirty, func(t *Tile, target image.Rectangle, off image.Point) bool {
		layerRect := image.Rectangle{Min: dirty.Min.Add(off), Max: dirty.Min.Add(off).Add(target.Size())}
		atlas, offset, ok := c.paintToAtlas(target.Size(), alpha, func(dst *ebiten.Image) {
			if l.paint != nil {
				l.paint(dst, layerRect)
			}
		})
		if !ok {
			Logger().Warn("tile paint skipped",
				slog.Uint64("layer", uint64(l.id)),
				slog.Uint64("tile", uint64(t.ID)),
				slog.String("rect", layerRect.String()),
			)
			l.needsDisplay = l.needsDisplay.Union(layerRect)
			c.dirty[l.id] = struct{}{}
			return false
		}
		rec.TilesToUpdate = append(rec.TilesToUpdate, TileUpdate{
			ID:         t.ID,
			TileRect:   t.Rect,
			UpdateRect: target,
			Atlas:      atlas,
			Offset:     offset,
		})
		painted++
		return true
	})
	return painted
}

// paintToAtlas packs a paint of the given size into an atlas with matching
// alpha mode, creating a new atlas when every existing one is full.
func (c *Coordinator) paintToAtlas(size image.Point, alpha bool, paint func(dst *ebiten.Image)) (AtlasID, image.Point, bool) {
	draw := func(dst *ebiten.Image, _ image.Point) { paint(dst) }
	for _, a := range c.atlases {
		if a.SupportsAlpha() != alpha {
			continue
		}
		if off, ok := a.PaintOnAvailableBuffer(size, draw); ok {
			return a.ID(), off, true
		}
	}
	if size.X > c.cfg.AtlasDimension || size.Y > c.cfg.AtlasDimension {
		return 0, image.Point{}, false
	}
	dim := c.cfg.AtlasDimension
	surf, err := c.surfaces.NewSurface(image.Pt(dim, dim), alpha)
	if err != nil {
		Logger().Warn("atlas allocation failed", slog.Any("error", err))
		return 0, image.Point{}, false
	}
	c.lastAtlas++
	a := newUpdateAtlas(c.lastAtlas, surf, c.cfg.AtlasMinAllocation)
	c.atlases = append(c.atlases, a)
	fs := c.pending()
	fs.AtlasesCreated = append(fs.AtlasesCreated, AtlasCreate{ID: a.ID(), Surface: surf.ID, Alpha: alpha})
	Logger().Info("atlas created",
		slog.Uint64("atlas", uint64(a.ID())),
		slog.Bool("alpha", alpha),
		slog.Int("count", len(c.atlases)),
	)
	emit(c.sink, CompositorEvent{Type: EventAtlasCreated, Atlas: a.ID()})

	off, ok := a.PaintOnAvailableBuffer(size, draw)
	if !ok {
		return 0, image.Point{}, false
	}
	return a.ID(), off, true
}

// Atlases returns the number of live update atlases.
func (c *Coordinator) Atlases() int { return len(c.atlases) }

// RenderNextFrame acknowledges the in-flight FrameState. Every atlas starts
// a fresh layout and surfaces whose removal the consumer has now seen are
// released.
func (c *Coordinator) RenderNextFrame() {
	for _, a := range c.atlases {
		a.DidSwapBuffers()
	}
	for _, id := range c.inFlight {
		c.surfaces.Release(id)
	}
	c.inFlight = c.inFlight[:0]
	c.awaiting = false
}

// CommitScrollOffset applies a consumer scroll of delta to layer id. The
// layer's OnScroll callback runs and the delta is echoed back as
// CommittedScrollOffset. Unknown ids are ignored.
func (c *Coordinator) CommitScrollOffset(id LayerID, delta Vec2) {
	l := c.layers[id]
	if l == nil {
		Logger().Debug("scroll commit for unknown layer", slog.Uint64("layer", uint64(id)))
		return
	}
	if l.onScroll != nil {
		l.onScroll(delta)
	}
	rec := l.changes()
	sum := delta
	if rec.CommittedScrollOffset != nil {
		sum = sum.Add(*rec.CommittedScrollOffset)
	}
	rec.CommittedScrollOffset = &sum
}

// ReleaseInactiveAtlases ages every idle atlas by elapsed and releases those
// past the configured inactivity. One opaque atlas is always kept for root
// content.
func (c *Coordinator) ReleaseInactiveAtlases(elapsed time.Duration) {
	var keep *UpdateAtlas
	foundActiveOpaque := false
	for i := len(c.atlases) - 1; i >= 0; i-- {
		a := c.atlases[i]
		if !a.IsInUse() {
			a.AddTimeInactive(elapsed)
		}
		opaque := !a.SupportsAlpha()
		if !a.IsInactive(c.cfg.AtlasInactivity) {
			if opaque {
				foundActiveOpaque = true
			}
			continue
		}
		c.atlases = slices.Delete(c.atlases, i, i+1)
		if !foundActiveOpaque && keep == nil && opaque {
			keep = a
			continue
		}
		c.removeAtlas(a)
	}
	if keep != nil {
		if foundActiveOpaque {
			c.removeAtlas(keep)
		} else {
			c.atlases = append(c.atlases, keep)
		}
	}
}

func (c *Coordinator) removeAtlas(a *UpdateAtlas) {
	fs := c.pending()
	fs.AtlasesRemoved = append(fs.AtlasesRemoved, a.ID())
	c.deferred = append(c.deferred, a.Surface().ID)
	Logger().Info("atlas released",
		slog.Uint64("atlas", uint64(a.ID())),
		slog.Int("count", len(c.atlases)),
	)
	emit(c.sink, CompositorEvent{Type: EventAtlasReleased, Atlas: a.ID()})
}

// PurgeBackingStores releases every tile and atlas in one flush, as on
// visibility loss, and suspends painting until ResumePainting. Tile ids keep
// increasing across a purge.
func (c *Coordinator) PurgeBackingStores() {
	c.suspended = true
	for _, id := range slices.Sorted(maps.Keys(c.layers)) {
		l := c.layers[id]
		l.needsDisplay = image.Rectangle{}
		if l.backing == nil {
			continue
		}
		if ids := l.backing.Purge(); len(ids) > 0 {
			rec := l.changes()
			rec.TilesToRemove = append(rec.TilesToRemove, ids...)
		}
	}
	atlases := c.atlases
	c.atlases = nil
	for _, a := range atlases {
		c.removeAtlas(a)
	}
}

// ResumePainting ends a purge and marks every content layer for a full
// repaint.
func (c *Coordinator) ResumePainting() {
	if !c.suspended {
		return
	}
	c.suspended = false
	for _, l := range c.layers {
		if l.state.DrawsContent {
			l.SetNeedsDisplay()
		}
	}
}

// Suspended reports whether painting is suspended by a purge.
func (c *Coordinator) Suspended() bool { return c.suspended }

// CreateImageBacking copies img into a new shared surface and returns its
// id. Layers show it through SetImage.
func (c *Coordinator) CreateImageBacking(img *ebiten.Image) (ImageID, error) {
	surf, err := c.imageSurface(img)
	if err != nil {
		return 0, err
	}
	c.lastImage++
	id := c.lastImage
	c.images[id] = surf
	fs := c.pending()
	fs.ImagesCreated = append(fs.ImagesCreated, ImageBacking{ID: id, Surface: surf.ID})
	return id, nil
}

// UpdateImageBacking replaces the pixels of an image backing. The new
// pixels land in a fresh surface so the consumer never samples a half
// written image.
func (c *Coordinator) UpdateImageBacking(id ImageID, img *ebiten.Image) error {
	old, ok := c.images[id]
	if !ok {
		return fmt.Errorf("strata: update image %d: %w", id, ErrUnknownImage)
	}
	surf, err := c.imageSurface(img)
	if err != nil {
		return err
	}
	c.images[id] = surf
	c.deferred = append(c.deferred, old.ID)
	fs := c.pending()
	fs.ImagesUpdated = append(fs.ImagesUpdated, ImageBacking{ID: id, Surface: surf.ID})
	return nil
}

// ReleaseImageBacking drops an image backing. Layers showing it are reset
// to no image. Unknown ids are ignored.
func (c *Coordinator) ReleaseImageBacking(id ImageID) {
	surf, ok := c.images[id]
	if !ok {
		return
	}
	delete(c.images, id)
	for _, l := range c.layers {
		if l.state.Image == id {
			l.SetImage(0)
		}
	}
	c.deferred = append(c.deferred, surf.ID)
	fs := c.pending()
	fs.ImagesRemoved = append(fs.ImagesRemoved, id)
}

func (c *Coordinator) imageSurface(img *ebiten.Image) (*Surface, error) {
	surf, err := c.surfaces.NewSurface(img.Bounds().Size(), true)
	if err != nil {
		return nil, fmt.Errorf("strata: image backing: %w", err)
	}
	var op ebiten.DrawImageOptions
	op.Blend = ebiten.BlendCopy
	b := img.Bounds()
	op.GeoM.Translate(float64(-b.Min.X), float64(-b.Min.Y))
	surf.Image.DrawImage(img, &op)
	return surf, nil
}
