package strata

import (
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
)

// PaintFunc paints the layer-space rect of a layer into dst. dst covers
// exactly rect and is a sub-image of a shared atlas, so its bounds do not
// start at the origin; use PaintGeoM to map layer coordinates into it.
type PaintFunc func(dst *ebiten.Image, rect image.Rectangle)

// PaintGeoM returns the GeoM translating layer coordinates into dst for the
// rect passed to a PaintFunc.
func PaintGeoM(dst *ebiten.Image, rect image.Rectangle) ebiten.GeoM {
	var g ebiten.GeoM
	off := dst.Bounds().Min.Sub(rect.Min)
	g.Translate(float64(off.X), float64(off.Y))
	return g
}

// Layer is the producer-side compositing layer. Layers are created by a
// Coordinator and must only be touched from the goroutine that owns it.
//
// Every setter records the new value in the layer's pending ChangeRecord;
// unchanged values are not recorded. The record is handed to the next
// FrameState by Coordinator.Flush.
type Layer struct {
	id       LayerID
	c        *Coordinator
	parent   LayerID
	children []LayerID
	state    LayerState

	// Name is a debugging label. It is not synchronised.
	Name string

	paint        PaintFunc
	backing      *BackingStore
	needsDisplay image.Rectangle

	animations Animations
	onScroll   func(delta Vec2)

	pending   *ChangeRecord
	destroyed bool
}

// ID returns the layer id.
func (l *Layer) ID() LayerID { return l.id }

// State returns a copy of the authored state.
func (l *Layer) State() LayerState { return l.state }

// Destroyed reports whether Destroy has run.
func (l *Layer) Destroyed() bool { return l.destroyed }

// changes returns the pending record, creating it and marking the layer
// dirty in the coordinator.
func (l *Layer) changes() *ChangeRecord {
	if globalDebug && l.destroyed {
		panic(fmt.Sprintf("strata: change on destroyed layer %d (%q)", l.id, l.Name))
	}
	if l.pending == nil {
		l.pending = &ChangeRecord{}
	}
	l.c.markDirty(l)
	return l.pending
}

// --- Geometry ---

// SetPosition sets the position in the parent's children space.
func (l *Layer) SetPosition(p Vec2) {
	if l.state.Position == p {
		return
	}
	l.state.Position = p
	l.changes().Position = &p
}

// SetAnchorPoint sets the transform origin.
func (l *Layer) SetAnchorPoint(a Vec3) {
	if l.state.AnchorPoint == a {
		return
	}
	l.state.AnchorPoint = a
	l.changes().AnchorPoint = &a
}

// SetSize sets the layer size. Growing the layer repaints the new area.
func (l *Layer) SetSize(s Vec2) {
	if l.state.Size == s {
		return
	}
	l.state.Size = s
	l.changes().Size = &s
}

// SetTransform sets the layer's own transform.
func (l *Layer) SetTransform(m Matrix) {
	if l.state.Transform == m {
		return
	}
	l.state.Transform = m
	l.changes().Transform = &m
}

// SetChildrenTransform sets the transform applied to children only.
func (l *Layer) SetChildrenTransform(m Matrix) {
	if l.state.ChildrenTransform == m {
		return
	}
	l.state.ChildrenTransform = m
	l.changes().ChildrenTransform = &m
}

// SetContentsRect sets where a solid color or image is drawn, in layer
// coordinates. An empty rect means the whole layer.
func (l *Layer) SetContentsRect(r Rect) {
	if l.state.ContentsRect == r {
		return
	}
	l.state.ContentsRect = r
	l.changes().ContentsRect = &r
}

// SetOpacity sets the layer opacity, clamped to [0, 1].
func (l *Layer) SetOpacity(v float64) {
	v = math.Min(1, math.Max(0, v))
	if l.state.Opacity == v {
		return
	}
	l.state.Opacity = v
	l.changes().Opacity = &v
}

// SetSolidColor fills the layer with c. ColorTransparent disables the fill.
func (l *Layer) SetSolidColor(c Color) {
	if l.state.SolidColor == c {
		return
	}
	l.state.SolidColor = c
	l.changes().SolidColor = &c
}

// SetFilters replaces the filter chain.
func (l *Layer) SetFilters(ops FilterOperations) {
	if slices.Equal(l.state.Filters, ops) {
		return
	}
	ops = slices.Clone(ops)
	l.state.Filters = ops
	l.changes().Filters = &ops
}

// --- Flags ---

func (l *Layer) setFlag(dst *bool, v bool, field func(*ChangeRecord) **bool) {
	if *dst == v {
		return
	}
	*dst = v
	*field(l.changes()) = &v
}

// SetDrawsContent enables tiled painting through the layer's PaintFunc.
func (l *Layer) SetDrawsContent(v bool) {
	l.setFlag(&l.state.DrawsContent, v, func(r *ChangeRecord) **bool { return &r.DrawsContent })
	if v {
		l.SetNeedsDisplay()
	}
}

// SetContentsOpaque declares that painted content covers every pixel.
// Opaque layers are painted into atlases without alpha.
func (l *Layer) SetContentsOpaque(v bool) {
	l.setFlag(&l.state.ContentsOpaque, v, func(r *ChangeRecord) **bool { return &r.ContentsOpaque })
}

// SetContentsVisible hides the layer's own content but keeps its children.
func (l *Layer) SetContentsVisible(v bool) {
	l.setFlag(&l.state.ContentsVisible, v, func(r *ChangeRecord) **bool { return &r.ContentsVisible })
}

// SetBackfaceVisible controls whether the layer paints when turned away.
func (l *Layer) SetBackfaceVisible(v bool) {
	l.setFlag(&l.state.BackfaceVisible, v, func(r *ChangeRecord) **bool { return &r.BackfaceVisible })
}

// SetMasksToBounds clips descendants to the layer bounds.
func (l *Layer) SetMasksToBounds(v bool) {
	l.setFlag(&l.state.MasksToBounds, v, func(r *ChangeRecord) **bool { return &r.MasksToBounds })
}

// SetPreserves3D keeps children in 3D instead of flattening them.
func (l *Layer) SetPreserves3D(v bool) {
	l.setFlag(&l.state.Preserves3D, v, func(r *ChangeRecord) **bool { return &r.Preserves3D })
}

// SetScrollable lets the consumer scroll the layer's children directly.
func (l *Layer) SetScrollable(v bool) {
	l.setFlag(&l.state.Scrollable, v, func(r *ChangeRecord) **bool { return &r.Scrollable })
}

// --- Content ---

// SetPaintFunc installs the painter used for tiled content.
func (l *Layer) SetPaintFunc(fn PaintFunc) {
	l.paint = fn
	if l.state.DrawsContent {
		l.SetNeedsDisplay()
	}
}

// bounds returns the layer rect in layer coordinates.
func (l *Layer) bounds() image.Rectangle {
	return Rect{Width: l.state.Size.X, Height: l.state.Size.Y}.Enclosing()
}

// SetNeedsDisplay schedules a repaint of the whole layer.
func (l *Layer) SetNeedsDisplay() {
	l.SetNeedsDisplayInRect(l.bounds())
}

// SetNeedsDisplayInRect schedules a repaint of r, in layer coordinates.
func (l *Layer) SetNeedsDisplayInRect(r image.Rectangle) {
	if !l.state.DrawsContent || r.Empty() {
		return
	}
	l.needsDisplay = l.needsDisplay.Union(r)
	l.c.markDirty(l)
}

// SetImage shows a shared image backing instead of tiles. Zero clears it.
func (l *Layer) SetImage(id ImageID) {
	if l.state.Image == id {
		return
	}
	l.state.Image = id
	l.changes().Image = &id
}

// SetMask uses m's content alpha to clip this layer. nil clears the mask.
func (l *Layer) SetMask(m *Layer) {
	id := InvalidLayerID
	if m != nil {
		id = m.id
	}
	if l.state.Mask == id {
		return
	}
	l.state.Mask = id
	l.changes().Mask = &id
}

// SetReplica paints r's subtree behind this layer as a reflection. nil
// clears the replica.
func (l *Layer) SetReplica(r *Layer) {
	id := InvalidLayerID
	if r != nil {
		id = r.id
	}
	if l.state.Replica == id {
		return
	}
	l.state.Replica = id
	l.changes().Replica = &id
}

// OnScroll installs the callback invoked when the consumer commits a
// scroll of this layer.
func (l *Layer) OnScroll(fn func(delta Vec2)) {
	l.onScroll = fn
}

// --- Animations ---

func (l *Layer) syncAnimations() {
	list := l.animations.List()
	l.changes().Animations = &list
}

// AddAnimation starts a keyframe animation. A zero StartTime is set from the
// coordinator clock.
func (l *Layer) AddAnimation(a Animation) {
	if a.StartTime == 0 && a.State == AnimationPlaying {
		a.StartTime = l.c.now()
	}
	l.animations.Add(a)
	l.syncAnimations()
}

// RemoveAnimation stops and drops the named animations.
func (l *Layer) RemoveAnimation(name string) {
	l.animations.Remove(name)
	l.syncAnimations()
}

// PauseAnimation freezes the named animations at offset seconds.
func (l *Layer) PauseAnimation(name string, offset float64) {
	l.animations.Pause(name, offset)
	l.syncAnimations()
}

// Animations returns a copy of the layer's animations.
func (l *Layer) Animations() []Animation { return l.animations.List() }

// --- Tree manipulation ---

func (l *Layer) childrenChanged() {
	ids := slices.Clone(l.children)
	l.changes().Children = &ids
}

// isAncestorOf reports whether l is child or one of child's ancestors.
func (l *Layer) isAncestorOf(child *Layer) bool {
	for id := child.id; id != InvalidLayerID; {
		if id == l.id {
			return true
		}
		p := l.c.layers[id]
		if p == nil {
			break
		}
		id = p.parent
	}
	return false
}

func (l *Layer) checkChild(child *Layer) {
	if child == nil {
		panic("strata: cannot add nil child")
	}
	if child.c != l.c {
		panic("strata: child belongs to another coordinator")
	}
	if child.destroyed || l.destroyed {
		panic("strata: tree operation on destroyed layer")
	}
	if child.isAncestorOf(l) {
		panic("strata: adding child would create a cycle")
	}
}

// AddChild appends child. If child already has a parent it is removed from
// that parent first. Panics if child is nil or an ancestor of l.
func (l *Layer) AddChild(child *Layer) {
	l.checkChild(child)
	child.RemoveFromParent()
	child.parent = l.id
	l.children = append(l.children, child.id)
	l.childrenChanged()
}

// AddChildAt inserts child at index. Same reparenting and cycle rules as
// AddChild.
func (l *Layer) AddChildAt(child *Layer, index int) {
	l.checkChild(child)
	child.RemoveFromParent()
	if index < 0 || index > len(l.children) {
		panic("strata: child index out of range")
	}
	child.parent = l.id
	l.children = slices.Insert(l.children, index, child.id)
	l.childrenChanged()
}

// RemoveChild detaches child. Panics if child is not a child of l.
func (l *Layer) RemoveChild(child *Layer) {
	i := slices.Index(l.children, child.id)
	if child.parent != l.id || i < 0 {
		panic("strata: child's parent is not this layer")
	}
	l.children = slices.Delete(l.children, i, i+1)
	child.parent = InvalidLayerID
	l.childrenChanged()
}

// RemoveFromParent detaches l from its parent. No-op without a parent.
func (l *Layer) RemoveFromParent() {
	if l.parent == InvalidLayerID {
		return
	}
	if p := l.c.layers[l.parent]; p != nil {
		p.RemoveChild(l)
		return
	}
	l.parent = InvalidLayerID
}

// RemoveChildren detaches every child. Children are not destroyed.
func (l *Layer) RemoveChildren() {
	if len(l.children) == 0 {
		return
	}
	for _, id := range l.children {
		if c := l.c.layers[id]; c != nil {
			c.parent = InvalidLayerID
		}
	}
	l.children = l.children[:0]
	l.childrenChanged()
}

// Children returns the child ids in paint order. The slice must not be
// mutated.
func (l *Layer) Children() []LayerID { return l.children }

// Parent returns the parent id, or InvalidLayerID.
func (l *Layer) Parent() LayerID { return l.parent }

// Destroy removes l and its whole subtree from the coordinator. Layers that
// used any of them as mask or replica lose the reference.
func (l *Layer) Destroy() {
	if l.destroyed {
		return
	}
	l.RemoveFromParent()
	l.c.destroy(l)
}
