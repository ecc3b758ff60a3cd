package strata

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
)

const defaultCommandCap = 256

// sceneTile is the consumer copy of a producer tile. Its texture is a
// surface of exactly the tile rect size.
type sceneTile struct {
	id      TileID
	rect    image.Rectangle
	scale   float64
	texture *Surface
}

// layerNode mirrors one producer Layer. Only the Scene mutates it.
type layerNode struct {
	id       LayerID
	parent   LayerID
	children []LayerID
	state    LayerState

	transform  LayerTransform
	tiles      map[TileID]*sceneTile
	animations Animations
	userScroll Vec2

	// effective values for the current frame
	opacity float64
	local   Matrix
	filters FilterOperations
}

func newLayerNode(id LayerID) *layerNode {
	n := &layerNode{
		id:        id,
		state:     DefaultLayerState(),
		transform: NewLayerTransform(),
		tiles:     make(map[TileID]*sceneTile),
	}
	n.resetEffective()
	return n
}

func (n *layerNode) resetEffective() {
	n.opacity = n.state.Opacity
	n.local = n.state.Transform
	n.filters = n.state.Filters
}

func (n *layerNode) setAnimatedOpacity(v float64)          { n.opacity = v }
func (n *layerNode) setAnimatedTransform(m Matrix)         { n.local = m }
func (n *layerNode) setAnimatedFilters(f FilterOperations) { n.filters = f }

// syncTransform pushes authored geometry and the effective local matrix
// into the transform.
func (n *layerNode) syncTransform() {
	n.transform.SetPosition(n.state.Position)
	n.transform.SetSize(n.state.Size)
	n.transform.SetAnchorPoint(n.state.AnchorPoint)
	n.transform.SetChildrenTransform(n.state.ChildrenTransform)
	n.transform.SetFlattening(!n.state.Preserves3D)
	n.transform.SetLocalTransform(n.local)
}

func (n *layerNode) bounds() Rect {
	return Rect{Width: n.state.Size.X, Height: n.state.Size.Y}
}

// contentsRect returns where solid colors and images are drawn.
func (n *layerNode) contentsRect() Rect {
	if n.state.ContentsRect.IsEmpty() {
		return n.bounds()
	}
	return n.state.ContentsRect
}

// sortedTiles returns the tiles in id order.
func (n *layerNode) sortedTiles() []*sceneTile {
	ids := slices.Sorted(maps.Keys(n.tiles))
	out := make([]*sceneTile, 0, len(ids))
	for _, id := range ids {
		out = append(out, n.tiles[id])
	}
	return out
}

// Scene is the consumer half of the compositor. It mirrors the producer's
// layer tree from FrameStates, evaluates animations, and paints the tree
// onto an ebiten image.
//
// A Scene is not safe for concurrent use; drive it from the ebiten Update
// and Draw callbacks.
type Scene struct {
	surfaces *Surfaces
	sink     EventSink
	debug    bool

	nodes   map[LayerID]*layerNode
	root    LayerID
	frame   uint64
	atlases map[AtlasID]*Surface
	images  map[ImageID]*Surface

	scrolls []Signal
	input   inputState
	script  *ScriptRunner
	camera  *Camera
	visible Rect
	lastNow float64

	// Render state
	commands    []DrawCommand
	boundsCache map[LayerID]Rect
	offscreens  offscreenPool
	heldImages  []*ebiten.Image
	filters     filterCache
	targets     []submitTarget
	drawOp      ebiten.DrawImageOptions
	triOp       ebiten.DrawTrianglesOptions
	verts       [4]ebiten.Vertex
	screenshots []string

	// ScreenshotDir is where Screenshot writes PNG files.
	ScreenshotDir string
}

// NewScene creates an empty consumer. surfaces must be the registry the
// producer allocates atlas and image surfaces from.
func NewScene(surfaces *Surfaces) *Scene {
	return &Scene{
		surfaces:    surfaces,
		nodes:       make(map[LayerID]*layerNode),
		atlases:     make(map[AtlasID]*Surface),
		images:      make(map[ImageID]*Surface),
		commands:    make([]DrawCommand, 0, defaultCommandCap),
		boundsCache: make(map[LayerID]Rect),

		ScreenshotDir: "screenshots",
	}
}

// SetEventSink sets the optional ECS bridge.
func (s *Scene) SetEventSink(sink EventSink) {
	s.sink = sink
}

// SetDebugMode enables or disables debug mode. When enabled, protocol
// violations panic, reading stale transforms panics, and per-frame paint
// statistics are logged at debug level.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	SetDebugMode(enabled)
}

// Frame returns the number of the last applied FrameState.
func (s *Scene) Frame() uint64 { return s.frame }

// Root returns the root layer id.
func (s *Scene) Root() LayerID { return s.root }

// Len returns the number of mirrored layers.
func (s *Scene) Len() int { return len(s.nodes) }

// Combined returns the combined transform of a layer as of the last
// ComputeTransforms.
func (s *Scene) Combined(id LayerID) (Matrix, bool) {
	n := s.nodes[id]
	if n == nil {
		return Matrix{}, false
	}
	return n.transform.Combined(), true
}

// Update forwards queued scroll commits, applies the pending FrameState if
// any, acknowledges it, advances animations to now and moves the camera. The returned error
// is the protocol error from Apply or a link failure; the frame is
// acknowledged either way.
func (s *Scene) Update(link SceneLink, now float64) error {
	var errs []error
	for _, sig := range s.scrolls {
		if err := link.CommitScrollOffset(sig.Layer, sig.Offset); err != nil {
			errs = append(errs, err)
		}
	}
	s.scrolls = s.scrolls[:0]
	if fs, ok := link.TryReceive(); ok {
		if err := s.Apply(fs); err != nil {
			errs = append(errs, err)
		}
		if err := link.RenderNextFrame(); err != nil {
			errs = append(errs, err)
		}
	}
	s.ApplyAnimations(now)
	s.ComputeTransforms()
	if s.camera != nil {
		var dt float64
		if s.lastNow > 0 && now > s.lastNow {
			dt = now - s.lastNow
		}
		s.camera.update(s, float32(dt))
	}
	s.lastNow = now
	return errors.Join(errs...)
}

// Apply brings the mirror up to date with fs. Steps run in a fixed order so
// forward references resolve: created layers, removed layers, new atlases
// and images, per-layer records in id order, the root, then atlas and image
// removals. References to unknown layers are protocol errors: the offending
// field is skipped, the rest of the frame still applies, and the errors are
// returned joined. In debug mode the first protocol error panics.
func (s *Scene) Apply(fs *FrameState) error {
	var errs []error
	fail := func(err *ProtocolError) {
		err.Frame = fs.Frame
		errs = append(errs, s.protocolError(err))
	}

	for _, id := range fs.Created {
		if _, ok := s.nodes[id]; !ok {
			s.nodes[id] = newLayerNode(id)
		}
	}
	for _, id := range fs.Removed {
		s.removeNode(id)
	}
	for _, a := range fs.AtlasesCreated {
		surf, ok := s.surfaces.Lookup(a.Surface)
		if !ok {
			fail(&ProtocolError{Field: "atlas", Ref: uint32(a.ID), Kind: ErrSurfaceUnavailable})
			continue
		}
		s.atlases[a.ID] = surf
	}
	for _, b := range slices.Concat(fs.ImagesCreated, fs.ImagesUpdated) {
		surf, ok := s.surfaces.Lookup(b.Surface)
		if !ok {
			fail(&ProtocolError{Field: "image", Ref: uint32(b.ID), Kind: ErrSurfaceUnavailable})
			continue
		}
		s.images[b.ID] = surf
	}

	for _, id := range slices.Sorted(maps.Keys(fs.Updates)) {
		n := s.nodes[id]
		if n == nil {
			fail(&ProtocolError{Layer: id, Field: "update", Ref: uint32(id), Kind: ErrUnknownLayer})
			continue
		}
		for _, err := range s.applyRecord(n, fs.Updates[id]) {
			fail(err)
		}
	}

	switch {
	case fs.Root == InvalidLayerID || s.nodes[fs.Root] != nil:
		s.root = fs.Root
	default:
		fail(&ProtocolError{Field: "root", Ref: uint32(fs.Root), Kind: ErrUnknownLayer})
	}

	for _, id := range fs.AtlasesRemoved {
		delete(s.atlases, id)
	}
	for _, id := range fs.ImagesRemoved {
		delete(s.images, id)
	}
	s.frame = fs.Frame
	clear(s.boundsCache)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	emit(s.sink, CompositorEvent{Type: EventFrameApplied, Frame: fs.Frame})
	return nil
}

func (s *Scene) protocolError(err *ProtocolError) error {
	Logger().Error("protocol violation",
		slog.Uint64("frame", err.Frame),
		slog.Uint64("layer", uint64(err.Layer)),
		slog.String("field", err.Field),
		slog.Uint64("ref", uint64(err.Ref)),
		slog.Any("error", err.Kind),
	)
	emit(s.sink, CompositorEvent{Type: EventProtocolError, Frame: err.Frame, Layer: err.Layer, Err: err})
	if s.debug {
		panic(err)
	}
	return err
}

// applyRecord applies one ChangeRecord in field order: geometry, flags,
// mask and replica, image, children, tiles, animations, scroll.
func (s *Scene) applyRecord(n *layerNode, rec *ChangeRecord) []*ProtocolError {
	var errs []*ProtocolError
	ref := func(field string, id uint32, kind error) {
		errs = append(errs, &ProtocolError{Layer: n.id, Field: field, Ref: id, Kind: kind})
	}

	rec.applyGeometry(&n.state)
	rec.applyFlags(&n.state)

	if rec.Mask != nil {
		if id := *rec.Mask; id != InvalidLayerID && s.nodes[id] == nil {
			ref("mask", uint32(id), ErrUnknownLayer)
		} else {
			n.state.Mask = id
		}
	}
	if rec.Replica != nil {
		if id := *rec.Replica; id != InvalidLayerID && s.nodes[id] == nil {
			ref("replica", uint32(id), ErrUnknownLayer)
		} else {
			n.state.Replica = id
		}
	}

	if rec.Image != nil {
		if id := *rec.Image; id != 0 && s.images[id] == nil {
			ref("image", uint32(id), ErrUnknownImage)
		} else {
			n.state.Image = id
		}
	}

	if rec.Children != nil {
		missing := false
		for _, id := range *rec.Children {
			if s.nodes[id] == nil {
				ref("children", uint32(id), ErrUnknownLayer)
				missing = true
			}
		}
		if !missing {
			s.setChildren(n, *rec.Children)
		}
	}

	for _, tc := range rec.TilesToCreate {
		if _, ok := n.tiles[tc.ID]; !ok {
			n.tiles[tc.ID] = &sceneTile{id: tc.ID, scale: tc.Scale}
		}
	}
	for _, tu := range rec.TilesToUpdate {
		t := n.tiles[tu.ID]
		if t == nil {
			ref("tile", uint32(tu.ID), ErrUnknownTile)
			continue
		}
		if err := s.updateTile(n, t, tu); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range rec.TilesToRemove {
		if t := n.tiles[id]; t != nil {
			s.releaseTile(t)
			delete(n.tiles, id)
		}
	}

	if rec.Animations != nil {
		n.animations.Set(*rec.Animations)
	}
	if rec.CommittedScrollOffset != nil {
		n.userScroll = n.userScroll.Sub(*rec.CommittedScrollOffset)
	}
	n.resetEffective()
	n.syncTransform()
	return errs
}

// setChildren replaces n's child list, detaching dropped children and
// stealing moved ones from their previous parent.
func (s *Scene) setChildren(n *layerNode, ids []LayerID) {
	for _, id := range n.children {
		if c := s.nodes[id]; c != nil && c.parent == n.id && !slices.Contains(ids, id) {
			c.parent = InvalidLayerID
		}
	}
	for _, id := range ids {
		c := s.nodes[id]
		if c.parent != InvalidLayerID && c.parent != n.id {
			if old := s.nodes[c.parent]; old != nil {
				old.children = slices.DeleteFunc(old.children, func(x LayerID) bool { return x == id })
			}
		}
		c.parent = n.id
	}
	n.children = slices.Clone(ids)
}

// updateTile moves a tile and copies fresh pixels out of an atlas. The
// texture is replaced when the tile changes size or alpha mode.
func (s *Scene) updateTile(n *layerNode, t *sceneTile, tu TileUpdate) *ProtocolError {
	alpha := !n.state.ContentsOpaque
	stale := t.texture == nil || t.texture.Alpha != alpha
	if tu.TileRect.Size() != t.rect.Size() || (stale && !tu.TileRect.Empty()) {
		s.releaseTile(t)
		if !tu.TileRect.Empty() {
			surf, err := s.surfaces.NewSurface(tu.TileRect.Size(), alpha)
			if err != nil {
				Logger().Warn("tile texture unavailable",
					slog.Uint64("layer", uint64(n.id)),
					slog.Uint64("tile", uint64(t.id)),
					slog.Any("error", err),
				)
			}
			t.texture = surf
		}
	}
	t.rect = tu.TileRect
	if tu.Atlas == 0 || tu.UpdateRect.Empty() || t.texture == nil {
		return nil
	}
	atlas := s.atlases[tu.Atlas]
	if atlas == nil {
		return &ProtocolError{Layer: n.id, Field: "atlas", Ref: uint32(tu.Atlas), Kind: ErrUnknownAtlas}
	}
	src := atlas.Region(image.Rectangle{Min: tu.Offset, Max: tu.Offset.Add(tu.UpdateRect.Size())})
	var op ebiten.DrawImageOptions
	op.Blend = ebiten.BlendCopy
	op.GeoM.Translate(float64(tu.UpdateRect.Min.X), float64(tu.UpdateRect.Min.Y))
	t.texture.Region(tu.UpdateRect).DrawImage(src, &op)
	return nil
}

func (s *Scene) releaseTile(t *sceneTile) {
	if t.texture != nil {
		s.surfaces.Release(t.texture.ID)
		t.texture = nil
	}
}

// removeNode deletes a layer and its tiles. Unknown ids are ignored.
func (s *Scene) removeNode(id LayerID) {
	n := s.nodes[id]
	if n == nil {
		return
	}
	if p := s.nodes[n.parent]; p != nil {
		p.children = slices.DeleteFunc(p.children, func(x LayerID) bool { return x == id })
	}
	for _, cid := range n.children {
		if c := s.nodes[cid]; c != nil && c.parent == id {
			c.parent = InvalidLayerID
		}
	}
	for _, t := range n.tiles {
		s.releaseTile(t)
	}
	delete(s.nodes, id)
	delete(s.boundsCache, id)
	if s.root == id {
		s.root = InvalidLayerID
	}
}

// ApplyAnimations resets every layer's effective opacity, transform and
// filters to the authored values and then evaluates its animations at now.
// Authored values come back on their own once an animation ends.
func (s *Scene) ApplyAnimations(now float64) {
	for _, n := range s.nodes {
		n.resetEffective()
		n.animations.Apply(n, now)
		n.transform.SetLocalTransform(n.local)
	}
	clear(s.boundsCache)
}

// HasRunningAnimations reports whether any layer still animates.
func (s *Scene) HasRunningAnimations() bool {
	for _, n := range s.nodes {
		if n.animations.HasRunning() {
			return true
		}
	}
	return false
}

// ComputeTransforms combines every reachable layer top-down from the root.
// Mask and replica layers combine against their owner's layer space.
func (s *Scene) ComputeTransforms() {
	if root := s.nodes[s.root]; root != nil {
		s.combine(root, Identity(), true)
	}
	clear(s.boundsCache)
}

func (s *Scene) combine(n *layerNode, parent Matrix, refs bool) {
	n.transform.Combine(parent)
	forChildren := n.transform.CombinedForChildren()
	if n.state.Scrollable && n.userScroll != (Vec2{}) {
		forChildren = forChildren.Translate(-n.userScroll.X, -n.userScroll.Y, 0)
	}
	for _, id := range n.children {
		if c := s.nodes[id]; c != nil {
			s.combine(c, forChildren, refs)
		}
	}
	if !refs {
		return
	}
	if m := s.nodes[n.state.Mask]; m != nil {
		s.combine(m, n.transform.Combined(), false)
	}
	if r := s.nodes[n.state.Replica]; r != nil {
		s.combine(r, n.transform.Combined(), false)
	}
}

// ScrollBy scrolls a scrollable layer's children by delta right away and
// queues the commit for the producer. It reports whether the layer exists
// and is scrollable.
func (s *Scene) ScrollBy(id LayerID, delta Vec2) bool {
	n := s.nodes[id]
	if n == nil || !n.state.Scrollable {
		return false
	}
	n.userScroll = n.userScroll.Add(delta)
	s.scrolls = append(s.scrolls, Signal{Kind: SignalCommitScrollOffset, Layer: id, Offset: delta})
	clear(s.boundsCache)
	return true
}

// Draw paints the tree onto target.
func (s *Scene) Draw(target *ebiten.Image) {
	var stats debugStats
	stats.begin(s.debug)
	cmds := s.Commands()
	stats.lap(&stats.paintTime)
	s.submit(target, cmds)
	stats.lap(&stats.submitTime)
	if s.debug {
		stats.count(cmds)
		stats.log(s.frame)
	}
	for _, img := range s.heldImages {
		s.offscreens.Release(img)
	}
	s.heldImages = s.heldImages[:0]
	if freed := s.offscreens.EndFrame(); freed > 0 {
		Logger().Debug("idle offscreens freed", slog.Int("count", freed))
	}
	s.flushScreenshots(target)
}

// Close releases every tile texture and pooled offscreen.
func (s *Scene) Close() {
	for _, id := range slices.Collect(maps.Keys(s.nodes)) {
		s.removeNode(id)
	}
	s.offscreens.Drain()
	s.filters.dispose()
}

// NodeDump is a snapshot of one mirrored layer.
type NodeDump struct {
	ID         LayerID
	Parent     LayerID
	Children   []LayerID
	State      LayerState
	Tiles      []TileDump
	Animations []Animation
	Combined   Matrix
	UserScroll Vec2
}

// TileDump is a snapshot of one tile.
type TileDump struct {
	ID         TileID
	Rect       image.Rectangle
	HasTexture bool
}

// SceneDump is a comparable snapshot of the whole mirror, with layers in id
// order.
type SceneDump struct {
	Frame   uint64
	Root    LayerID
	Nodes   []NodeDump
	Atlases []AtlasID
	Images  []ImageID
}

// Dump snapshots the mirror for tests and debugging.
func (s *Scene) Dump() SceneDump {
	d := SceneDump{
		Frame:   s.frame,
		Root:    s.root,
		Atlases: slices.Sorted(maps.Keys(s.atlases)),
		Images:  slices.Sorted(maps.Keys(s.images)),
	}
	for _, id := range slices.Sorted(maps.Keys(s.nodes)) {
		n := s.nodes[id]
		nd := NodeDump{
			ID:         n.id,
			Parent:     n.parent,
			Children:   slices.Clone(n.children),
			State:      n.state,
			Animations: n.animations.List(),
			Combined:   n.transform.Combined(),
			UserScroll: n.userScroll,
		}
		for _, t := range n.sortedTiles() {
			nd.Tiles = append(nd.Tiles, TileDump{ID: t.id, Rect: t.rect, HasTexture: t.texture != nil})
		}
		d.Nodes = append(d.Nodes, nd)
	}
	return d
}

// String returns a short description for logs.
func (n NodeDump) String() string {
	return fmt.Sprintf("layer %d (parent %d, %d children, %d tiles)", n.ID, n.Parent, len(n.Children), len(n.Tiles))
}
