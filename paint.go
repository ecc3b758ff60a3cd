package strata

import "image"

// DrawCommandType identifies the kind of draw command.
type DrawCommandType uint8

const (
	DrawTexture    DrawCommandType = iota // Image drawn over Rect
	DrawSolid                             // Color filled over Rect
	DrawBeginGroup                        // following commands go to an offscreen covering Bounds
	DrawEndGroup                          // composite the offscreen with Opacity, Filters and Clip
	DrawBeginMask                         // following commands paint the mask of the open group
	DrawEndMask                           // multiply the open group by the mask alpha
)

// DrawCommand is one instruction emitted by the paint walk. Matrix maps
// layer coordinates to screen coordinates.
type DrawCommand struct {
	Type    DrawCommandType
	Layer   LayerID
	Tile    TileID
	Image   *Surface
	Matrix  Matrix
	Rect    Rect
	Color   Color
	Opacity float64
	Filters FilterOperations
	Bounds  image.Rectangle
	Clip    image.Rectangle
}

// paintContext is threaded through the paint walk.
type paintContext struct {
	pre     Matrix  // applied on the left of every combined matrix
	opacity float64 // inherited opacity for direct draws
	refs    bool    // whether mask and replica links are followed
	depth   int
}

// Commands runs the paint walk from the root and returns the draw commands.
// The slice is reused by the next call.
func (s *Scene) Commands() []DrawCommand {
	s.commands = s.commands[:0]
	pre := Identity()
	if s.camera != nil {
		pre = s.camera.ViewMatrix()
		s.visible = s.camera.VisibleBounds()
	}
	if root := s.nodes[s.root]; root != nil {
		s.paintNode(root, paintContext{pre: pre, opacity: 1, refs: true})
	}
	return s.commands
}

func (s *Scene) emitCmd(cmd DrawCommand) {
	s.commands = append(s.commands, cmd)
}

// subtreeBounds returns the screen-space bounding box of n, its children
// and its replica, without any pre-matrix. Results are cached until the
// tree or its transforms change.
func (s *Scene) subtreeBounds(n *layerNode) Rect {
	if r, ok := s.boundsCache[n.id]; ok {
		return r
	}
	r := n.transform.Combined().MapRect(n.bounds())
	for _, id := range n.children {
		if c := s.nodes[id]; c != nil {
			r = r.Union(s.subtreeBounds(c))
		}
	}
	if rep := s.nodes[n.state.Replica]; rep != nil {
		if pre, ok := replicaMatrix(n, rep); ok {
			r = r.Union(pre.MapRect(r))
		}
	}
	s.boundsCache[n.id] = r
	return r
}

// replicaMatrix maps the owner's screen space into the replica's.
func replicaMatrix(owner, replica *layerNode) (Matrix, bool) {
	inv, ok := owner.transform.Combined().Inverse()
	if !ok {
		return Matrix{}, false
	}
	return replica.transform.Combined().Multiply(inv), true
}

// backfaceHidden reports whether n is turned away and must not paint.
func backfaceHidden(n *layerNode) bool {
	if n.state.BackfaceVisible {
		return false
	}
	inv, ok := n.transform.Combined().Inverse()
	return ok && inv[10] < 0
}

// needsGroup reports whether n must paint through an offscreen.
func (n *layerNode) needsGroup() bool {
	return n.state.Mask != InvalidLayerID ||
		len(n.filters) > 0 ||
		n.state.MasksToBounds ||
		(n.opacity < 1 && len(n.children) > 0)
}

func (s *Scene) paintNode(n *layerNode, ctx paintContext) {
	if n.opacity <= 0 || (ctx.refs && s.culled(n)) {
		return
	}
	debugCheckTreeDepth(n.id, ctx.depth)
	ctx.depth++

	if ctx.refs {
		if rep := s.nodes[n.state.Replica]; rep != nil {
			if pre, ok := replicaMatrix(n, rep); ok {
				rctx := ctx
				rctx.pre = ctx.pre.Multiply(pre)
				rctx.opacity = ctx.opacity * rep.opacity
				rctx.refs = false
				s.paintLayer(n, rctx)
			}
		}
	}
	s.paintLayer(n, ctx)
}

// paintLayer paints n and its subtree, grouping it when needed.
func (s *Scene) paintLayer(n *layerNode, ctx paintContext) {
	mask := s.nodes[n.state.Mask]
	if !ctx.refs {
		mask = nil
	}
	if !n.needsGroup() || (mask == nil && len(n.filters) == 0 && !n.state.MasksToBounds && n.opacity >= 1) {
		ctx.opacity *= n.opacity
		s.paintContents(n, ctx)
		s.paintChildren(n, ctx)
		return
	}

	bounds := ctx.pre.MapRect(s.subtreeBounds(n)).Enclosing()
	pad := filterPadding(n.filters)
	bounds = bounds.Inset(-pad)
	var clip image.Rectangle
	if n.state.MasksToBounds {
		clip = ctx.pre.Multiply(n.transform.Combined()).MapRect(n.bounds()).Enclosing()
	}
	s.emitCmd(DrawCommand{Type: DrawBeginGroup, Layer: n.id, Bounds: bounds})
	inner := ctx
	inner.opacity = 1
	s.paintContents(n, inner)
	s.paintChildren(n, inner)
	if mask != nil {
		s.emitCmd(DrawCommand{Type: DrawBeginMask, Layer: mask.id, Bounds: bounds})
		mctx := inner
		mctx.refs = false
		s.paintContents(mask, mctx)
		s.paintChildren(mask, mctx)
		s.emitCmd(DrawCommand{Type: DrawEndMask, Layer: mask.id})
	}
	s.emitCmd(DrawCommand{
		Type:    DrawEndGroup,
		Layer:   n.id,
		Opacity: ctx.opacity * n.opacity,
		Filters: n.filters,
		Bounds:  bounds,
		Clip:    clip,
	})
}

// paintContents emits n's own content: solid color, image, then tiles.
func (s *Scene) paintContents(n *layerNode, ctx paintContext) {
	if !n.state.ContentsVisible || backfaceHidden(n) {
		return
	}
	m := ctx.pre.Multiply(n.transform.Combined())
	if n.state.SolidColor.A > 0 {
		s.emitCmd(DrawCommand{Type: DrawSolid, Layer: n.id, Matrix: m, Rect: n.contentsRect(), Color: n.state.SolidColor, Opacity: ctx.opacity})
	}
	if img := s.images[n.state.Image]; img != nil {
		s.emitCmd(DrawCommand{Type: DrawTexture, Layer: n.id, Image: img, Matrix: m, Rect: n.contentsRect(), Opacity: ctx.opacity})
	}
	if !n.state.DrawsContent {
		return
	}
	for _, t := range n.sortedTiles() {
		if t.texture == nil || t.rect.Empty() {
			continue
		}
		s.emitCmd(DrawCommand{Type: DrawTexture, Layer: n.id, Tile: t.id, Image: t.texture, Matrix: m, Rect: RectFromImage(t.rect), Opacity: ctx.opacity})
	}
}

// paintChildren paints n's children in order. A child whose screen bounds
// overlap an earlier translucent sibling is painted into one offscreen
// together with every sibling from the first overlapped one, so the
// translucent layers blend against each other only once.
func (s *Scene) paintChildren(n *layerNode, ctx paintContext) {
	kids := make([]*layerNode, 0, len(n.children))
	for _, id := range n.children {
		if c := s.nodes[id]; c != nil {
			kids = append(kids, c)
		}
	}
	if len(kids) == 0 {
		return
	}
	for _, span := range s.overlapSpans(kids, ctx) {
		if span.lo == span.hi {
			s.paintNode(kids[span.lo], ctx)
			continue
		}
		var b Rect
		for _, c := range kids[span.lo : span.hi+1] {
			b = b.Union(ctx.pre.MapRect(s.subtreeBounds(c)))
		}
		bounds := b.Enclosing()
		s.emitCmd(DrawCommand{Type: DrawBeginGroup, Layer: kids[span.lo].id, Bounds: bounds})
		inner := ctx
		inner.opacity = 1
		for _, c := range kids[span.lo : span.hi+1] {
			s.paintNode(c, inner)
		}
		s.emitCmd(DrawCommand{Type: DrawEndGroup, Layer: kids[span.lo].id, Opacity: ctx.opacity, Bounds: bounds})
	}
}

// childSpan is an inclusive range of sibling indices painted together.
type childSpan struct{ lo, hi int }

// overlapSpans partitions kids into singletons and overlap groups.
func (s *Scene) overlapSpans(kids []*layerNode, ctx paintContext) []childSpan {
	bounds := make([]Rect, len(kids))
	for i, c := range kids {
		bounds[i] = ctx.pre.MapRect(s.subtreeBounds(c))
	}
	var spans []childSpan
	for i := range kids {
		lo := i
		for j := 0; j < i; j++ {
			if kids[j].opacity < 1 && bounds[j].Overlaps(bounds[i]) {
				lo = j
				break
			}
		}
		// Merge with every trailing span the new range reaches into.
		for len(spans) > 0 && spans[len(spans)-1].hi >= lo {
			lo = min(lo, spans[len(spans)-1].lo)
			spans = spans[:len(spans)-1]
		}
		spans = append(spans, childSpan{lo, i})
	}
	return spans
}
