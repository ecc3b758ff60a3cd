package strata

// DefaultAnchorPoint places a layer's transform origin at its center.
var DefaultAnchorPoint = Vec3{0.5, 0.5, 0}

// LayerTransform composes a layer's geometry with its parent's transform.
//
// The combined matrix is
//
//	parent · T(origin+position, anchor.z) · local · T(-origin, -anchor.z)
//
// where origin = anchor.xy * size, and children are placed with
//
//	flatten?(parent · T(origin+position, anchor.z) · local) · childrenTransform · T(-origin, -anchor.z)
//
// Setters mark the transform dirty; Combine must run top-down before
// CombinedForChildren is trusted.
type LayerTransform struct {
	position          Vec2
	anchor            Vec3
	size              Vec2
	local             Matrix
	childrenTransform Matrix
	flattening        bool

	combined            Matrix
	combinedForChildren Matrix
	selfDirty           bool
	childrenDirty       bool
}

// NewLayerTransform returns a transform with identity matrices and the
// default anchor point.
func NewLayerTransform() LayerTransform {
	return LayerTransform{
		anchor:              DefaultAnchorPoint,
		local:               Identity(),
		childrenTransform:   Identity(),
		combined:            Identity(),
		combinedForChildren: Identity(),
		selfDirty:           true,
		childrenDirty:       true,
	}
}

func (t *LayerTransform) markDirty() {
	t.selfDirty = true
	t.childrenDirty = true
}

// SetPosition sets the layer position in parent coordinates.
func (t *LayerTransform) SetPosition(p Vec2) {
	if t.position == p {
		return
	}
	t.position = p
	t.markDirty()
}

// SetSize sets the layer size.
func (t *LayerTransform) SetSize(s Vec2) {
	if t.size == s {
		return
	}
	t.size = s
	t.markDirty()
}

// SetAnchorPoint sets the transform origin (fractional x/y, absolute z).
func (t *LayerTransform) SetAnchorPoint(a Vec3) {
	if t.anchor == a {
		return
	}
	t.anchor = a
	t.markDirty()
}

// SetLocalTransform sets the layer's own transform.
func (t *LayerTransform) SetLocalTransform(m Matrix) {
	if t.local == m {
		return
	}
	t.local = m
	t.markDirty()
}

// SetChildrenTransform sets the transform applied to children only.
func (t *LayerTransform) SetChildrenTransform(m Matrix) {
	if t.childrenTransform == m {
		return
	}
	t.childrenTransform = m
	t.markDirty()
}

// SetFlattening makes children render in this layer's plane.
func (t *LayerTransform) SetFlattening(flatten bool) {
	if t.flattening == flatten {
		return
	}
	t.flattening = flatten
	t.markDirty()
}

// Dirty reports whether a setter ran since the last Combine.
func (t *LayerTransform) Dirty() bool { return t.selfDirty }

func (t *LayerTransform) origin() Vec2 {
	return Vec2{t.anchor.X * t.size.X, t.anchor.Y * t.size.Y}
}

// Combine recomputes the combined transform against the parent's
// children-space matrix.
func (t *LayerTransform) Combine(parent Matrix) {
	o := t.origin()
	pre := parent.Translate(o.X+t.position.X, o.Y+t.position.Y, t.anchor.Z).Multiply(t.local)
	t.combined = pre.Translate(-o.X, -o.Y, -t.anchor.Z)
	t.combinedForChildren = pre
	t.selfDirty = false
	t.childrenDirty = true
}

// Combined returns the layer's screen transform as of the last Combine.
func (t *LayerTransform) Combined() Matrix { return t.combined }

// CombinedForChildren returns the matrix children combine against.
func (t *LayerTransform) CombinedForChildren() Matrix {
	if t.selfDirty && globalDebug {
		panic("strata: CombinedForChildren read before Combine")
	}
	if !t.childrenDirty {
		return t.combinedForChildren
	}
	o := t.origin()
	m := t.combinedForChildren
	if t.flattening {
		m = m.To2D()
	}
	t.combinedForChildren = m.Multiply(t.childrenTransform).Translate(-o.X, -o.Y, -t.anchor.Z)
	t.childrenDirty = false
	return t.combinedForChildren
}
