package strata

import "image"

// splitAxis records how an allocator node divides its rectangle.
type splitAxis uint8

const (
	splitNone splitAxis = iota
	splitOnX            // left half / right half
	splitOnY            // top half / bottom half
)

// allocNode is one node of the allocator's binary tree. A node is either a
// leaf (free or allocated) or owns exactly two children that split its rect
// in half. The parent link is a non-owning back reference used for upward
// propagation.
type allocNode struct {
	rect        image.Rectangle
	largestFree image.Point
	parent      *allocNode
	left, right *allocNode
	split       splitAxis
}

func (n *allocNode) isLeaf() bool { return n.left == nil }

// fitsWithin reports whether size fits inside avail on both axes.
func fitsWithin(size, avail image.Point) bool {
	return size.X <= avail.X && size.Y <= avail.Y
}

// AreaAllocator packs rectangles into a power-of-two region using a binary
// tree of halving splits. Requests are rounded up to a power of two per axis,
// so same-size churn never fragments the pool permanently.
//
// NoSpace is a normal outcome: Allocate reports it with ok == false and the
// tree is left untouched.
type AreaAllocator struct {
	size      image.Point
	minAlloc  image.Point
	margin    image.Point
	root      *allocNode
	allocated int
}

// NewAreaAllocator creates an allocator managing a region of at least size,
// rounded up to the next power of two per axis.
func NewAreaAllocator(size image.Point) *AreaAllocator {
	size = image.Pt(nextPowerOfTwo(size.X), nextPowerOfTwo(size.Y))
	return &AreaAllocator{
		size:     size,
		minAlloc: image.Pt(1, 1),
		root:     &allocNode{rect: image.Rectangle{Max: size}, largestFree: size},
	}
}

// Size returns the managed region's size.
func (a *AreaAllocator) Size() image.Point { return a.size }

// SetMinimumAllocation sets the allocation granularity. Requests are rounded
// up to a multiple of it before power-of-two rounding.
func (a *AreaAllocator) SetMinimumAllocation(p image.Point) {
	a.minAlloc = image.Pt(max(p.X, 1), max(p.Y, 1))
}

// SetMargin sets extra space reserved to the right and below each allocation.
func (a *AreaAllocator) SetMargin(p image.Point) {
	a.margin = image.Pt(max(p.X, 0), max(p.Y, 0))
}

// AllocatedArea returns the total area of allocated leaves, in pixels.
func (a *AreaAllocator) AllocatedArea() int { return a.allocated }

// LargestFree returns the largest free extent on each axis. The two
// components may come from different leaves.
func (a *AreaAllocator) LargestFree() image.Point { return a.root.largestFree }

// IsEmpty reports whether nothing is allocated.
func (a *AreaAllocator) IsEmpty() bool {
	return a.root.isLeaf() && a.root.largestFree == a.root.rect.Size()
}

func (a *AreaAllocator) roundAllocation(size image.Point) image.Point {
	w := size.X + a.margin.X
	h := size.Y + a.margin.Y
	w = (w + a.minAlloc.X - 1) / a.minAlloc.X * a.minAlloc.X
	h = (h + a.minAlloc.Y - 1) / a.minAlloc.Y * a.minAlloc.Y
	return image.Pt(nextPowerOfTwo(w), nextPowerOfTwo(h))
}

// Allocate reserves a rectangle of at least size. The returned rectangle
// starts at the reserved leaf's origin and has exactly the requested size.
func (a *AreaAllocator) Allocate(size image.Point) (image.Rectangle, bool) {
	if size.X <= 0 || size.Y <= 0 {
		return image.Rectangle{}, false
	}
	rounded := a.roundAllocation(size)
	if !fitsWithin(rounded, a.size) || !fitsWithin(rounded, a.root.largestFree) {
		return image.Rectangle{}, false
	}
	leaf := a.allocateFromNode(a.root, rounded)
	if leaf == nil {
		return image.Rectangle{}, false
	}
	a.allocated += leaf.rect.Dx() * leaf.rect.Dy()
	return image.Rectangle{Min: leaf.rect.Min, Max: leaf.rect.Min.Add(size)}, true
}

// allocateFromNode descends from n looking for a leaf that fits size. Leaves
// are only split once they are known to fit, so a nil result never leaves
// partial splits behind.
func (a *AreaAllocator) allocateFromNode(n *allocNode, size image.Point) *allocNode {
	for n != nil {
		if !n.isLeaf() {
			leftFits := fitsWithin(size, n.left.largestFree)
			rightFits := fitsWithin(size, n.right.largestFree)
			switch {
			case leftFits && rightFits:
				first, second := n.right, n.left
				if n.left.largestFree.X < n.right.largestFree.X || n.left.largestFree.Y < n.right.largestFree.Y {
					first, second = n.left, n.right
				}
				if leaf := a.allocateFromNode(first, size); leaf != nil {
					return leaf
				}
				return a.allocateFromNode(second, size)
			case leftFits:
				n = n.left
			case rightFits:
				n = n.right
			default:
				return nil
			}
			continue
		}

		if !fitsWithin(size, n.largestFree) {
			return nil
		}
		switch {
		case fitsWithin(image.Pt(size.X*2, size.Y*2), n.largestFree):
			axis := splitOnX
			if n.parent != nil {
				if n.parent.split == splitOnX {
					axis = splitOnY
				}
			} else if n.rect.Dy() > n.rect.Dx() {
				axis = splitOnY
			}
			n = splitNode(n, axis)
		case fitsWithin(image.Pt(size.X*2, size.Y), n.largestFree):
			n = splitNode(n, splitOnX)
		case fitsWithin(image.Pt(size.X, size.Y*2), n.largestFree):
			n = splitNode(n, splitOnY)
		default:
			n.largestFree = image.Point{}
			updateLargestFree(n)
			return n
		}
	}
	return nil
}

// splitNode halves a free leaf along axis and returns the left child.
func splitNode(n *allocNode, axis splitAxis) *allocNode {
	left := &allocNode{parent: n}
	right := &allocNode{parent: n}
	r := n.rect
	if axis == splitOnX {
		mid := r.Min.X + r.Dx()/2
		left.rect = image.Rect(r.Min.X, r.Min.Y, mid, r.Max.Y)
		right.rect = image.Rect(mid, r.Min.Y, r.Max.X, r.Max.Y)
	} else {
		mid := r.Min.Y + r.Dy()/2
		left.rect = image.Rect(r.Min.X, r.Min.Y, r.Max.X, mid)
		right.rect = image.Rect(r.Min.X, mid, r.Max.X, r.Max.Y)
	}
	left.largestFree = left.rect.Size()
	right.largestFree = right.rect.Size()
	n.largestFree = right.largestFree
	n.left, n.right, n.split = left, right, axis
	return left
}

// updateLargestFree recomputes largestFree for every ancestor of n.
func updateLargestFree(n *allocNode) {
	for p := n.parent; p != nil; p = p.parent {
		p.largestFree = image.Pt(
			max(p.left.largestFree.X, p.right.largestFree.X),
			max(p.left.largestFree.Y, p.right.largestFree.Y),
		)
	}
}

// Release frees the allocation whose origin is r.Min and merges sibling
// leaves back together while both halves are entirely free.
func (a *AreaAllocator) Release(r image.Rectangle) {
	p := r.Min
	n := a.root
	if !p.In(n.rect) {
		return
	}
	for !n.isLeaf() {
		if p.In(n.left.rect) {
			n = n.left
		} else {
			n = n.right
		}
	}
	if n.largestFree == n.rect.Size() {
		return
	}
	a.allocated -= n.rect.Dx() * n.rect.Dy()
	n.largestFree = n.rect.Size()
	for n.parent != nil {
		parent := n.parent
		if !isFreeLeaf(parent.left) || !isFreeLeaf(parent.right) {
			break
		}
		parent.left, parent.right = nil, nil
		parent.split = splitNone
		parent.largestFree = parent.rect.Size()
		n = parent
	}
	updateLargestFree(n)
}

func isFreeLeaf(n *allocNode) bool {
	return n.isLeaf() && n.largestFree == n.rect.Size()
}

// Expand grows the managed region to at least size by adding parent levels
// above the current root. Existing allocations never move.
func (a *AreaAllocator) Expand(size image.Point) {
	target := image.Pt(
		nextPowerOfTwo(max(size.X, a.size.X)),
		nextPowerOfTwo(max(size.Y, a.size.Y)),
	)
	if target == a.size {
		return
	}
	if a.IsEmpty() {
		a.root.rect = image.Rectangle{Max: target}
		a.root.largestFree = target
		a.size = target
		return
	}

	axis := splitOnY
	if target.X >= target.Y {
		axis = splitOnX
	}
	for a.root.rect.Dx() < target.X || a.root.rect.Dy() < target.Y {
		switch {
		case a.root.rect.Dx() >= target.X:
			axis = splitOnY
		case a.root.rect.Dy() >= target.Y:
			axis = splitOnX
		}
		a.growRoot(axis)
		if axis == splitOnX {
			axis = splitOnY
		} else {
			axis = splitOnX
		}
	}
	a.size = target
}

// growRoot doubles the root along axis, placing the old root on the left and
// a fresh free leaf on the right.
func (a *AreaAllocator) growRoot(axis splitAxis) {
	old := a.root
	r := old.rect
	root := &allocNode{split: axis}
	right := &allocNode{parent: root}
	if axis == splitOnX {
		root.rect = image.Rect(r.Min.X, r.Min.Y, r.Max.X+r.Dx(), r.Max.Y)
		right.rect = image.Rect(r.Max.X, r.Min.Y, r.Max.X+r.Dx(), r.Max.Y)
	} else {
		root.rect = image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y+r.Dy())
		right.rect = image.Rect(r.Min.X, r.Max.Y, r.Max.X, r.Max.Y+r.Dy())
	}
	right.largestFree = right.rect.Size()
	old.parent = root
	root.left, root.right = old, right
	root.largestFree = image.Pt(
		max(old.largestFree.X, right.largestFree.X),
		max(old.largestFree.Y, right.largestFree.Y),
	)
	a.root = root
}
