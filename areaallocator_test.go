package strata

import (
	"image"
	"math/rand"
	"testing"
)

func checkAllocatorTree(t *testing.T, n *allocNode) {
	t.Helper()
	if n.isLeaf() {
		if n.right != nil {
			t.Fatalf("leaf %v has a right child", n.rect)
		}
		return
	}
	if n.left.parent != n || n.right.parent != n {
		t.Fatalf("node %v: children do not point back at it", n.rect)
	}
	if n.left.rect.Union(n.right.rect) != n.rect || n.left.rect.Overlaps(n.right.rect) {
		t.Fatalf("node %v: children %v and %v do not split it", n.rect, n.left.rect, n.right.rect)
	}
	want := image.Pt(
		max(n.left.largestFree.X, n.right.largestFree.X),
		max(n.left.largestFree.Y, n.right.largestFree.Y),
	)
	if n.largestFree != want {
		t.Fatalf("node %v: largestFree = %v, want %v", n.rect, n.largestFree, want)
	}
	checkAllocatorTree(t, n.left)
	checkAllocatorTree(t, n.right)
}

func TestAreaAllocatorRoundsPoolToPowerOfTwo(t *testing.T) {
	a := NewAreaAllocator(image.Pt(1000, 300))
	if got := a.Size(); got != image.Pt(1024, 512) {
		t.Errorf("Size() = %v, want (1024,512)", got)
	}
}

func TestAreaAllocatorAllocateOnEmptyPool(t *testing.T) {
	tests := []struct {
		name string
		pool image.Point
		req  image.Point
	}{
		{"unit", image.Pt(1024, 1024), image.Pt(1, 1)},
		{"odd", image.Pt(1024, 1024), image.Pt(37, 213)},
		{"whole", image.Pt(1024, 1024), image.Pt(1024, 1024)},
		{"wide", image.Pt(1024, 256), image.Pt(700, 10)},
		{"tall", image.Pt(64, 1024), image.Pt(64, 513)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAreaAllocator(tt.pool)
			r, ok := a.Allocate(tt.req)
			if !ok {
				t.Fatalf("Allocate(%v) failed on an empty %v pool", tt.req, tt.pool)
			}
			if r.Dx() < tt.req.X || r.Dy() < tt.req.Y {
				t.Errorf("Allocate(%v) = %v, smaller than requested", tt.req, r)
			}
			if !r.In(image.Rectangle{Max: a.Size()}) {
				t.Errorf("Allocate(%v) = %v, outside the pool", tt.req, r)
			}
			checkAllocatorTree(t, a.root)
		})
	}
}

func TestAreaAllocatorNoSpace(t *testing.T) {
	a := NewAreaAllocator(image.Pt(256, 256))
	for _, size := range []image.Point{{0, 10}, {10, 0}, {-1, 4}, {257, 1}, {1, 300}} {
		if r, ok := a.Allocate(size); ok {
			t.Errorf("Allocate(%v) = %v, want NoSpace", size, r)
		}
	}
	if !a.IsEmpty() {
		t.Error("failed allocations mutated the tree")
	}

	if _, ok := a.Allocate(image.Pt(256, 256)); !ok {
		t.Fatal("whole-pool allocation failed")
	}
	if r, ok := a.Allocate(image.Pt(1, 1)); ok {
		t.Errorf("Allocate on a full pool = %v, want NoSpace", r)
	}
}

func TestAreaAllocatorFailureLeavesTreeUntouched(t *testing.T) {
	a := NewAreaAllocator(image.Pt(128, 128))
	a.Allocate(image.Pt(64, 16))
	a.Allocate(image.Pt(16, 64))
	before := a.LargestFree()
	area := a.AllocatedArea()
	if _, ok := a.Allocate(image.Pt(128, 128)); ok {
		t.Fatal("oversized allocation succeeded")
	}
	if a.LargestFree() != before || a.AllocatedArea() != area {
		t.Error("failed allocation changed the allocator state")
	}
	checkAllocatorTree(t, a.root)
}

func TestAreaAllocatorChurn(t *testing.T) {
	sizes := []image.Point{{1, 1}, {31, 9}, {100, 200}, {512, 512}, {1024, 1}}
	for _, s := range sizes {
		a := NewAreaAllocator(image.Pt(1024, 1024))
		for i := 0; i < 50; i++ {
			r, ok := a.Allocate(s)
			if !ok {
				t.Fatalf("size %v: allocation %d failed", s, i)
			}
			a.Release(r)
			if !a.IsEmpty() {
				t.Fatalf("size %v: pool not empty after release %d", s, i)
			}
		}
	}
}

func TestAreaAllocatorReleaseMergesLeaves(t *testing.T) {
	a := NewAreaAllocator(image.Pt(256, 256))
	var rects []image.Rectangle
	for i := 0; i < 16; i++ {
		r, ok := a.Allocate(image.Pt(64, 64))
		if !ok {
			t.Fatalf("allocation %d failed", i)
		}
		rects = append(rects, r)
	}
	if _, ok := a.Allocate(image.Pt(1, 1)); ok {
		t.Fatal("pool should be full after 16 64x64 allocations")
	}
	for i := len(rects) - 1; i >= 0; i-- {
		a.Release(rects[i])
		checkAllocatorTree(t, a.root)
	}
	if !a.IsEmpty() {
		t.Fatalf("pool not merged back into one free leaf")
	}
	if a.AllocatedArea() != 0 {
		t.Errorf("AllocatedArea() = %d, want 0", a.AllocatedArea())
	}
}

func TestAreaAllocatorReleaseUnknownIsNoop(t *testing.T) {
	a := NewAreaAllocator(image.Pt(128, 128))
	r, _ := a.Allocate(image.Pt(32, 32))
	a.Release(image.Rect(5000, 5000, 5010, 5010))
	a.Release(image.Rect(64, 64, 96, 96))
	if a.AllocatedArea() != 32*32 {
		t.Errorf("AllocatedArea() = %d after bogus releases", a.AllocatedArea())
	}
	a.Release(r)
	if !a.IsEmpty() {
		t.Error("pool not empty")
	}
}

func TestAreaAllocatorMinimumAllocationAndMargin(t *testing.T) {
	a := NewAreaAllocator(image.Pt(1024, 1024))
	a.SetMinimumAllocation(image.Pt(32, 32))
	r, ok := a.Allocate(image.Pt(3, 3))
	if !ok {
		t.Fatal("allocation failed")
	}
	if a.AllocatedArea() != 32*32 {
		t.Errorf("AllocatedArea() = %d, want %d", a.AllocatedArea(), 32*32)
	}
	if r.Size() != image.Pt(3, 3) {
		t.Errorf("rect size = %v, want requested (3,3)", r.Size())
	}

	b := NewAreaAllocator(image.Pt(256, 256))
	b.SetMargin(image.Pt(1, 1))
	b.Allocate(image.Pt(64, 64))
	if b.AllocatedArea() != 128*128 {
		t.Errorf("margin: AllocatedArea() = %d, want %d", b.AllocatedArea(), 128*128)
	}
}

func TestAreaAllocatorRandomInterleaving(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewSource(seed))
		a := NewAreaAllocator(image.Pt(1024, 1024))
		a.SetMinimumAllocation(image.Pt(8, 8))
		var live []image.Rectangle
		bounds := image.Rectangle{Max: a.Size()}
		for step := 0; step < 2000; step++ {
			if len(live) > 0 && rng.Intn(3) == 0 {
				i := rng.Intn(len(live))
				a.Release(live[i])
				live = append(live[:i], live[i+1:]...)
			} else {
				size := image.Pt(1+rng.Intn(200), 1+rng.Intn(200))
				if r, ok := a.Allocate(size); ok {
					if !r.In(bounds) {
						t.Fatalf("seed %d step %d: %v outside %v", seed, step, r, bounds)
					}
					live = append(live, r)
				}
			}
			for i := range live {
				for j := i + 1; j < len(live); j++ {
					if live[i].Overlaps(live[j]) {
						t.Fatalf("seed %d step %d: %v overlaps %v", seed, step, live[i], live[j])
					}
				}
			}
		}
		checkAllocatorTree(t, a.root)
		for _, r := range live {
			a.Release(r)
		}
		if !a.IsEmpty() {
			t.Errorf("seed %d: pool not empty after releasing everything", seed)
		}
	}
}

func TestAreaAllocatorExpand(t *testing.T) {
	a := NewAreaAllocator(image.Pt(128, 128))
	first, ok := a.Allocate(image.Pt(128, 128))
	if !ok {
		t.Fatal("initial allocation failed")
	}
	a.Expand(image.Pt(512, 256))
	if a.Size() != image.Pt(512, 256) {
		t.Fatalf("Size() = %v, want (512,256)", a.Size())
	}
	checkAllocatorTree(t, a.root)

	var got []image.Rectangle
	for {
		r, ok := a.Allocate(image.Pt(128, 128))
		if !ok {
			break
		}
		if r.Overlaps(first) {
			t.Fatalf("%v overlaps the pre-expansion allocation %v", r, first)
		}
		got = append(got, r)
	}
	if len(got) != 7 {
		t.Errorf("allocated %d more 128x128 blocks after expansion, want 7", len(got))
	}

	a.Release(first)
	for _, r := range got {
		a.Release(r)
	}
	if !a.IsEmpty() {
		t.Error("expanded pool did not merge back")
	}
}

func TestAreaAllocatorExpandEmptyResizesRoot(t *testing.T) {
	a := NewAreaAllocator(image.Pt(64, 64))
	a.Expand(image.Pt(100, 64))
	if a.Size() != image.Pt(128, 64) || !a.root.isLeaf() {
		t.Errorf("Size() = %v, leaf = %v", a.Size(), a.root.isLeaf())
	}
	a.Expand(image.Pt(10, 10))
	if a.Size() != image.Pt(128, 64) {
		t.Errorf("Expand never shrinks; Size() = %v", a.Size())
	}
}
