package strata

import (
	"image"
	"math/bits"

	"github.com/hajimehoshi/ebiten/v2"
)

// offscreenIdleFrames is how many Draw calls a pooled offscreen may sit
// unused before EndFrame deallocates it.
const offscreenIdleFrames = 120

// offscreenKey is a power-of-two size class.
type offscreenKey struct{ w, h int }

type pooledOffscreen struct {
	img      *ebiten.Image
	released uint64
}

// offscreenPool hands out group, mask and filter offscreens during
// submission. Images are bucketed by power-of-two size so a layer that
// grows by a few pixels keeps hitting the same bucket. Buckets that go
// unused for offscreenIdleFrames are freed, so a scene that stops using
// opacity groups gives the memory back.
type offscreenPool struct {
	buckets map[offscreenKey][]pooledOffscreen
	frame   uint64
	live    int
}

// Acquire returns a cleared offscreen with at least (w, h) pixels.
func (p *offscreenPool) Acquire(w, h int) *ebiten.Image {
	key := offscreenKey{nextPowerOfTwo(w), nextPowerOfTwo(h)}
	p.live++
	if stack := p.buckets[key]; len(stack) > 0 {
		e := stack[len(stack)-1]
		p.buckets[key] = stack[:len(stack)-1]
		e.img.Clear()
		return e.img
	}
	return ebiten.NewImageWithOptions(image.Rect(0, 0, key.w, key.h),
		&ebiten.NewImageOptions{Unmanaged: true})
}

// Release returns img to its bucket. Clearing happens on the next Acquire.
func (p *offscreenPool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	size := img.Bounds().Size()
	key := offscreenKey{size.X, size.Y}
	if p.buckets == nil {
		p.buckets = make(map[offscreenKey][]pooledOffscreen)
	}
	p.buckets[key] = append(p.buckets[key], pooledOffscreen{img: img, released: p.frame})
	p.live--
}

// EndFrame advances the pool clock and frees offscreens idle for longer
// than offscreenIdleFrames. It returns how many were freed.
func (p *offscreenPool) EndFrame() int {
	p.frame++
	freed := 0
	for key, stack := range p.buckets {
		kept := stack[:0]
		for _, e := range stack {
			if p.frame-e.released > offscreenIdleFrames {
				e.img.Deallocate()
				freed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(p.buckets, key)
		} else {
			p.buckets[key] = kept
		}
	}
	return freed
}

// Pooled reports the number of idle offscreens held by the pool.
func (p *offscreenPool) Pooled() int {
	n := 0
	for _, stack := range p.buckets {
		n += len(stack)
	}
	return n
}

// Drain frees every idle offscreen. Acquired images are untouched.
func (p *offscreenPool) Drain() {
	for key, stack := range p.buckets {
		for _, e := range stack {
			e.img.Deallocate()
		}
		delete(p.buckets, key)
	}
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
