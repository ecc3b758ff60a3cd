package strata

import "testing"

func TestOffscreenPoolSizeClass(t *testing.T) {
	var p offscreenPool
	img := p.Acquire(300, 17)
	if got := img.Bounds().Size(); got.X != 512 || got.Y != 32 {
		t.Errorf("size = %v, want 512x32", got)
	}
	p.Release(img)

	// A slightly different request in the same class reuses the image.
	if again := p.Acquire(290, 20); again != img {
		t.Error("same size class did not reuse the pooled offscreen")
	}
}

func TestOffscreenPoolLiveCount(t *testing.T) {
	var p offscreenPool
	a := p.Acquire(8, 8)
	b := p.Acquire(8, 8)
	if a == b {
		t.Fatal("two live acquisitions returned the same image")
	}
	if p.live != 2 {
		t.Errorf("live = %d, want 2", p.live)
	}
	p.Release(a)
	p.Release(b)
	p.Release(nil)
	if p.live != 0 || p.Pooled() != 2 {
		t.Errorf("live = %d pooled = %d, want 0 and 2", p.live, p.Pooled())
	}
}

func TestOffscreenPoolEndFrameFreesIdle(t *testing.T) {
	var p offscreenPool
	p.Release(p.Acquire(16, 16))

	for i := 0; i < offscreenIdleFrames; i++ {
		if freed := p.EndFrame(); freed != 0 {
			t.Fatalf("frame %d freed %d offscreens before the idle limit", i, freed)
		}
	}
	if freed := p.EndFrame(); freed != 1 {
		t.Errorf("freed = %d past the idle limit, want 1", freed)
	}
	if p.Pooled() != 0 {
		t.Errorf("pooled = %d, want 0", p.Pooled())
	}
}

func TestOffscreenPoolReuseResetsIdleClock(t *testing.T) {
	var p offscreenPool
	p.Release(p.Acquire(16, 16))
	for i := 0; i < offscreenIdleFrames; i++ {
		p.EndFrame()
	}
	p.Release(p.Acquire(16, 16))
	if freed := p.EndFrame(); freed != 0 {
		t.Errorf("freed = %d right after reuse, want 0", freed)
	}
}

func TestOffscreenPoolDrain(t *testing.T) {
	var p offscreenPool
	img := p.Acquire(16, 16)
	p.Release(img)
	p.Drain()
	if p.Pooled() != 0 {
		t.Errorf("pooled = %d after Drain, want 0", p.Pooled())
	}
	if again := p.Acquire(16, 16); again == img {
		t.Error("Acquire after Drain returned a deallocated image")
	}
}
