package strata

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestColorMatrixFilterPadding(t *testing.T) {
	f := NewColorMatrixFilter()
	if f.Padding() != 0 {
		t.Errorf("ColorMatrixFilter Padding() = %d, want 0", f.Padding())
	}
	if f.Matrix != identityColorMatrix {
		t.Errorf("new filter matrix = %v, want identity", f.Matrix)
	}
}

func TestBlurFilterPadding(t *testing.T) {
	f := NewBlurFilter(8)
	if f.Padding() != 8 {
		t.Errorf("BlurFilter Padding() = %d, want 8", f.Padding())
	}
}

func TestBlurFilterNegativeRadius(t *testing.T) {
	f := NewBlurFilter(-5)
	if f.Radius != 0 {
		t.Errorf("negative radius should clamp to 0, got %d", f.Radius)
	}
}

func TestBlurRadius(t *testing.T) {
	tests := []struct {
		amount float64
		want   int
	}{
		{-1, 0},
		{0, 0},
		{0.1, 1},
		{2, 2},
		{2.5, 3},
	}
	for _, tt := range tests {
		if got := blurRadius(tt.amount); got != tt.want {
			t.Errorf("blurRadius(%v) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestApplyFiltersEmptyChain(t *testing.T) {
	var pool offscreenPool
	src := ebiten.NewImage(8, 8)
	got, acquired := applyFilters(nil, src, &pool)
	if got != src || acquired != nil {
		t.Errorf("empty chain returned %p, %v; want src and no images", got, acquired)
	}
}

func TestApplyFiltersPingPong(t *testing.T) {
	var pool offscreenPool
	defer pool.Drain()
	src := ebiten.NewImage(8, 8)

	one := []filterPass{NewColorMatrixFilter()}
	got, acquired := applyFilters(one, src, &pool)
	if got == src || len(acquired) != 1 || got != acquired[0] {
		t.Errorf("one pass: result %p, acquired %d", got, len(acquired))
	}

	// Later passes write back and forth between one scratch image and the
	// previous result, so a chain never holds more than two pooled images.
	three := []filterPass{NewColorMatrixFilter(), NewBlurFilter(0), NewColorMatrixFilter()}
	got, acquired = applyFilters(three, src, &pool)
	if len(acquired) != 2 {
		t.Fatalf("three passes acquired %d images, want 2", len(acquired))
	}
	if got == src {
		t.Error("three passes returned the source image")
	}
	for _, img := range acquired {
		pool.Release(img)
	}
}
