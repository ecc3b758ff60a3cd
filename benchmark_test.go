package strata

import (
	"image"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// setupBenchPair builds a grid of n solid layers under one root and syncs
// it to a Scene.
func setupBenchPair(b *testing.B, n int) (*Coordinator, *Scene, []*Layer) {
	b.Helper()
	surfaces := NewSurfaces()
	c := NewCoordinator(DefaultConfig(), surfaces)
	c.SetClock(func() float64 { return 0 })
	s := NewScene(surfaces)
	b.Cleanup(s.Close)

	root := c.NewLayer()
	root.SetSize(Vec2{1280, 720})
	layers := make([]*Layer, n)
	for i := range layers {
		l := c.NewLayer()
		l.SetPosition(Vec2{float64(i%100) * 12, float64(i/100) * 12})
		l.SetSize(Vec2{10, 10})
		l.SetSolidColor(Color{R: 1, G: 0.5, A: 1})
		root.AddChild(l)
		layers[i] = l
	}
	c.SetRootLayer(root)
	fs, _ := c.Flush()
	if err := s.Apply(fs); err != nil {
		b.Fatal(err)
	}
	c.RenderNextFrame()
	s.ComputeTransforms()
	return c, s, layers
}

func BenchmarkAreaAllocatorChurn(b *testing.B) {
	a := NewAreaAllocator(image.Pt(2048, 2048))
	a.SetMinimumAllocation(image.Pt(32, 32))
	rects := make([]image.Rectangle, 0, 64)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if r, ok := a.Allocate(image.Pt(32+i%200, 32+i%150)); ok {
			rects = append(rects, r)
		}
		if len(rects) == cap(rects) {
			for _, r := range rects {
				a.Release(r)
			}
			rects = rects[:0]
		}
	}
}

func BenchmarkFlushApply_1000Layers_Moving(b *testing.B) {
	c, s, layers := setupBenchPair(b, 1000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j, l := range layers {
			l.SetPosition(Vec2{float64(j%100)*12 + float64(i%5), float64(j/100) * 12})
		}
		fs, _ := c.Flush()
		if err := s.Apply(fs); err != nil {
			b.Fatal(err)
		}
		c.RenderNextFrame()
		s.ComputeTransforms()
	}
}

func BenchmarkCommands_1000Layers(b *testing.B) {
	_, s, _ := setupBenchPair(b, 1000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Commands()
	}
}

func BenchmarkDraw_1000Layers_Static(b *testing.B) {
	_, s, _ := setupBenchPair(b, 1000)
	screen := ebiten.NewImage(1280, 720)
	s.Draw(screen)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Draw(screen)
	}
}
