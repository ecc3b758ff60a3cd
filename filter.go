package strata

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// filterPass is one step of a compiled filter chain.
type filterPass interface {
	// Apply renders src into dst with the effect.
	Apply(src, dst *ebiten.Image)
	// Padding returns the extra pixels the effect spreads beyond its source.
	Padding() int
}

// Ebitengine uses premultiplied alpha; the shader un-premultiplies before
// applying the matrix and re-premultiplies its output.
const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// Compiled lazily on first use; the Scene is driven from one goroutine.
var colorMatrixShader *ebiten.Shader

func ensureColorMatrixShader() *ebiten.Shader {
	if colorMatrixShader == nil {
		s, err := ebiten.NewShader([]byte(colorMatrixShaderSrc))
		if err != nil {
			panic("strata: failed to compile color matrix shader: " + err.Error())
		}
		colorMatrixShader = s
	}
	return colorMatrixShader
}

// ColorMatrixFilter applies a 4x5 color matrix with a Kage shader. The
// matrix is row-major: [R_r, R_g, R_b, R_a, R_offset, G_r, ...].
type ColorMatrixFilter struct {
	Matrix      [20]float64
	uniforms    map[string]any
	matrixF32   [20]float32
	matrixSlice []float32 // points into matrixF32
	shaderOp    ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter set to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{
		uniforms: make(map[string]any, 1),
	}
	f.matrixSlice = f.matrixF32[:]
	f.uniforms["Matrix"] = f.matrixSlice
	f.Matrix = identityColorMatrix
	return f
}

var identityColorMatrix = [20]float64{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// Apply renders the color matrix transformation from src into dst.
func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureColorMatrixShader()
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns 0; color transforms keep the source bounds.
func (f *ColorMatrixFilter) Padding() int { return 0 }

// BlurFilter applies a Kawase blur using downscale and upscale passes.
// Bilinear filtering during DrawImage does the work.
type BlurFilter struct {
	Radius int
	temps  []*ebiten.Image
	imgOp  ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur filter with the given radius in pixels.
func NewBlurFilter(radius int) *BlurFilter {
	return &BlurFilter{Radius: max(radius, 0)}
}

// Apply renders a blurred copy of src into dst.
func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	op := &f.imgOp
	if f.Radius <= 0 {
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Filter = ebiten.FilterNearest
		dst.DrawImage(src, op)
		return
	}

	passes := max(int(math.Ceil(math.Log2(float64(f.Radius)))), 1)
	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()

	for len(f.temps) < passes {
		f.temps = append(f.temps, nil)
	}
	for i := passes; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:passes]

	current := src
	for i := 0; i < passes; i++ {
		w = max(w/2, 1)
		h = max(h/2, 1)
		if f.temps[i] == nil || f.temps[i].Bounds().Dx() != w || f.temps[i].Bounds().Dy() != h {
			if f.temps[i] != nil {
				f.temps[i].Deallocate()
			}
			f.temps[i] = ebiten.NewImage(w, h)
		} else {
			f.temps[i].Clear()
		}
		f.scaleInto(f.temps[i], current)
		current = f.temps[i]
	}
	for i := passes - 2; i >= 0; i-- {
		f.temps[i].Clear()
		f.scaleInto(f.temps[i], current)
		current = f.temps[i]
	}
	f.scaleInto(dst, current)
}

func (f *BlurFilter) scaleInto(dst, src *ebiten.Image) {
	op := &f.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Scale(
		float64(dst.Bounds().Dx())/float64(src.Bounds().Dx()),
		float64(dst.Bounds().Dy())/float64(src.Bounds().Dy()),
	)
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(src, op)
}

// Padding returns the blur radius.
func (f *BlurFilter) Padding() int { return f.Radius }

func (f *BlurFilter) dispose() {
	for _, t := range f.temps {
		if t != nil {
			t.Deallocate()
		}
	}
	f.temps = nil
}

// blurRadius rounds a blur amount up to whole pixels.
func blurRadius(amount float64) int {
	return int(math.Ceil(math.Max(0, amount)))
}

// filterPadding returns the cumulative padding a filter chain needs.
func filterPadding(ops FilterOperations) int {
	pad := 0
	for _, op := range ops {
		if op.Type == FilterBlur {
			pad += blurRadius(op.Amount)
		}
	}
	return pad
}

// filterCache holds the passes a Scene reuses from frame to frame. Chains
// are applied immediately after they are built, so each build may reuse
// every pass of the previous one.
type filterCache struct {
	matrices []*ColorMatrixFilter
	blurs    []*BlurFilter
	chain    []filterPass
}

// build compiles ops into passes. Consecutive color primitives collapse
// into a single matrix pass.
func (c *filterCache) build(ops FilterOperations) []filterPass {
	c.chain = c.chain[:0]
	nm, nb := 0, 0
	var cur *ColorMatrixFilter
	for _, op := range ops {
		if m, ok := op.colorMatrix(); ok {
			if cur == nil {
				if nm == len(c.matrices) {
					c.matrices = append(c.matrices, NewColorMatrixFilter())
				}
				cur = c.matrices[nm]
				nm++
				cur.Matrix = m
				c.chain = append(c.chain, cur)
				continue
			}
			cur.Matrix = composeColorMatrix(cur.Matrix, m)
			continue
		}
		cur = nil
		if op.Type != FilterBlur {
			continue
		}
		if nb == len(c.blurs) {
			c.blurs = append(c.blurs, NewBlurFilter(0))
		}
		b := c.blurs[nb]
		nb++
		b.Radius = blurRadius(op.Amount)
		c.chain = append(c.chain, b)
	}
	return c.chain
}

func (c *filterCache) dispose() {
	for _, b := range c.blurs {
		b.dispose()
	}
	c.blurs = nil
	c.matrices = nil
	c.chain = nil
}

// applyFilters runs a chain on src, ping-ponging between pooled images.
// It returns the image holding the result and the pooled images the caller
// must release once that result has been drawn.
func applyFilters(chain []filterPass, src *ebiten.Image, pool *offscreenPool) (*ebiten.Image, []*ebiten.Image) {
	if len(chain) == 0 {
		return src, nil
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var acquired []*ebiten.Image
	current := src
	var scratch *ebiten.Image
	for _, f := range chain {
		if scratch == nil {
			scratch = pool.Acquire(w, h)
			acquired = append(acquired, scratch)
		} else {
			scratch.Clear()
		}
		f.Apply(current, scratch)
		current, scratch = scratch, current
		if scratch == src {
			scratch = nil
		}
	}
	return current, acquired
}
