package strata

import "math"

// FilterType names a filter primitive.
type FilterType uint8

const (
	FilterGrayscale  FilterType = iota // Amount 0..1
	FilterSepia                        // Amount 0..1
	FilterSaturate                     // Amount, 1 is unchanged
	FilterHueRotate                    // Amount in degrees
	FilterInvert                       // Amount 0..1
	FilterOpacity                      // Amount 0..1
	FilterBrightness                   // Amount, 1 is unchanged
	FilterContrast                     // Amount, 1 is unchanged
	FilterBlur                         // Amount is the radius in pixels
)

// FilterOperation is one filter primitive.
type FilterOperation struct {
	Type   FilterType `json:"type"`
	Amount float64    `json:"amount"`
}

// passthrough returns the amount at which the primitive has no effect.
func (op FilterOperation) passthrough() float64 {
	switch op.Type {
	case FilterSaturate, FilterOpacity, FilterBrightness, FilterContrast:
		return 1
	default:
		return 0
	}
}

// colorMatrix returns the primitive as a 4x5 row-major color matrix over
// unpremultiplied RGBA. ok is false for non-color primitives.
func (op FilterOperation) colorMatrix() (m [20]float64, ok bool) {
	a := op.Amount
	switch op.Type {
	case FilterGrayscale:
		g := 1 - math.Min(1, math.Max(0, a))
		return rgbMatrix(
			0.2126+0.7874*g, 0.7152-0.7152*g, 0.0722-0.0722*g,
			0.2126-0.2126*g, 0.7152+0.2848*g, 0.0722-0.0722*g,
			0.2126-0.2126*g, 0.7152-0.7152*g, 0.0722+0.9278*g,
		), true
	case FilterSepia:
		g := 1 - math.Min(1, math.Max(0, a))
		return rgbMatrix(
			0.393+0.607*g, 0.769-0.769*g, 0.189-0.189*g,
			0.349-0.349*g, 0.686+0.314*g, 0.168-0.168*g,
			0.272-0.272*g, 0.534-0.534*g, 0.131+0.869*g,
		), true
	case FilterSaturate:
		s := math.Max(0, a)
		return rgbMatrix(
			0.213+0.787*s, 0.715-0.715*s, 0.072-0.072*s,
			0.213-0.213*s, 0.715+0.285*s, 0.072-0.072*s,
			0.213-0.213*s, 0.715-0.715*s, 0.072+0.928*s,
		), true
	case FilterHueRotate:
		sin, cos := math.Sincos(a * math.Pi / 180)
		return rgbMatrix(
			0.213+cos*0.787-sin*0.213, 0.715-cos*0.715-sin*0.715, 0.072-cos*0.072+sin*0.928,
			0.213-cos*0.213+sin*0.143, 0.715+cos*0.285+sin*0.140, 0.072-cos*0.072-sin*0.283,
			0.213-cos*0.213-sin*0.787, 0.715-cos*0.715+sin*0.715, 0.072+cos*0.928+sin*0.072,
		), true
	case FilterInvert:
		v := math.Min(1, math.Max(0, a))
		d := 1 - 2*v
		return [20]float64{
			d, 0, 0, 0, v,
			0, d, 0, 0, v,
			0, 0, d, 0, v,
			0, 0, 0, 1, 0,
		}, true
	case FilterOpacity:
		v := math.Min(1, math.Max(0, a))
		return [20]float64{
			1, 0, 0, 0, 0,
			0, 1, 0, 0, 0,
			0, 0, 1, 0, 0,
			0, 0, 0, v, 0,
		}, true
	case FilterBrightness:
		b := math.Max(0, a)
		return [20]float64{
			b, 0, 0, 0, 0,
			0, b, 0, 0, 0,
			0, 0, b, 0, 0,
			0, 0, 0, 1, 0,
		}, true
	case FilterContrast:
		c := math.Max(0, a)
		o := (1 - c) / 2
		return [20]float64{
			c, 0, 0, 0, o,
			0, c, 0, 0, o,
			0, 0, c, 0, o,
			0, 0, 0, 1, 0,
		}, true
	}
	return m, false
}

func rgbMatrix(rr, rg, rb, gr, gg, gb, br, bg, bb float64) [20]float64 {
	return [20]float64{
		rr, rg, rb, 0, 0,
		gr, gg, gb, 0, 0,
		br, bg, bb, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// composeColorMatrix returns the matrix applying a and then b.
func composeColorMatrix(a, b [20]float64) [20]float64 {
	var out [20]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			var v float64
			for k := 0; k < 4; k++ {
				v += b[r*5+k] * a[k*5+c]
			}
			if c == 4 {
				v += b[r*5+4]
			}
			out[r*5+c] = v
		}
	}
	return out
}

// FilterOperations is an ordered filter chain.
type FilterOperations []FilterOperation

// Matches reports whether ops and other have the same primitive types in
// the same order. An empty list matches anything.
func (ops FilterOperations) Matches(other FilterOperations) bool {
	if len(ops) == 0 || len(other) == 0 {
		return true
	}
	if len(ops) != len(other) {
		return false
	}
	for i := range ops {
		if ops[i].Type != other[i].Type {
			return false
		}
	}
	return true
}

// Blend interpolates from `from` (t=0) to ops (t=1). Missing primitives
// blend against their passthrough amount. Mismatched chains switch at the
// midpoint.
func (ops FilterOperations) Blend(from FilterOperations, t float64) FilterOperations {
	if !ops.Matches(from) {
		if t < 0.5 {
			return from
		}
		return ops
	}
	n := max(len(ops), len(from))
	out := make(FilterOperations, n)
	for i := 0; i < n; i++ {
		var to, fr FilterOperation
		switch {
		case len(ops) == 0:
			fr = from[i]
			to = FilterOperation{Type: fr.Type, Amount: fr.passthrough()}
		case len(from) == 0:
			to = ops[i]
			fr = FilterOperation{Type: to.Type, Amount: to.passthrough()}
		default:
			to, fr = ops[i], from[i]
		}
		out[i] = FilterOperation{Type: to.Type, Amount: lerp(fr.Amount, to.Amount, t)}
	}
	return out
}
