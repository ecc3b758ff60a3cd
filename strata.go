package strata

import (
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// LayerID identifies a layer on both sides of the sync boundary. Ids are
// assigned by the Coordinator, increase monotonically and are never reused.
// Zero means "no layer".
type LayerID uint32

// InvalidLayerID is the reserved "none" id.
const InvalidLayerID LayerID = 0

// TileID identifies a tile within one layer's backing store.
type TileID uint32

// AtlasID identifies an update atlas. Atlas ids are global to a Coordinator.
type AtlasID uint32

// ImageID identifies a shared image backing.
type ImageID uint32

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at submission time.
type Color struct {
	R, G, B, A float64
}

// ColorTransparent is the zero color.
var ColorTransparent = Color{}

// ColorWhite is the default tint.
var ColorWhite = Color{1, 1, 1, 1}

func (c Color) toRGBA() color.RGBA {
	clamp := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return color.RGBA{
		R: clamp(c.R * c.A),
		G: clamp(c.G * c.A),
		B: clamp(c.B * c.A),
		A: clamp(c.A),
	}
}

// Vec2 is a 2D vector used for positions, offsets and sizes.
type Vec2 struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Vec3 is a 3D vector. Anchor points use X and Y as fractions of the layer
// size and Z as an absolute depth.
type Vec3 struct {
	X, Y, Z float64
}

// WhitePixel is a 1x1 white image used to draw solid colors.
var WhitePixel *ebiten.Image

func init() {
	WhitePixel = ebiten.NewImage(1, 1)
	WhitePixel.Fill(ColorWhite.toRGBA())
}

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// RectFromImage converts an integer rectangle.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy())}
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Overlaps reports whether r and other share interior area. Rectangles that
// only touch along an edge do not overlap.
func (r Rect) Overlaps(other Rect) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}
	return r.X < other.X+other.Width &&
		r.X+r.Width > other.X &&
		r.Y < other.Y+other.Height &&
		r.Y+r.Height > other.Y
}

// Union returns the smallest rectangle containing both r and other. Empty
// rectangles are ignored.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	x0 := math.Min(r.X, other.X)
	y0 := math.Min(r.Y, other.Y)
	x1 := math.Max(r.X+r.Width, other.X+other.Width)
	y1 := math.Max(r.Y+r.Height, other.Y+other.Height)
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

// Enclosing returns the smallest integer rectangle containing r.
func (r Rect) Enclosing() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)), int(math.Ceil(r.Y+r.Height)),
	)
}

// Region is a list of integer rectangles treated as their union.
type Region []image.Rectangle

// Add appends r to the region. Empty rectangles are dropped.
func (g *Region) Add(r image.Rectangle) {
	if r.Empty() {
		return
	}
	*g = append(*g, r)
}

// Bounds returns the bounding box of the region.
func (g Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, r := range g {
		b = b.Union(r)
	}
	return b
}

// IsEmpty reports whether the region covers no area.
func (g Region) IsEmpty() bool {
	for _, r := range g {
		if !r.Empty() {
			return false
		}
	}
	return true
}

// BlendMode selects a compositing operation.
type BlendMode uint8

const (
	BlendNormal BlendMode = iota // source-over
	BlendMask                    // keep destination where the source is opaque
	BlendNone                    // opaque copy
)

// EbitenBlend returns the ebiten.Blend value corresponding to this BlendMode.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendMask:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorZero,
			BlendFactorSourceAlpha:      ebiten.BlendFactorZero,
			BlendFactorDestinationRGB:   ebiten.BlendFactorSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}
