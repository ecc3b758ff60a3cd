package strata

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Canvas is a producer-owned offscreen image that layers show through an
// image backing. Draw into it freely, then Publish to ship the pixels. Each
// Publish after the first replaces the backing's surface, so the consumer
// never samples a half drawn canvas.
type Canvas struct {
	image *ebiten.Image
	w, h  int
	id    ImageID
}

// NewCanvas creates a canvas of the given size.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{image: ebiten.NewImage(w, h), w: w, h: h}
}

// Image returns the underlying image for direct drawing.
func (cv *Canvas) Image() *ebiten.Image { return cv.image }

// Width returns the canvas width in pixels.
func (cv *Canvas) Width() int { return cv.w }

// Height returns the canvas height in pixels.
func (cv *Canvas) Height() int { return cv.h }

// ImageID returns the backing id, or zero before the first Publish.
func (cv *Canvas) ImageID() ImageID { return cv.id }

// Clear fills the canvas with transparent black.
func (cv *Canvas) Clear() { cv.image.Clear() }

// Fill fills the canvas with c.
func (cv *Canvas) Fill(c Color) { cv.image.Fill(c.toRGBA()) }

// DrawImage draws src with the given options.
func (cv *Canvas) DrawImage(src *ebiten.Image, op *ebiten.DrawImageOptions) {
	cv.image.DrawImage(src, op)
}

// DrawImageAt draws src at (x, y).
func (cv *Canvas) DrawImageAt(src *ebiten.Image, x, y float64) {
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(x, y)
	cv.image.DrawImage(src, &op)
}

// Resize replaces the canvas with a cleared one of the new size. The
// backing keeps its id and picks up the new size on the next Publish.
func (cv *Canvas) Resize(w, h int) {
	if cv.image != nil {
		cv.image.Deallocate()
	}
	cv.image = ebiten.NewImage(w, h)
	cv.w, cv.h = w, h
}

// Publish copies the canvas into its image backing on c, creating the
// backing on first use, and returns the backing id.
func (cv *Canvas) Publish(c *Coordinator) (ImageID, error) {
	if cv.id == 0 {
		id, err := c.CreateImageBacking(cv.image)
		if err != nil {
			return 0, err
		}
		cv.id = id
		return id, nil
	}
	return cv.id, c.UpdateImageBacking(cv.id, cv.image)
}

// Dispose deallocates the canvas image and, when published, removes the
// backing from c. A nil c only drops the image.
func (cv *Canvas) Dispose(c *Coordinator) {
	if cv.image != nil {
		cv.image.Deallocate()
		cv.image = nil
	}
	if c != nil && cv.id != 0 {
		c.ReleaseImageBacking(cv.id)
		cv.id = 0
	}
}
