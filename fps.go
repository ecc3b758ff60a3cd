package strata

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// fpsOverlay displays the current FPS and TPS plus the mirrored frame
// number in the top-left corner. The text refreshes every ~0.5 seconds.
type fpsOverlay struct {
	img     *ebiten.Image
	elapsed float64
}

func newFPSOverlay() *fpsOverlay {
	// 120x48 is enough for three short lines.
	return &fpsOverlay{img: ebiten.NewImage(120, 48), elapsed: 1}
}

func (o *fpsOverlay) update(dt float64, frame uint64) {
	o.elapsed += dt
	if o.elapsed < 0.5 {
		return
	}
	o.elapsed = 0
	o.img.Clear()
	// Semi-transparent background for readability
	o.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(o.img, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nFrame: %d",
		ebiten.ActualFPS(), ebiten.ActualTPS(), frame))
}

func (o *fpsOverlay) draw(screen *ebiten.Image) {
	screen.DrawImage(o.img, nil)
}
