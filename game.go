package strata

import (
	"errors"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunConfig configures Run.
type RunConfig struct {
	Title      string
	Width      int
	Height     int
	ShowFPS    bool
	ClearColor Color
	// OnUpdate runs on every tick before the Scene syncs. Returning an
	// error stops the game.
	OnUpdate func() error
	// Clock returns seconds for animation timing. Defaults to WallClock.
	Clock func() float64
}

// Game adapts a Scene and its link to ebiten.Game. Each tick forwards
// scroll commits, applies the pending FrameState, acknowledges it and
// advances animations; each draw paints the mirrored tree.
type Game struct {
	scene *Scene
	link  SceneLink
	cfg   RunConfig
	fps   *fpsOverlay
	last  time.Time
}

// NewGame wraps scene and link.
func NewGame(scene *Scene, link SceneLink, cfg RunConfig) *Game {
	if cfg.Clock == nil {
		cfg.Clock = WallClock
	}
	g := &Game{scene: scene, link: link, cfg: cfg}
	if cfg.ShowFPS {
		g.fps = newFPSOverlay()
	}
	return g
}

// Update implements ebiten.Game. Pointer input is turned into user scrolls
// before the scene syncs. Protocol errors are logged by the Scene
// and do not stop the game; link failures do.
func (g *Game) Update() error {
	if g.cfg.OnUpdate != nil {
		if err := g.cfg.OnUpdate(); err != nil {
			return err
		}
	}
	if g.scene.script != nil {
		g.scene.script.step(g.scene)
	}
	g.scene.processInput()
	if err := g.scene.Update(g.link, g.cfg.Clock()); err != nil && !isProtocolOnly(err) {
		return err
	}
	if g.fps != nil {
		now := time.Now()
		if !g.last.IsZero() {
			g.fps.update(now.Sub(g.last).Seconds(), g.scene.Frame())
		}
		g.last = now
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	if g.cfg.ClearColor.A > 0 {
		screen.Fill(g.cfg.ClearColor.toRGBA())
	}
	g.scene.Draw(screen)
	if g.fps != nil {
		g.fps.draw(screen)
	}
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if g.cfg.Width > 0 && g.cfg.Height > 0 {
		return g.cfg.Width, g.cfg.Height
	}
	return outsideWidth, outsideHeight
}

// Run opens a window and runs the consumer until the window closes.
func Run(scene *Scene, link SceneLink, cfg RunConfig) error {
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		ebiten.SetWindowSize(cfg.Width, cfg.Height)
	}
	return ebiten.RunGame(NewGame(scene, link, cfg))
}

// isProtocolOnly reports whether every error joined in err is a
// ProtocolError.
func isProtocolOnly(err error) bool {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			if !isProtocolOnly(e) {
				return false
			}
		}
		return true
	}
	var pe *ProtocolError
	return errors.As(err, &pe)
}
