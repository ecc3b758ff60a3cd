package strata

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestGameUpdateAppliesAndAcks(t *testing.T) {
	p := newTestPair(t)
	ch := NewChannel()
	defer ch.Close()
	ticks := 0
	g := NewGame(p.s, ch, RunConfig{
		Width:    32,
		Height:   16,
		ShowFPS:  true,
		OnUpdate: func() error { ticks++; return nil },
		Clock:    func() float64 { return 100 },
	})

	root := solidLayer(p.c, 0, 0, 8, 8)
	p.c.SetRootLayer(root)
	fs, _ := p.c.Flush()
	if err := ch.CommitFrame(t.Context(), fs); err != nil {
		t.Fatal(err)
	}
	if err := g.Update(); err != nil {
		t.Fatal(err)
	}
	if ticks != 1 || p.s.Root() != root.ID() {
		t.Errorf("ticks = %d, root = %d", ticks, p.s.Root())
	}
	if sig := <-ch.Signals(); sig.Kind != SignalRenderNextFrame {
		t.Errorf("signal = %+v, want ack", sig)
	}
	g.Draw(ebiten.NewImage(32, 16))
	if w, h := g.Layout(640, 480); w != 32 || h != 16 {
		t.Errorf("Layout = %d, %d", w, h)
	}
}

func TestGameUpdateSurvivesProtocolErrors(t *testing.T) {
	p := newTestPair(t)
	ch := NewChannel()
	defer ch.Close()
	g := NewGame(p.s, ch, RunConfig{})
	if err := ch.CommitFrame(t.Context(), &FrameState{Frame: 1, Root: 5}); err != nil {
		t.Fatal(err)
	}
	if err := g.Update(); err != nil {
		t.Errorf("Update = %v, want protocol errors swallowed", err)
	}
	if p.s.Frame() != 1 {
		t.Errorf("Frame = %d, want 1", p.s.Frame())
	}
}

func TestGameStopsOnUpdateError(t *testing.T) {
	p := newTestPair(t)
	stop := errors.New("quit")
	g := NewGame(p.s, NewChannel(), RunConfig{OnUpdate: func() error { return stop }})
	if err := g.Update(); !errors.Is(err, stop) {
		t.Errorf("Update = %v, want the OnUpdate error", err)
	}
}

func TestIsProtocolOnly(t *testing.T) {
	pe := &ProtocolError{Kind: ErrUnknownLayer}
	tests := []struct {
		err  error
		want bool
	}{
		{pe, true},
		{errors.Join(pe, pe), true},
		{errors.Join(errors.Join(pe), pe), true},
		{errors.Join(pe, ErrClosed), false},
		{fmt.Errorf("wrapped: %w", pe), true},
		{ErrClosed, false},
	}
	for i, tt := range tests {
		if got := isProtocolOnly(tt.err); got != tt.want {
			t.Errorf("case %d: isProtocolOnly(%v) = %v, want %v", i, tt.err, got, tt.want)
		}
	}
}
