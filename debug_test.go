package strata

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// captureLogs routes package logging into a buffer for the duration of t.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { SetLogger(prev) })
	return &buf
}

func TestDebugStatsCount(t *testing.T) {
	var st debugStats
	st.begin(true)
	st.count([]DrawCommand{
		{Type: DrawBeginGroup},
		{Type: DrawSolid},
		{Type: DrawTexture},
		{Type: DrawTexture},
		{Type: DrawBeginMask},
		{Type: DrawEndMask},
		{Type: DrawEndGroup},
	})
	if st.commands != 7 || st.textures != 2 || st.solids != 1 || st.groups != 1 || st.masks != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestDebugStatsLapDisabled(t *testing.T) {
	var st debugStats
	st.begin(false)
	st.lap(&st.paintTime)
	if st.paintTime != 0 {
		t.Errorf("paintTime = %v with stats disabled", st.paintTime)
	}
}

func TestSceneDrawLogsStatsInDebug(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)
	p := newTestPair(t)
	p.s.SetDebugMode(true)
	t.Cleanup(func() { SetDebugMode(false) })

	root := solidLayer(p.c, 0, 0, 8, 8)
	p.c.SetRootLayer(root)
	p.sync(t)
	p.s.Draw(ebiten.NewImage(16, 16))

	out := buf.String()
	if !strings.Contains(out, "msg=draw") || !strings.Contains(out, "solids=1") {
		t.Errorf("debug draw log missing:\n%s", out)
	}
}

func TestChangeOnDestroyedLayerPanicsInDebug(t *testing.T) {
	SetDebugMode(true)
	t.Cleanup(func() { SetDebugMode(false) })
	c := newTestCoordinator(t)
	l := c.NewLayer()
	l.Destroy()

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	l.SetOpacity(0.5)
}

func TestDeepTreeWarns(t *testing.T) {
	buf := captureLogs(t, slog.LevelWarn)
	SetDebugMode(true)
	t.Cleanup(func() { SetDebugMode(false) })
	debugCheckTreeDepth(9, debugMaxTreeDepth)
	if !strings.Contains(buf.String(), "deep layer tree") {
		t.Errorf("no warning logged:\n%s", buf.String())
	}
}
