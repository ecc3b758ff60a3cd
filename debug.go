package strata

import (
	"log/slog"
	"time"
)

// globalDebug mirrors the most recent SetDebugMode call so that layer and
// transform operations, which lack a Scene pointer, can check it cheaply.
var globalDebug bool

// SetDebugMode enables or disables debug checks for the whole package:
// changes to destroyed layers and reads of stale transforms panic.
func SetDebugMode(enabled bool) {
	globalDebug = enabled
}

// debugStats holds per-frame timing and draw metrics. Only populated when
// the Scene is in debug mode.
type debugStats struct {
	enabled    bool
	t0         time.Time
	paintTime  time.Duration
	submitTime time.Duration

	commands int
	textures int
	solids   int
	groups   int
	masks    int
}

func (st *debugStats) begin(enabled bool) {
	st.enabled = enabled
	if enabled {
		st.t0 = time.Now()
	}
}

// lap stores the time since the previous lap in dst.
func (st *debugStats) lap(dst *time.Duration) {
	if !st.enabled {
		return
	}
	now := time.Now()
	*dst = now.Sub(st.t0)
	st.t0 = now
}

func (st *debugStats) count(cmds []DrawCommand) {
	st.commands = len(cmds)
	for i := range cmds {
		switch cmds[i].Type {
		case DrawTexture:
			st.textures++
		case DrawSolid:
			st.solids++
		case DrawBeginGroup:
			st.groups++
		case DrawBeginMask:
			st.masks++
		}
	}
}

func (st *debugStats) log(frame uint64) {
	Logger().Debug("draw",
		slog.Uint64("frame", frame),
		slog.Duration("paint", st.paintTime),
		slog.Duration("submit", st.submitTime),
		slog.Int("commands", st.commands),
		slog.Int("textures", st.textures),
		slog.Int("solids", st.solids),
		slog.Int("groups", st.groups),
		slog.Int("masks", st.masks),
	)
}

// debugMaxTreeDepth is the depth past which the paint walk warns.
const debugMaxTreeDepth = 64

func debugCheckTreeDepth(id LayerID, depth int) {
	if globalDebug && depth == debugMaxTreeDepth {
		Logger().Warn("deep layer tree", slog.Uint64("layer", uint64(id)), slog.Int("depth", depth))
	}
}
