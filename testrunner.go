package strata

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// ScriptStep is one action of a scripted session. Actions are
// "screenshot", "wheel", "drag", "scroll" and "wait".
type ScriptStep struct {
	Action string  `yaml:"action"`
	Label  string  `yaml:"label,omitempty"`
	Layer  LayerID `yaml:"layer,omitempty"`
	X      float64 `yaml:"x,omitempty"`
	Y      float64 `yaml:"y,omitempty"`
	DX     float64 `yaml:"dx,omitempty"`
	DY     float64 `yaml:"dy,omitempty"`
	ToX    float64 `yaml:"toX,omitempty"`
	ToY    float64 `yaml:"toY,omitempty"`
	Frames int     `yaml:"frames,omitempty"`
}

type script struct {
	Steps []ScriptStep `yaml:"steps"`
}

// ScriptRunner plays injected input, user scrolls and screenshots across
// frames for automated visual checks. Attach it with Scene.SetScriptRunner.
type ScriptRunner struct {
	steps []ScriptStep
	next  int
	wait  int
	done  bool
}

// LoadScript parses a YAML (or JSON) script.
func LoadScript(data []byte) (*ScriptRunner, error) {
	var sc script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	for i, st := range sc.Steps {
		switch st.Action {
		case "screenshot", "wheel", "drag", "scroll", "wait":
		default:
			return nil, fmt.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &ScriptRunner{steps: sc.Steps}, nil
}

// SetScriptRunner attaches r to the scene. Game.Update advances it once
// per frame before reading input.
func (s *Scene) SetScriptRunner(r *ScriptRunner) {
	s.script = r
}

// Done reports whether every step has run.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// step advances the runner by one frame.
func (r *ScriptRunner) step(s *Scene) {
	if r.done || s.PendingInput() > 0 {
		return
	}
	if r.wait > 0 {
		r.wait--
		return
	}
	if r.next >= len(r.steps) {
		r.done = true
		return
	}
	st := r.steps[r.next]
	r.next++

	switch st.Action {
	case "screenshot":
		s.Screenshot(st.Label)
	case "wheel":
		s.InjectWheel(st.X, st.Y, st.DX, st.DY)
	case "drag":
		s.InjectDrag(st.X, st.Y, st.ToX, st.ToY, st.Frames)
	case "scroll":
		if !s.ScrollBy(st.Layer, Vec2{X: st.DX, Y: st.DY}) {
			Logger().Warn("script scroll target is not scrollable", slog.Uint64("layer", uint64(st.Layer)))
		}
	case "wait":
		if st.Frames > 0 {
			r.wait = st.Frames - 1
		}
	}
	if r.next >= len(r.steps) && r.wait == 0 && s.PendingInput() == 0 {
		r.done = true
	}
}
