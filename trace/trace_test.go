package trace

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/phanxgames/strata"
)

func openTemp(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// frameList is a FrameSink that keeps what it receives.
type frameList []*strata.FrameState

func (l *frameList) CommitFrame(_ context.Context, fs *strata.FrameState) error {
	*l = append(*l, fs)
	return nil
}

func producedFrames(t *testing.T) []*strata.FrameState {
	t.Helper()
	c := strata.NewCoordinator(strata.DefaultConfig(), strata.NewSurfaces())
	root := c.NewLayer()
	child := c.NewLayer()
	root.AddChild(child)
	c.SetRootLayer(root)
	var out []*strata.FrameState
	flush := func() {
		fs, ok := c.Flush()
		if !ok {
			t.Fatal("Flush produced no frame")
		}
		c.RenderNextFrame()
		out = append(out, fs)
	}
	flush()
	child.SetPosition(strata.Vec2{X: 4, Y: 2})
	child.SetOpacity(0.5)
	flush()
	child.Destroy()
	flush()
	return out
}

func TestRecordAndRead(t *testing.T) {
	r := openTemp(t)
	frames := producedFrames(t)
	for i, fs := range frames {
		seq, err := r.Record(fs)
		if err != nil {
			t.Fatal(err)
		}
		if seq != uint64(i+1) {
			t.Errorf("seq = %d, want %d", seq, i+1)
		}
	}
	if n, err := r.Count(); err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	got, err := r.Frame(2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(frames[1], got); diff != "" {
		t.Errorf("frame 2 mismatch (-recorded +read):\n%s", diff)
	}
	if _, err := r.Frame(9); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Frame(9) err = %v, want ErrNoFrame", err)
	}
}

func TestFramesRange(t *testing.T) {
	r := openTemp(t)
	for _, fs := range producedFrames(t) {
		if _, err := r.Record(fs); err != nil {
			t.Fatal(err)
		}
	}
	var seqs []uint64
	if err := r.Frames(2, 3, func(seq uint64, _ *strata.FrameState) error {
		seqs = append(seqs, seq)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{2}, seqs); diff != "" {
		t.Errorf("seqs mismatch (-want +got):\n%s", diff)
	}

	stop := errors.New("stop")
	err := r.Frames(0, 0, func(uint64, *strata.FrameState) error { return stop })
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want the callback error", err)
	}
}

func TestSinkRecordsAndReplayRebuildsScene(t *testing.T) {
	r := openTemp(t)
	var live frameList
	sink := Sink{Next: &live, Recorder: r}
	for _, fs := range producedFrames(t) {
		if err := sink.CommitFrame(t.Context(), fs); err != nil {
			t.Fatal(err)
		}
	}
	if len(live) != 3 {
		t.Fatalf("forwarded %d frames, want 3", len(live))
	}

	apply := func(frames []*strata.FrameState) strata.SceneDump {
		s := strata.NewScene(strata.NewSurfaces())
		defer s.Close()
		for _, fs := range frames {
			if err := s.Apply(fs); err != nil {
				t.Fatal(err)
			}
		}
		s.ComputeTransforms()
		return s.Dump()
	}
	var replayed frameList
	if err := r.Replay(t.Context(), &replayed); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(apply(live), apply(replayed)); diff != "" {
		t.Errorf("replayed scene mismatch (-live +replayed):\n%s", diff)
	}
}

func TestReplayHonorsContext(t *testing.T) {
	r := openTemp(t)
	for _, fs := range producedFrames(t) {
		if _, err := r.Record(fs); err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	var got frameList
	if err := r.Replay(ctx, &got); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(got) != 0 {
		t.Errorf("replayed %d frames after cancel", len(got))
	}
}
