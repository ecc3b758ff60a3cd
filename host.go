package strata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Host runs a Coordinator on its own goroutine. Mutations go through Do;
// the loop flushes whenever the consumer has acknowledged the previous frame
// and reacts to consumer signals.
type Host struct {
	c       *Coordinator
	sink    FrameSink
	signals <-chan Signal
	cmds    chan hostCmd
	ticks   chan time.Duration
}

type hostCmd struct {
	fn   func(*Coordinator)
	done chan struct{}
}

// NewHost wires c to a sink and the consumer's signal stream.
func NewHost(c *Coordinator, sink FrameSink, signals <-chan Signal) *Host {
	return &Host{
		c:       c,
		sink:    sink,
		signals: signals,
		cmds:    make(chan hostCmd),
		ticks:   make(chan time.Duration),
	}
}

// Do runs fn on the producer goroutine and waits for it to return.
func (h *Host) Do(ctx context.Context, fn func(*Coordinator)) error {
	cmd := hostCmd{fn: fn, done: make(chan struct{})}
	select {
	case h.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the producer until ctx is cancelled or the sink fails. A
// cancelled context is not an error.
func (h *Host) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		interval := h.c.cfg.AtlasReleaseInterval
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				select {
				case h.ticks <- interval:
				case <-ctx.Done():
					return ctx.Err()
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	g.Go(func() error { return h.loop(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Host) loop(ctx context.Context) error {
	for {
		if fs, ok := h.c.Flush(); ok {
			if err := h.sink.CommitFrame(ctx, fs); err != nil {
				Logger().Error("commit frame", slog.Uint64("frame", fs.Frame), slog.Any("error", err))
				return err
			}
		}
		select {
		case cmd := <-h.cmds:
			cmd.fn(h.c)
			close(cmd.done)
		case s, ok := <-h.signals:
			if !ok {
				return ErrClosed
			}
			h.handle(s)
		case d := <-h.ticks:
			h.c.ReleaseInactiveAtlases(d)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Host) handle(s Signal) {
	switch s.Kind {
	case SignalRenderNextFrame:
		h.c.RenderNextFrame()
	case SignalCommitScrollOffset:
		h.c.CommitScrollOffset(s.Layer, s.Offset)
	}
}
