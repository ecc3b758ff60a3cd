package strata

import (
	"context"
	"sync"
)

// SignalKind names a consumer-to-producer signal.
type SignalKind uint8

const (
	SignalRenderNextFrame    SignalKind = iota // consumer applied the last frame
	SignalCommitScrollOffset                   // consumer scrolled Layer by Offset
)

// Signal travels from the consumer to the producer.
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Layer  LayerID    `json:"layer,omitempty"`
	Offset Vec2       `json:"offset"`
}

// FrameSink receives FrameStates from the producer.
type FrameSink interface {
	CommitFrame(ctx context.Context, fs *FrameState) error
}

// SceneLink is the consumer's view of the boundary.
type SceneLink interface {
	// TryReceive returns the pending FrameState without blocking.
	TryReceive() (*FrameState, bool)
	// RenderNextFrame acknowledges the frame last received.
	RenderNextFrame() error
	// CommitScrollOffset reports a user scroll of a scrollable layer.
	CommitScrollOffset(id LayerID, delta Vec2) error
}

// Mailbox is a single-slot FrameState handoff. Posting while a frame is
// still pending merges the new frame into it, so the reader always gets one
// frame equivalent to everything posted since its last take.
type Mailbox struct {
	mu     sync.Mutex
	frame  *FrameState
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Post stores fs. coalesced reports whether fs was merged into a frame the
// reader had not taken yet.
func (m *Mailbox) Post(fs *FrameState) (coalesced bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	if m.frame != nil {
		m.frame.Merge(fs)
		return true, nil
	}
	m.frame = fs
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return false, nil
}

// TryTake empties the slot without blocking.
func (m *Mailbox) TryTake() (*FrameState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fs := m.frame
	m.frame = nil
	return fs, fs != nil
}

// Take waits for a frame, the context, or Close.
func (m *Mailbox) Take(ctx context.Context) (*FrameState, error) {
	for {
		if fs, ok := m.TryTake(); ok {
			return fs, nil
		}
		select {
		case <-m.ready:
		case <-m.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close rejects further posts and wakes blocked readers. A pending frame can
// still be taken with TryTake.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

// signalBuffer bounds the consumer-to-producer queue. Acks are at most one
// per frame, so the buffer only fills when scroll commits pile up.
const signalBuffer = 64

// Channel connects a producer and a consumer in one process. It is the
// producer's FrameSink and the consumer's SceneLink.
type Channel struct {
	box     *Mailbox
	signals chan Signal
	once    sync.Once
	done    chan struct{}
}

// NewChannel returns an open channel.
func NewChannel() *Channel {
	return &Channel{
		box:     NewMailbox(),
		signals: make(chan Signal, signalBuffer),
		done:    make(chan struct{}),
	}
}

// CommitFrame posts fs to the consumer.
func (c *Channel) CommitFrame(_ context.Context, fs *FrameState) error {
	coalesced, err := c.box.Post(fs)
	if coalesced {
		Logger().Debug("frame coalesced", "frame", fs.Frame)
	}
	return err
}

// Signals returns the consumer-to-producer signal stream.
func (c *Channel) Signals() <-chan Signal { return c.signals }

// TryReceive implements SceneLink.
func (c *Channel) TryReceive() (*FrameState, bool) { return c.box.TryTake() }

// Receive blocks until a frame arrives.
func (c *Channel) Receive(ctx context.Context) (*FrameState, error) { return c.box.Take(ctx) }

// RenderNextFrame implements SceneLink.
func (c *Channel) RenderNextFrame() error {
	return c.send(Signal{Kind: SignalRenderNextFrame})
}

// CommitScrollOffset implements SceneLink.
func (c *Channel) CommitScrollOffset(id LayerID, delta Vec2) error {
	return c.send(Signal{Kind: SignalCommitScrollOffset, Layer: id, Offset: delta})
}

func (c *Channel) send(s Signal) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.signals <- s:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close shuts both directions down.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		c.box.Close()
	})
}
