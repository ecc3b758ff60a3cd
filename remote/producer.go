package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/strata"

	"github.com/sourcegraph/jsonrpc2"
)

// signalBuffer matches the in-process channel.
const signalBuffer = 64

// Producer is the producer end of a connection.
type Producer struct {
	conn     *jsonrpc2.Conn
	surfaces *strata.Surfaces
	signals  chan strata.Signal

	// sendMu orders signal sends against closing signals.
	sendMu sync.Mutex
	closed bool

	mu      sync.Mutex
	atlases map[strata.AtlasID]strata.SurfaceID
}

// NewProducer serves the producer side over rwc. surfaces must be the
// registry the Coordinator allocates from.
func NewProducer(ctx context.Context, rwc io.ReadWriteCloser, surfaces *strata.Surfaces) *Producer {
	p := &Producer{
		surfaces: surfaces,
		signals:  make(chan strata.Signal, signalBuffer),
		atlases:  make(map[strata.AtlasID]strata.SurfaceID),
	}
	p.conn = jsonrpc2.NewConn(ctx, newStream(rwc), jsonrpc2.HandlerWithError(p.handle))
	go func() {
		<-p.conn.DisconnectNotify()
		p.sendMu.Lock()
		p.closed = true
		close(p.signals)
		p.sendMu.Unlock()
	}()
	return p
}

// Signals returns the consumer's signals. The channel closes when the
// connection does, which stops a Host with strata.ErrClosed.
func (p *Producer) Signals() <-chan strata.Signal { return p.signals }

// Close closes the connection.
func (p *Producer) Close() error { return p.conn.Close() }

// CommitFrame sends fs and the pixels it references.
func (p *Producer) CommitFrame(ctx context.Context, fs *strata.FrameState) error {
	msg, err := p.encode(fs)
	if err != nil {
		return err
	}
	if err := p.conn.Notify(ctx, methodFrame, msg); err != nil {
		return fmt.Errorf("remote: send frame %d: %w", fs.Frame, err)
	}
	return nil
}

func (p *Producer) encode(fs *strata.FrameState) (*FrameMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := &FrameMessage{State: fs}
	surface := func(id strata.SurfaceID) (*strata.Surface, error) {
		s, ok := p.surfaces.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("remote: frame %d: surface %d: %w", fs.Frame, id, strata.ErrSurfaceUnavailable)
		}
		return s, nil
	}

	for _, a := range fs.AtlasesCreated {
		s, err := surface(a.Surface)
		if err != nil {
			return nil, err
		}
		p.atlases[a.ID] = a.Surface
		msg.Surfaces = append(msg.Surfaces, SurfaceInfo{ID: s.ID, Size: s.Size(), Alpha: s.Alpha})
	}
	for _, b := range slices.Concat(fs.ImagesCreated, fs.ImagesUpdated) {
		s, err := surface(b.Surface)
		if err != nil {
			return nil, err
		}
		msg.Surfaces = append(msg.Surfaces, SurfaceInfo{ID: s.ID, Size: s.Size(), Alpha: s.Alpha})
		msg.Pixels = append(msg.Pixels, readPixels(s, image.Rectangle{Max: s.Size()}))
	}
	for _, rec := range fs.Updates {
		for _, tu := range rec.TilesToUpdate {
			if tu.Atlas == 0 || tu.UpdateRect.Empty() {
				continue
			}
			id, ok := p.atlases[tu.Atlas]
			if !ok {
				return nil, fmt.Errorf("remote: frame %d: atlas %d: %w", fs.Frame, tu.Atlas, strata.ErrUnknownAtlas)
			}
			s, err := surface(id)
			if err != nil {
				return nil, err
			}
			r := image.Rectangle{Min: tu.Offset, Max: tu.Offset.Add(tu.UpdateRect.Size())}
			msg.Pixels = append(msg.Pixels, readPixels(s, r))
		}
	}
	for _, id := range fs.AtlasesRemoved {
		delete(p.atlases, id)
	}
	return msg, nil
}

func readPixels(s *strata.Surface, r image.Rectangle) Pixels {
	pix := make([]byte, 4*r.Dx()*r.Dy())
	s.Image.SubImage(r).(*ebiten.Image).ReadPixels(pix)
	return Pixels{Surface: s.ID, Rect: r, Pix: pix}
}

func (p *Producer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	var sig strata.Signal
	switch req.Method {
	case methodRenderNextFrame:
		sig.Kind = strata.SignalRenderNextFrame
	case methodCommitScroll:
		if req.Params == nil || json.Unmarshal(*req.Params, &sig) != nil {
			return nil, errInvalidParams
		}
		sig.Kind = strata.SignalCommitScrollOffset
	default:
		strata.Logger().Warn("remote: unknown method", slog.String("method", req.Method))
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	}
	p.send(ctx, conn, sig)
	return nil, nil
}

// send delivers sig unless the connection goes away first. It runs on the
// connection's read loop, so a Host that stopped draining must not wedge
// it.
func (p *Producer) send(ctx context.Context, conn *jsonrpc2.Conn, sig strata.Signal) {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.signals <- sig:
	case <-conn.DisconnectNotify():
	case <-ctx.Done():
	}
}
