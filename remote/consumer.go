package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/strata"

	"github.com/sourcegraph/jsonrpc2"
)

// Consumer is the consumer end of a connection. It implements
// strata.SceneLink.
type Consumer struct {
	conn     *jsonrpc2.Conn
	surfaces *strata.Surfaces
	box      *strata.Mailbox

	mu      sync.Mutex
	remote  map[strata.SurfaceID]strata.SurfaceID // producer id to local id
	atlases map[strata.AtlasID]strata.SurfaceID   // local ids
	images  map[strata.ImageID]strata.SurfaceID   // local ids
	release []strata.SurfaceID                    // freed on the next ack
}

// NewConsumer serves the consumer side over rwc. surfaces must be the
// registry the Scene was created with.
func NewConsumer(ctx context.Context, rwc io.ReadWriteCloser, surfaces *strata.Surfaces) *Consumer {
	c := &Consumer{
		surfaces: surfaces,
		box:      strata.NewMailbox(),
		remote:   make(map[strata.SurfaceID]strata.SurfaceID),
		atlases:  make(map[strata.AtlasID]strata.SurfaceID),
		images:   make(map[strata.ImageID]strata.SurfaceID),
	}
	c.conn = jsonrpc2.NewConn(ctx, newStream(rwc), jsonrpc2.HandlerWithError(c.handle))
	go func() {
		<-c.conn.DisconnectNotify()
		c.box.Close()
	}()
	return c
}

// TryReceive implements strata.SceneLink.
func (c *Consumer) TryReceive() (*strata.FrameState, bool) { return c.box.TryTake() }

// Receive blocks until a frame arrives or the connection closes.
func (c *Consumer) Receive(ctx context.Context) (*strata.FrameState, error) {
	return c.box.Take(ctx)
}

// RenderNextFrame implements strata.SceneLink. Surfaces the acknowledged
// frame dropped are released first.
func (c *Consumer) RenderNextFrame() error {
	c.mu.Lock()
	for _, id := range c.release {
		c.surfaces.Release(id)
	}
	c.release = c.release[:0]
	c.mu.Unlock()
	return c.conn.Notify(context.Background(), methodRenderNextFrame, nil)
}

// CommitScrollOffset implements strata.SceneLink.
func (c *Consumer) CommitScrollOffset(id strata.LayerID, delta strata.Vec2) error {
	return c.conn.Notify(context.Background(), methodCommitScroll,
		strata.Signal{Kind: strata.SignalCommitScrollOffset, Layer: id, Offset: delta})
}

// Close closes the connection.
func (c *Consumer) Close() error { return c.conn.Close() }

func (c *Consumer) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Method != methodFrame {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	}
	var msg FrameMessage
	if req.Params == nil || json.Unmarshal(*req.Params, &msg) != nil || msg.State == nil {
		return nil, errInvalidParams
	}
	if err := c.materialize(&msg); err != nil {
		strata.Logger().Error("remote: frame dropped",
			slog.Uint64("frame", msg.State.Frame),
			slog.Any("error", err),
		)
		return nil, err
	}
	if _, err := c.box.Post(msg.State); err != nil {
		return nil, err
	}
	return nil, nil
}

// materialize allocates the message's surfaces locally, writes its pixels,
// and rewrites the frame to local surface ids.
func (c *Consumer) materialize(msg *FrameMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fs := msg.State

	for _, info := range msg.Surfaces {
		s, err := c.surfaces.NewSurface(info.Size, info.Alpha)
		if err != nil {
			return fmt.Errorf("remote: surface %d: %w", info.ID, err)
		}
		c.remote[info.ID] = s.ID
	}
	for _, px := range msg.Pixels {
		local, ok := c.remote[px.Surface]
		if !ok {
			return fmt.Errorf("remote: pixels for surface %d: %w", px.Surface, strata.ErrSurfaceUnavailable)
		}
		s, ok := c.surfaces.Lookup(local)
		if !ok {
			return fmt.Errorf("remote: pixels for surface %d: %w", px.Surface, strata.ErrSurfaceUnavailable)
		}
		if len(px.Pix) != 4*px.Rect.Dx()*px.Rect.Dy() {
			return fmt.Errorf("remote: pixels for surface %d: %d bytes for %v", px.Surface, len(px.Pix), px.Rect)
		}
		s.Image.SubImage(px.Rect).(*ebiten.Image).WritePixels(px.Pix)
	}

	localID := func(id strata.SurfaceID) strata.SurfaceID {
		if l, ok := c.remote[id]; ok {
			return l
		}
		return 0
	}
	for i := range fs.AtlasesCreated {
		a := &fs.AtlasesCreated[i]
		a.Surface = localID(a.Surface)
		c.atlases[a.ID] = a.Surface
	}
	for _, list := range [][]strata.ImageBacking{fs.ImagesCreated, fs.ImagesUpdated} {
		for i := range list {
			b := &list[i]
			b.Surface = localID(b.Surface)
			if old, ok := c.images[b.ID]; ok {
				c.release = append(c.release, old)
			}
			c.images[b.ID] = b.Surface
		}
	}
	for _, id := range fs.AtlasesRemoved {
		if s, ok := c.atlases[id]; ok {
			c.release = append(c.release, s)
			delete(c.atlases, id)
		}
	}
	for _, id := range fs.ImagesRemoved {
		if s, ok := c.images[id]; ok {
			c.release = append(c.release, s)
			delete(c.images, id)
		}
	}
	// Forget producer ids whose local surface is on its way out.
	for remote, local := range c.remote {
		if !c.live(local) {
			delete(c.remote, remote)
		}
	}
	return nil
}

func (c *Consumer) live(local strata.SurfaceID) bool {
	for _, id := range c.atlases {
		if id == local {
			return true
		}
	}
	for _, id := range c.images {
		if id == local {
			return true
		}
	}
	return false
}
