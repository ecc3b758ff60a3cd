// Package remote carries FrameStates and consumer signals between processes
// over JSON-RPC 2.0 notifications.
//
// The producer side wraps a connection in a [Producer], which is a
// [strata.FrameSink] and exposes the consumer's signals for a
// [strata.Host]. The consumer side wraps the other end in a [Consumer],
// which is a [strata.SceneLink] for [strata.Scene.Update].
//
// Surfaces cannot be shared across processes, so every frame also carries
// the pixels it references: the sizes of new atlases and images, the atlas
// regions that tile updates copy from, and the full contents of new image
// backings. The consumer recreates them in its own [strata.Surfaces] and
// rewrites the surface ids before the Scene sees the frame.
package remote

import (
	"image"
	"io"

	"github.com/phanxgames/strata"

	"github.com/sourcegraph/jsonrpc2"
)

const (
	methodFrame           = "strata/frame"
	methodRenderNextFrame = "strata/renderNextFrame"
	methodCommitScroll    = "strata/commitScrollOffset"
)

var errInvalidParams = &jsonrpc2.Error{
	Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}

// SurfaceInfo describes a surface the consumer must allocate.
type SurfaceInfo struct {
	ID    strata.SurfaceID `json:"id"`
	Size  image.Point      `json:"size"`
	Alpha bool             `json:"alpha"`
}

// Pixels is a premultiplied RGBA region of one surface.
type Pixels struct {
	Surface strata.SurfaceID `json:"surface"`
	Rect    image.Rectangle  `json:"rect"`
	Pix     []byte           `json:"pix"`
}

// FrameMessage is the params of a frame notification.
type FrameMessage struct {
	State    *strata.FrameState `json:"state"`
	Surfaces []SurfaceInfo      `json:"surfaces,omitempty"`
	Pixels   []Pixels           `json:"pixels,omitempty"`
}

func newStream(rwc io.ReadWriteCloser) jsonrpc2.ObjectStream {
	return jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
}
