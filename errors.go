package strata

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLayer is returned when a FrameState references a layer id the
	// consumer has never seen.
	ErrUnknownLayer = errors.New("strata: unknown layer")

	// ErrUnknownAtlas is returned when a tile update names an atlas that was
	// never created.
	ErrUnknownAtlas = errors.New("strata: unknown atlas")

	// ErrUnknownTile is returned when a tile update names a tile the layer
	// does not have.
	ErrUnknownTile = errors.New("strata: unknown tile")

	// ErrUnknownImage is returned when an image backing id cannot be resolved.
	ErrUnknownImage = errors.New("strata: unknown image backing")

	// ErrSurfaceUnavailable is returned when the surface factory cannot
	// provide a surface.
	ErrSurfaceUnavailable = errors.New("strata: surface unavailable")

	// ErrInvalidSize is returned for zero or negative surface sizes.
	ErrInvalidSize = errors.New("strata: invalid size")

	// ErrUnknownFrame is returned when a sprite sheet has no frame by the
	// requested name.
	ErrUnknownFrame = errors.New("strata: unknown sprite sheet frame")

	// ErrClosed is returned by a link or mailbox after Close.
	ErrClosed = errors.New("strata: closed")
)

// ProtocolError reports a FrameState that references something the consumer
// cannot resolve. It matches ErrUnknownLayer, ErrUnknownTile,
// ErrUnknownAtlas or ErrUnknownImage with errors.Is, depending on Kind.
type ProtocolError struct {
	Frame uint64
	Layer LayerID
	Field string
	Ref   uint32
	Kind  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("strata: frame %d: layer %d: %s references %d: %v",
		e.Frame, e.Layer, e.Field, e.Ref, e.Kind)
}

func (e *ProtocolError) Unwrap() error { return e.Kind }

// ConfigError describes an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "strata: invalid config " + e.Field + ": " + e.Reason
}
