package strata

// EventType identifies a compositor lifecycle event.
type EventType uint8

const (
	EventFrameCommitted EventType = iota // producer handed a FrameState to its sink
	EventFrameApplied                    // consumer applied a FrameState
	EventAtlasCreated                    // producer allocated an update atlas
	EventAtlasReleased                   // producer released an idle atlas
	EventProtocolError                   // consumer rejected a FrameState
)

func (t EventType) String() string {
	switch t {
	case EventFrameCommitted:
		return "frame-committed"
	case EventFrameApplied:
		return "frame-applied"
	case EventAtlasCreated:
		return "atlas-created"
	case EventAtlasReleased:
		return "atlas-released"
	case EventProtocolError:
		return "protocol-error"
	}
	return "unknown"
}

// CompositorEvent is published to an EventSink.
type CompositorEvent struct {
	Type  EventType
	Frame uint64
	Layer LayerID
	Atlas AtlasID
	Err   error
}

// EventSink is the interface for optional ECS integration. Both the
// Coordinator and the Scene publish lifecycle events to it.
type EventSink interface {
	EmitEvent(event CompositorEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(CompositorEvent)

// EmitEvent calls f(event).
func (f EventSinkFunc) EmitEvent(event CompositorEvent) { f(event) }

func emit(sink EventSink, event CompositorEvent) {
	if sink != nil {
		sink.EmitEvent(event)
	}
}
