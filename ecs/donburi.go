// Package ecs publishes strata compositor events into a Donburi world.
package ecs

import (
	"github.com/phanxgames/strata"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// CompositorEventType is the Donburi event type for compositor lifecycle
// events. Subscribe to it in your ECS systems to react to committed and
// applied frames, atlas churn, and protocol errors.
var CompositorEventType = events.NewEventType[strata.CompositorEvent]()

type donburiSink struct {
	world donburi.World
	only  map[strata.EventType]bool
}

// NewDonburiSink creates an EventSink backed by a Donburi world. Events are
// published to CompositorEventType and delivered by ProcessEvents. When
// types are given only those event types are published.
func NewDonburiSink(world donburi.World, types ...strata.EventType) strata.EventSink {
	s := &donburiSink{world: world}
	if len(types) > 0 {
		s.only = make(map[strata.EventType]bool, len(types))
		for _, t := range types {
			s.only[t] = true
		}
	}
	return s
}

func (s *donburiSink) EmitEvent(event strata.CompositorEvent) {
	if s.only != nil && !s.only[event.Type] {
		return
	}
	CompositorEventType.Publish(s.world, event)
}
