// Package ecs provides ECS adapters for strata's compositor events.
//
// The primary adapter is [NewDonburiSink], which bridges compositor
// lifecycle events (frames committed and applied, atlas churn, protocol
// errors) into a [Donburi] world as typed events. Subscribe to
// [CompositorEventType] in your ECS systems to receive them.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	coordinator.SetEventSink(sink)
//	scene.SetEventSink(sink)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
