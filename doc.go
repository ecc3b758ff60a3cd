// Package strata is a retained-mode layer compositor for [Ebitengine].
//
// Strata splits compositing into two halves that talk only through
// [FrameState] values. The producer side, a [Coordinator], owns a tree of
// [Layer] values, paints dirty layer content into tiles packed inside
// shared update atlases and batches every change into a FrameState. The
// consumer side, a [Scene], mirrors the tree, copies the painted atlas
// regions into per-tile textures, runs keyframe animations and draws the
// result every frame.
//
// # Quick start
//
// The two halves usually run on separate goroutines joined by a [Channel]:
//
//	surfaces := strata.NewSurfaces()
//	ch := strata.NewChannel()
//	c := strata.NewCoordinator(strata.DefaultConfig(), surfaces)
//
//	root := c.NewLayer()
//	root.SetSize(strata.Vec2{X: 640, Y: 480})
//	box := c.NewLayer()
//	box.SetSize(strata.Vec2{X: 40, Y: 40})
//	box.SetSolidColor(strata.Color{R: 1, A: 1})
//	root.AddChild(box)
//	c.SetRootLayer(root)
//
//	host := strata.NewHost(c, ch, ch.Signals())
//	go host.Run(ctx)
//
//	scene := strata.NewScene(surfaces)
//	strata.Run(scene, ch, strata.RunConfig{Title: "demo", Width: 640, Height: 480})
//
// Mutate layers from other goroutines with [Host.Do]. For full control,
// implement [ebiten.Game] yourself and call [Scene.Update] and
// [Scene.Draw] directly.
//
// # Frame pacing
//
// The coordinator commits at most one frame ahead: after a flush it waits
// until the scene calls RenderNextFrame on its link before flushing again.
// Frames committed while the scene is behind are merged by the [Mailbox],
// so the scene always applies one FrameState describing everything that
// changed since its last update.
//
// # Content
//
// A layer shows a solid color, an image backing created with
// [Coordinator.CreateImageBacking], or content painted by its [PaintFunc].
// Painted content is split into tiles by a [BackingStore]; dirty tile
// regions are allocated in an [UpdateAtlas] with an [AreaAllocator] and
// shipped to the scene by id.
//
// # Transport
//
// Subpackage remote carries frames across a process boundary over
// JSON-RPC 2.0. Subpackage trace records committed frames into a bbolt
// database and replays them. Subpackage ecs (a separate module) forwards
// [CompositorEvent] values into a [Donburi] world.
//
// [Ebitengine]: https://ebitengine.org
// [Donburi]: https://github.com/yohamta/donburi
package strata
