package ecs

import "github.com/l1jgo/enginecore/internal/mathx"

// Component is implemented by embedding Base in a struct and attaching a
// pointer to it. The store owns the instance from AddComponent until it is
// removed; an instance can be attached to at most one entity, once.
type Component interface {
	base() *Base
}

// Base carries the owner back-reference assigned by AddComponent.
type Base struct {
	world   *World
	owner   EntityID
	spatial *Spatial
}

func (b *Base) base() *Base { return b }

// Entity returns the owning entity, or zero before the component is attached.
func (b *Base) Entity() EntityID { return b.owner }

// World returns the world the component is attached to, or nil.
func (b *Base) World() *World { return b.world }

// Spatial returns the owning entity's Spatial component.
func (b *Base) Spatial() *Spatial { return b.spatial }

// DestroyEntity removes the owning entity and all of its components.
func (b *Base) DestroyEntity() {
	if b.world != nil {
		b.world.RemoveEntity(b.owner)
	}
}

// Lifecycle capabilities. A component opts into any subset; one implementing
// none of them is a plain data holder.
type (
	// Awaker runs synchronously inside AddComponent.
	Awaker interface{ Awake() }
	// Starter runs once, at the top of the next variable-step dispatch.
	Starter interface{ Start() }
	// Updater runs once per outer frame with the wall-clock delta.
	Updater interface{ Update(t Time) }
	// FixedUpdater runs once per fixed step with logical time.
	FixedUpdater interface{ FixedUpdate(t Time) }
	// Renderable runs once per frame during render dispatch, started or not.
	Renderable interface{ Render(ctx RenderContext) }
	// GUIDrawer runs once per frame after Render.
	GUIDrawer interface{ DrawGUI(t Time) }
	// Destroyer runs once when the component or its entity is removed.
	Destroyer interface{ OnDestroy() }
)

// Time is passed to Update, FixedUpdate and DrawGUI. Delta and Total are in
// seconds. For fixed steps Total is step count times the step size.
type Time struct {
	Delta float64
	Total float64
	Frame uint64
}

// RenderContext carries the current camera transforms to Render hooks.
type RenderContext struct {
	View       mathx.Mat4
	Projection mathx.Mat4
	Time       Time
}

// ViewProjection returns Projection * View.
func (c RenderContext) ViewProjection() mathx.Mat4 {
	return c.Projection.Mul(c.View)
}

type hookSet uint8

const (
	hookStart hookSet = 1 << iota
	hookUpdate
	hookFixedUpdate
	hookRender
	hookGUI
	hookDestroy
)

const lifecycleHooks = hookStart | hookUpdate | hookFixedUpdate | hookRender | hookGUI

func hooksOf(c Component) hookSet {
	var h hookSet
	if _, ok := c.(Starter); ok {
		h |= hookStart
	}
	if _, ok := c.(Updater); ok {
		h |= hookUpdate
	}
	if _, ok := c.(FixedUpdater); ok {
		h |= hookFixedUpdate
	}
	if _, ok := c.(Renderable); ok {
		h |= hookRender
	}
	if _, ok := c.(GUIDrawer); ok {
		h |= hookGUI
	}
	if _, ok := c.(Destroyer); ok {
		h |= hookDestroy
	}
	return h
}

func (h hookSet) has(f hookSet) bool { return h&f != 0 }
