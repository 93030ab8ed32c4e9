package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

const numEventKinds = int(EventHoverLeave) + 1

type eventTable [numEventKinds]listeners[Event]

func (t *eventTable) clear() {
	for i := range t {
		t[i].clear()
	}
}

// Actor is a renderable leaf of the scene graph.
type Actor struct {
	NodeBase

	Geometry *Geometry `copier:"-"`
	Effect   *Effect   `copier:"-"`

	Pickable   bool
	Clickable  bool
	Hoverable  bool
	Selectable bool
	Selected   bool
	MouseOver  bool
	RenderRank int

	// BBox is an optional user supplied local bounding box.
	BBox *AABB `copier:"-"`

	// World bounds, refreshed by Scene.Commit.
	WorldAABB *AABB `copier:"-"`

	events eventTable
	bounds boundsStamp
}

// AABB is an axis aligned box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func NewActor(name string, geometry *Geometry, effect *Effect, transform *Transform) *Actor {
	a := &Actor{
		NodeBase:  newNodeBase(name),
		Geometry:  geometry,
		Effect:    effect,
		Pickable:  true,
		Clickable: true,
		Hoverable: true,
	}
	a.Transform = transform
	return a
}

func (a *Actor) node() {}

// On subscribes fn to events of the given kind.
func (a *Actor) On(kind EventKind, fn func(Event)) *Subscription {
	return a.events[kind].add(fn)
}

// Emit delivers ev to the subscribers of ev.Kind.
func (a *Actor) Emit(ev Event) {
	a.events[ev.Kind].emit(ev)
}

// Subscribers returns the number of callbacks registered for kind.
func (a *Actor) Subscribers(kind EventKind) int {
	return a.events[kind].len()
}

// IsDirty reports whether the geometry or transform has pending changes.
func (a *Actor) IsDirty() bool {
	dirty := a.Geometry != nil && a.Geometry.Dirty
	if a.Transform != nil {
		dirty = dirty || a.Transform.Dirty
	}
	return dirty
}

// Update clears the dirty flags of the geometry and transform.
func (a *Actor) Update() {
	a.Geometry.Update()
	a.Transform.Update()
}

// CanPick reports whether the actor takes part in picking.
func (a *Actor) CanPick() bool {
	return a.Pickable && a.Geometry.HasPrimitives()
}

// LocalBounds is BBox when set, the geometry bounds otherwise.
func (a *Actor) LocalBounds() (AABB, bool) {
	if a.BBox != nil {
		return *a.BBox, true
	}
	lo, hi, ok := a.Geometry.Bounds()
	return AABB{Min: lo, Max: hi}, ok
}
