package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type EventKind int

const (
	EventClick EventKind = iota
	EventMove
	EventRelease
	EventHoverEnter
	EventHoverMove
	EventHoverLeave
)

func (k EventKind) String() string {
	switch k {
	case EventClick:
		return "click"
	case EventMove:
		return "move"
	case EventRelease:
		return "release"
	case EventHoverEnter:
		return "hoverEnter"
	case EventHoverMove:
		return "hoverMove"
	case EventHoverLeave:
		return "hoverLeave"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// CarriesHit reports whether events of this kind come with a primitive id,
// hit coordinates and a local ray. Move, release and hoverLeave only carry
// the world ray.
func (k EventKind) CarriesHit() bool {
	return k == EventClick || k == EventHoverEnter || k == EventHoverMove
}

// Event is the payload delivered to actor subscribers.
type Event struct {
	Kind           EventKind
	ID             int
	TUV            mgl32.Vec3
	WorldOrigin    mgl32.Vec3
	WorldDirection mgl32.Vec3
	LocalOrigin    mgl32.Vec3
	LocalDirection mgl32.Vec3
	// Input is the raw pointer event that triggered the transition.
	Input any
	// Viewport is the viewport that emitted the event.
	Viewport any
}

// Subscription is a handle to a registered callback. Cancelling twice is a
// no-op.
type Subscription struct {
	ID     uuid.UUID
	cancel func()
}

func (s *Subscription) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

type listener[T any] struct {
	id uuid.UUID
	fn func(T)
}

// listeners is an ordered callback list. Emission iterates over a snapshot
// so callbacks may cancel subscriptions while being called.
type listeners[T any] struct {
	entries []listener[T]
}

func (l *listeners[T]) add(fn func(T)) *Subscription {
	id := uuid.New()
	l.entries = append(l.entries, listener[T]{id: id, fn: fn})
	return &Subscription{ID: id, cancel: func() { l.remove(id) }}
}

func (l *listeners[T]) remove(id uuid.UUID) {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) emit(v T) {
	snapshot := append([]listener[T](nil), l.entries...)
	for _, e := range snapshot {
		e.fn(v)
	}
}

func (l *listeners[T]) len() int { return len(l.entries) }

func (l *listeners[T]) clear() { l.entries = nil }
