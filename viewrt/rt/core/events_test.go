package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionCancel(t *testing.T) {
	a := NewActor("a", nil, nil, nil)
	var got []string
	s1 := a.On(EventHoverEnter, func(ev Event) { got = append(got, "first "+ev.Kind.String()) })
	a.On(EventHoverEnter, func(ev Event) { got = append(got, "second") })
	a.On(EventRelease, func(ev Event) { got = append(got, "release") })

	a.Emit(Event{Kind: EventHoverEnter, ID: 3})
	assert.Equal(t, []string{"first hoverEnter", "second"}, got)

	s1.Cancel()
	s1.Cancel()
	got = nil
	a.Emit(Event{Kind: EventHoverEnter})
	assert.Equal(t, []string{"second"}, got)
	assert.Equal(t, 1, a.Subscribers(EventHoverEnter))
	assert.NotEqual(t, s1.ID.String(), "")
}

func TestCancelDuringEmit(t *testing.T) {
	a := NewActor("a", nil, nil, nil)
	calls := 0
	var s *Subscription
	s = a.On(EventClick, func(Event) {
		calls++
		s.Cancel()
	})
	a.On(EventClick, func(Event) { calls++ })

	a.Emit(Event{Kind: EventClick})
	a.Emit(Event{Kind: EventClick})
	assert.Equal(t, 3, calls)
}

func TestEventKindCarriesHit(t *testing.T) {
	assert.True(t, EventClick.CarriesHit())
	assert.True(t, EventHoverMove.CarriesHit())
	assert.False(t, EventMove.CarriesHit())
	assert.False(t, EventHoverLeave.CarriesHit())
	assert.Equal(t, "EventKind(42)", EventKind(42).String())
}
