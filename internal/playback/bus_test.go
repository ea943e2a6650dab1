package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	var got []any
	bus.Subscribe(EventSong, func(p any) { got = append(got, p) })
	bus.Subscribe(EventTime, func(p any) { t.Fatalf("time handler should not see song events") })

	bus.Publish(EventSong, "a")
	bus.Publish(EventSong, "b")

	assert.Equal(t, []any{"a", "b"}, got)
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var order []int
	for i := 0; i < 5; i++ {
		bus.Subscribe(EventState, func(any) { order = append(order, i) })
	}

	bus.Publish(EventState, true)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	calls := 0
	sub := bus.Subscribe(EventRating, func(any) { calls++ })
	require.Equal(t, 1, bus.Count(EventRating))

	bus.Publish(EventRating, nil)
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish(EventRating, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Count(EventRating))
}

func TestHandlerMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	var sub *Subscription
	calls := 0
	sub = bus.Subscribe(EventLyrics, func(any) {
		calls++
		sub.Unsubscribe()
	})

	bus.Publish(EventLyrics, "la")
	bus.Publish(EventLyrics, "la")
	assert.Equal(t, 1, calls)
}

func TestNilSubscriptionUnsubscribe(t *testing.T) {
	var sub *Subscription
	assert.NotPanics(t, sub.Unsubscribe)
}
