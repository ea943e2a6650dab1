package playback

import (
	"slices"
	"sync"
)

// Event names a state change emitted by the playback engine
type Event string

const (
	EventSong      Event = "song"
	EventState     Event = "state"
	EventRating    Event = "rating"
	EventLyrics    Event = "lyrics"
	EventShuffle   Event = "shuffle"
	EventRepeat    Event = "repeat"
	EventPlaylists Event = "playlists"
	EventTime      Event = "time"
)

// Events lists every event the bus carries
var Events = []Event{
	EventSong, EventState, EventRating, EventLyrics,
	EventShuffle, EventRepeat, EventPlaylists, EventTime,
}

// Handler receives the new value of a changed piece of state
type Handler func(payload any)

// Subscriber is the subscribe half of the bus
type Subscriber interface {
	Subscribe(event Event, handler Handler) *Subscription
}

// Bus fans state change events out to subscribers.
// Handlers run synchronously on the publishing goroutine, outside the bus lock.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Event]map[uint64]Handler
	nextID   uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Event]map[uint64]Handler),
	}
}

// Subscribe registers handler for event until the returned subscription is cancelled
func (b *Bus) Subscribe(event Event, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[uint64]Handler)
	}
	b.handlers[event][id] = handler

	return &Subscription{bus: b, event: event, id: id}
}

// Publish delivers payload to every handler subscribed to event
func (b *Bus) Publish(event Event, payload any) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.handlers[event]))
	for id := range b.handlers[event] {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[event][id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}

// Count returns the number of live handlers for event
func (b *Bus) Count(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

func (b *Bus) remove(event Event, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers[event], id)
	if len(b.handlers[event]) == 0 {
		delete(b.handlers, event)
	}
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	bus   *Bus
	event Event
	id    uint64
	once  sync.Once
}

// Unsubscribe stops delivery to the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.remove(s.event, s.id)
	})
}
