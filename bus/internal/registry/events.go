package registry

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one handler subscribed to an event.
type Subscriber[H comparable] struct {
	ID      string
	Handler H
}

// Events maps an event name to its subscribers in subscription order.
// A handler appears at most once per event.
type Events[H comparable] struct {
	shards []*eventShard[H]
}

type eventShard[H comparable] struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber[H]
}

func NewEvents[H comparable](numShards int) *Events[H] {
	numShards = normalizeShards(numShards)
	shards := make([]*eventShard[H], numShards)
	for i := range shards {
		shards[i] = &eventShard[H]{subs: make(map[string][]Subscriber[H])}
	}
	return &Events[H]{shards: shards}
}

func (e *Events[H]) shardOf(event string) *eventShard[H] {
	return e.shards[indexByHash(event, len(e.shards))]
}

// Subscribe adds h to event and returns its subscription id.
// If h is already subscribed to event, the existing id is returned and added is false.
func (e *Events[H]) Subscribe(event string, h H) (id string, added bool) {
	s := e.shardOf(event)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs[event] {
		if sub.Handler == h {
			return sub.ID, false
		}
	}
	id = uuid.NewString()
	s.subs[event] = append(s.subs[event], Subscriber[H]{ID: id, Handler: h})
	return id, true
}

// Unsubscribe removes the subscription id from event and reports whether it existed.
func (e *Events[H]) Unsubscribe(event, id string) bool {
	s := e.shardOf(event)
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subs[event]
	idx := slices.IndexFunc(subs, func(sub Subscriber[H]) bool { return sub.ID == id })
	if idx < 0 {
		return false
	}
	subs = slices.Delete(slices.Clone(subs), idx, idx+1)
	if len(subs) == 0 {
		delete(s.subs, event)
	} else {
		s.subs[event] = subs
	}
	return true
}

// Handlers returns a snapshot of event's handlers in subscription order.
func (e *Events[H]) Handlers(event string) []H {
	s := e.shardOf(event)
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.subs[event]
	handlers := make([]H, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.Handler
	}
	return handlers
}

func (e *Events[H]) Count(event string) int {
	s := e.shardOf(event)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.subs[event])
}

func (e *Events[H]) Clear() {
	for _, s := range e.shards {
		s.mu.Lock()
		clear(s.subs)
		s.mu.Unlock()
	}
}
