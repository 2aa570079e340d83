// Package stream fans action lifecycle events out to live subscribers such
// as the operations SSE feed.
package stream

import (
	"context"
	"sync"
	"time"

	"bizadmin.org/internal/actiontype"
)

// Event is one dispatched action as seen by subscribers.
type Event struct {
	Type      string    `json:"type"`
	Base      string    `json:"base"`
	Phase     string    `json:"phase"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fan-outs events to all active subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
	now  func() time.Time
}

// New initialises an empty hub.
func New() *Hub {
	return &Hub{
		subs: make(map[int]chan Event),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish fan-outs the event to all subscribers.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Observe publishes a tracked action. It matches actiontype.Listener.
func (h *Hub) Observe(base string, phase actiontype.Phase, a actiontype.Action) {
	h.Publish(Event{
		Type:      a.Type,
		Base:      base,
		Phase:     phase.String(),
		Error:     a.Err,
		Timestamp: h.now().UTC(),
	})
}

// Attach subscribes the hub to every dispatch of t.
func (h *Hub) Attach(t *actiontype.Tracker) {
	t.Listen(h.Observe)
}
