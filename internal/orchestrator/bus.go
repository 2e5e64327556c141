package orchestrator

import (
	"sync"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not call back into the Orchestrator.
type Handler func(Event)

// EventBus is a typed in-process publish/subscribe hub. Delivery is
// synchronous and best-effort: there is no persistence or replay, and a
// panicking subscriber is isolated so it can never affect scheduling.
type EventBus struct {
	// handlers maps event types to subscriber IDs to handlers.
	handlers map[EventType]map[int]Handler
	// nextID is the next subscriber ID to hand out.
	nextID int
	// mu protects all fields.
	mu sync.RWMutex
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType]map[int]Handler),
	}
}

// Subscribe registers a handler for one event type and returns an
// unsubscribe function. Unsubscribing twice is harmless.
func (b *EventBus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[t] == nil {
		b.handlers[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[t][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[t], id)
	}
}

// Publish delivers the event to every subscriber of its type.
// Subscriber panics are recovered and logged; delivery continues.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, h := range b.handlers[event.Type] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	for _, h := range subs {
		b.deliver(h, event)
	}
}

// deliver invokes one handler with panic isolation.
func (b *EventBus) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			debugLog("[bus] subscriber panic on %s: %v", event.Type, r)
		}
	}()
	h(event)
}

// SubscriberCount returns the number of handlers for an event type.
func (b *EventBus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}
