// Package events provides the in-process pub/sub the booking core uses to
// surface user-facing outcomes (the toast/notification analog).
package events

import (
	"sync"
	"time"

	"rezerv/internal/model"
)

// Type identifies a booking outcome.
type Type string

const (
	TypeBookingSaved   Type = "booking.saved"
	TypeBookingDeleted Type = "booking.deleted"
	TypeBookingFailed  Type = "booking.failed"
	TypeWarning        Type = "warning"
	TypeAuthRequired   Type = "auth.required"
)

// Event is a lightweight domain event.
type Event struct {
	Type      Type
	Message   string
	Booking   *model.Booking
	Err       error
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(Event)

// Bus fans events out to subscribers. Handlers run synchronously; the caller
// decides the concurrency model.
type Bus struct {
	subscribers map[Type][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], h)
}

// SubscribeAll registers a handler for every known event type.
func (b *Bus) SubscribeAll(h Handler) {
	for _, t := range []Type{TypeBookingSaved, TypeBookingDeleted, TypeBookingFailed, TypeWarning, TypeAuthRequired} {
		b.Subscribe(t, h)
	}
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	for _, handler := range handlers {
		handler(event)
	}
}
