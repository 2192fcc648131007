package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler consumes one ticket or crew event.
type EventHandler func(context.Context, Event) error

// Dispatcher is the in-process bus the services publish to once a ticket
// change has been committed. Subscribers are the sync worker and tests.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	SubscribeAll(handler EventHandler, eventTypes ...EventType)
}

type bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a synchronous bus. Publish returns after every
// handler for the event type has run.
func NewInMemoryDispatcher() Dispatcher {
	return &bus{handlers: make(map[EventType][]EventHandler)}
}

// Publish runs the handlers in subscription order. A failing or panicking
// handler does not stop the others: the state change behind the event is
// already stored, so every subscriber still gets its copy. Failures come back
// joined, each tagged with the event type and ticket.
func (b *bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := deliver(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s for ticket %s: %w", event.Type, event.TicketID, err))
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe adds a handler for one event type.
func (b *bus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll adds handler for each listed type, or for AllTicketEvents when
// none are given.
func (b *bus) SubscribeAll(handler EventHandler, eventTypes ...EventType) {
	if len(eventTypes) == 0 {
		eventTypes = AllTicketEvents
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	}
}
