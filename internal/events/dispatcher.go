package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler reacts to one auth or account event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans auth events out to in-process subscribers such as the audit log and the broker relay.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	// SubscribeAll registers handler for every type in AllEventTypes.
	SubscribeAll(handler EventHandler)
}

type inMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a synchronous dispatcher. Login and OTP flows publish through it
// on the request goroutine.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{handlers: make(map[EventType][]EventHandler)}
}

// Publish runs every handler for event.Type in subscription order. A failing handler does not
// stop the others; failures come back joined, each tagged with the event type and id.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, handle := range handlers {
		if err := handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", event.Type, event.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *inMemoryDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, eventType := range AllEventTypes {
		d.handlers[eventType] = append(d.handlers[eventType], handler)
	}
}
