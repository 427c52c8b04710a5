package utilities

import "sync"

// EventHandler receives the payload of a published event. Handlers run
// on their own goroutines, so they must do their own synchronization.
type EventHandler func(payload interface{})

// EventBus decouples the progress tracker from the content pipeline:
// completing a module publishes an event, and the scheduler listens to
// refill the user's queue. Subscriptions are permanent; there is no
// unsubscribe.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for an event name.
func (eb *EventBus) Subscribe(event string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[event] = append(eb.subscribers[event], handler)
}

// Publish delivers the payload to every subscriber of the event,
// each on its own goroutine. Publishing an event nobody subscribed
// to is a no-op.
func (eb *EventBus) Publish(event string, payload interface{}) {
	eb.mu.RLock()
	handlers := append([]EventHandler(nil), eb.subscribers[event]...)
	eb.mu.RUnlock()

	for _, handler := range handlers {
		go handler(payload)
	}
}

// GlobalEventBus is the process-wide bus wired between the progress
// and scheduler services at startup.
var GlobalEventBus = NewEventBus()
