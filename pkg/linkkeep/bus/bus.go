// Package bus is the change bus between the catalog store's mutators and
// everything that projects catalog state (the cache, importers). Events are
// names only; subscribers re-query the store for details.
package bus

import (
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to a published event.
type Handler func()

// Bus delivers named events to subscribers synchronously and in subscription
// order on the publisher's goroutine, which keeps cache refreshes serialized
// with the store mutation that triggered them. A handler panic is recovered
// and logged; it never reaches the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *zap.Logger
}

// New creates an empty bus.
func New(log *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers fn for event. There is no unsubscribe; subscribers
// live as long as the process.
func (b *Bus) Subscribe(event string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], fn)
}

// Publish invokes every handler registered for event, in order.
func (b *Bus) Publish(event string) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event]))
	copy(handlers, b.handlers[event])
	b.mu.RUnlock()

	for _, fn := range handlers {
		b.dispatch(event, fn)
	}
}

func (b *Bus) dispatch(event string, fn Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event", event),
				zap.Any("panic", r))
		}
	}()
	fn()
}
