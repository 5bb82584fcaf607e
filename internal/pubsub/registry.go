package pubsub

import (
	"sync"
	"sync/atomic"

	"tickcast/server/internal/counter"
	"tickcast/server/internal/logging"
)

// DefaultBuffer is the per-subscriber event buffer. A subscriber that falls
// this far behind the tick cadence is evicted rather than blocking delivery.
const DefaultBuffer = 16

// Subscriber is the handle for one open streaming connection. The registry
// owns membership; the owning handler reads Events and unregisters on close.
type Subscriber struct {
	id     string
	events chan counter.TickEvent
}

// NewSubscriber allocates a subscriber with the given identity and buffer.
func NewSubscriber(id string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscriber{id: id, events: make(chan counter.TickEvent, buffer)}
}

// ID reports the identity the subscriber was registered with.
func (s *Subscriber) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Events exposes the delivery channel. The channel is closed when the
// subscriber leaves the registry, whether by Unregister or eviction.
func (s *Subscriber) Events() <-chan counter.TickEvent {
	if s == nil {
		return nil
	}
	return s.events
}

// Registry is the concurrency-safe set of active stream subscribers.
type Registry struct {
	mu         sync.Mutex
	members    map[*Subscriber]struct{}
	broadcasts atomic.Int64
	logger     *logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.L()
	}
	return &Registry{
		members: make(map[*Subscriber]struct{}),
		logger:  logger,
	}
}

// Register adds the subscriber to the active set.
func (r *Registry) Register(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	r.members[sub] = struct{}{}
	r.mu.Unlock()
}

// Unregister removes the subscriber and closes its channel. Removing an
// absent subscriber is a no-op.
func (r *Registry) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	if _, ok := r.members[sub]; ok {
		delete(r.members, sub)
		close(sub.events)
	}
	r.mu.Unlock()
}

// Publish delivers the event to a point-in-time snapshot of the registered
// set. Delivery is non-blocking per subscriber: one whose buffer is full is
// evicted so a stalled connection never delays the others.
func (r *Registry) Publish(event counter.TickEvent) {
	r.broadcasts.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.members {
		select {
		case sub.events <- event:
		default:
			delete(r.members, sub)
			close(sub.events)
			r.logger.Warn("subscriber evicted: delivery buffer full",
				logging.String(logging.RequestIDField, sub.id))
		}
	}
}

// Len reports the current number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Broadcasts reports the cumulative number of published events.
func (r *Registry) Broadcasts() int64 {
	return r.broadcasts.Load()
}
