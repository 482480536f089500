package pipeline

import (
	"sync"

	"doorwatch/internal/monitoring"
)

// EventBus provides pub/sub for detection events
// Subscribers receive events from the tick loop
type EventBus struct {
	subscribers map[*eventSubscription]bool
	order       []*eventSubscription
	mu          sync.RWMutex
}

type eventSubscription struct {
	kindFilter EventKind // Empty means receive all kinds
	channel    chan *Event
	handler    EventHandler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[*eventSubscription]bool),
	}
}

// Subscribe registers a handler for all events
// Returns an unsubscribe function
func (b *EventBus) Subscribe(handler EventHandler) func() {
	return b.add(&eventSubscription{handler: handler})
}

// SubscribeKind registers a handler for a single event kind
// Returns an unsubscribe function
func (b *EventBus) SubscribeKind(kind EventKind, handler EventHandler) func() {
	return b.add(&eventSubscription{kindFilter: kind, handler: handler})
}

// SubscribeChannel returns a channel that receives events
// The channel has the specified buffer size
// Returns the channel and an unsubscribe function
func (b *EventBus) SubscribeChannel(bufferSize int) (<-chan *Event, func()) {
	if bufferSize <= 0 {
		bufferSize = 10
	}

	ch := make(chan *Event, bufferSize)
	sub := &eventSubscription{
		channel: ch,
	}

	b.mu.Lock()
	b.subscribers[sub] = true
	b.order = append(b.order, sub)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[sub]; ok {
			b.remove(sub)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

func (b *EventBus) add(sub *eventSubscription) func() {
	b.mu.Lock()
	b.subscribers[sub] = true
	b.order = append(b.order, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.remove(sub)
		b.mu.Unlock()
	}
}

// remove must be called with b.mu held
func (b *EventBus) remove(sub *eventSubscription) {
	delete(b.subscribers, sub)
	for i, s := range b.order {
		if s == sub {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers in subscription order
func (b *EventBus) Publish(event *Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.order {
		if sub.kindFilter != "" && sub.kindFilter != event.Kind {
			continue
		}

		// Handlers are called synchronously so events reach every
		// subscriber in the order the tick loop decided them.
		if sub.handler != nil {
			sub.handler.OnEvent(event)
		} else if sub.channel != nil {
			select {
			case sub.channel <- event:
			default:
				monitoring.Logf("[EventBus] Subscriber channel full, dropping %s event %s", event.Kind, event.ID)
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes all subscribers and closes channels
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub.channel != nil {
			close(sub.channel)
		}
		delete(b.subscribers, sub)
	}
	b.order = nil
}
