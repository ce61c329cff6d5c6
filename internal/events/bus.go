package events

import (
	"sync"
	"time"
)

// Type identifies a category of system event
type Type string

const (
	TypeLoopStarted      Type = "loop.started"
	TypeLoopStopped      Type = "loop.stopped"
	TypeLoopStateChanged Type = "loop.state_changed"
	TypeEventDetected    Type = "event.detected"
	TypeActionDispatched Type = "action.dispatched"
	TypeCycleSkipped     Type = "cycle.skipped"
	TypeCharacterUpdated Type = "character.updated"
	TypeError            Type = "error"
)

// Event is a system notification with metadata
type Event struct {
	Type      Type
	Source    string
	Timestamp time.Time
	Data      map[string]interface{}
}

// Handler processes a delivered event
type Handler func(Event)

// SubscriptionID identifies a subscription
type SubscriptionID int64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is an in-process pub/sub channel between the automation loop and its
// observers (GUI, logging). Delivery happens on a dedicated goroutine so
// observers never block the loop.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]subscription
	nextID      SubscriptionID

	queue  chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewBus creates a bus with the given queue capacity and starts delivery
func NewBus(bufferSize int) *Bus {
	b := &Bus{
		subscribers: make(map[Type][]subscription),
		queue:       make(chan Event, bufferSize),
		stopCh:      make(chan struct{}),
		nextID:      1,
	}
	b.wg.Add(1)
	go b.deliver()
	return b
}

// Subscribe registers a handler for one event type
func (b *Bus) Subscribe(t Type, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[t] = append(b.subscribers[t], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription by ID
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				b.subscribers[t] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish queues an event for delivery. When the queue is full the event
// is dropped rather than blocking the publisher.
func (b *Bus) Publish(t Type, source string, data map[string]interface{}) {
	evt := Event{
		Type:      t,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
	select {
	case b.queue <- evt:
	default:
		// Observers are best-effort; the loop must never stall on them
	}
}

// Stop shuts down delivery. Queued events are drained first.
func (b *Bus) Stop() {
	b.once.Do(func() {
		close(b.stopCh)
		b.wg.Wait()
	})
}

func (b *Bus) deliver() {
	defer b.wg.Done()
	for {
		select {
		case evt := <-b.queue:
			b.dispatch(evt)
		case <-b.stopCh:
			for {
				select {
				case evt := <-b.queue:
					b.dispatch(evt)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(evt Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[evt.Type]))
	copy(subs, b.subscribers[evt.Type])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(evt)
	}
}
