package events

import (
	"fmt"
	"sync"
	"time"

	"stepflow/pkg/logging"
)

// Handler receives events. A returned error is logged and otherwise ignored.
type Handler func(Event) error

// Emitter is the publishing side of a Channel, as used by the runner.
type Emitter interface {
	Emit(eventType EventType, evt Event)
}

type subscription struct {
	id      uint64
	all     bool
	typ     EventType
	handler Handler
}

// Channel is a typed publish/subscribe hub for lifecycle events.
//
// Handlers run synchronously on the emitting goroutine in subscription order.
// A handler that returns an error or panics is logged and skipped; the
// emitter never sees the failure.
type Channel struct {
	mu        sync.RWMutex
	nextID    uint64
	subs      []subscription
	templates *MessageTemplateEngine
	now       func() time.Time
}

// NewChannel creates an empty Channel using the default message templates.
func NewChannel() *Channel {
	return &Channel{
		templates: NewMessageTemplateEngine(),
		now:       time.Now,
	}
}

// Templates returns the engine used to render missing messages.
func (c *Channel) Templates() *MessageTemplateEngine {
	return c.templates
}

// Subscribe registers handler for one event type. The returned function
// removes the subscription.
func (c *Channel) Subscribe(eventType EventType, handler Handler) func() {
	return c.add(subscription{typ: eventType, handler: handler})
}

// SubscribeAll registers handler for every event type.
func (c *Channel) SubscribeAll(handler Handler) func() {
	return c.add(subscription{all: true, handler: handler})
}

// SubscribeQueue returns a buffered channel receiving every event. When the
// buffer is full new events are dropped with a warning rather than blocking
// the emitter. The cancel function unsubscribes and closes the channel.
func (c *Channel) SubscribeQueue(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	queue := make(chan Event, buffer)

	var mu sync.Mutex
	closed := false

	unsubscribe := c.SubscribeAll(func(evt Event) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}
		select {
		case queue <- evt:
		default:
			logging.Warn("EventChannel", "Subscriber queue full, dropping %s for %s", evt.Type, evt.WorkflowID)
		}
		return nil
	})

	cancel := func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(queue)
		}
	}
	return queue, cancel
}

func (c *Channel) add(sub subscription) func() {
	c.mu.Lock()
	c.nextID++
	sub.id = c.nextID
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(sub.id) })
	}
}

func (c *Channel) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sub := range c.subs {
		if sub.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers evt to every matching subscriber. The event's Type is set to
// eventType; Timestamp and Message are filled in when empty.
func (c *Channel) Emit(eventType EventType, evt Event) {
	evt.Type = eventType
	if evt.Timestamp.IsZero() {
		evt.Timestamp = c.now()
	}
	if evt.Message == "" {
		evt.Message = c.templates.Render(evt)
	}

	c.mu.RLock()
	subs := make([]subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.all || sub.typ == eventType {
			subs = append(subs, sub)
		}
	}
	c.mu.RUnlock()

	for _, sub := range subs {
		c.deliver(sub, evt)
	}
}

func (c *Channel) deliver(sub subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("EventChannel", fmt.Errorf("panic: %v", r), "Handler %d panicked on %s", sub.id, evt.Type)
		}
	}()

	if err := sub.handler(evt); err != nil {
		logging.Error("EventChannel", err, "Handler %d failed on %s", sub.id, evt.Type)
	}
}

// Len returns the number of active subscriptions.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
