package wsclient

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler receives the raw payload of one envelope.
type Handler func(payload json.RawMessage)

// Subscription is the handle returned by AddEventListener; removal goes by
// handle identity, so registering the same function twice yields two
// independent subscriptions that each fire (double invocation is deliberate
// behavior, not a bug to dedupe away).
type Subscription struct {
	event string
	fn    Handler
}

// Listeners maps event-type names to ordered callback lists. Decoupled from
// the transport's connection lifecycle so components can subscribe and
// unsubscribe regardless of whether the socket is currently up.
type Listeners struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

func NewListeners() *Listeners {
	return &Listeners{
		subs: make(map[string][]*Subscription),
	}
}

// Add registers a callback for an event type. Within one type, callbacks
// fire in registration order.
func (l *Listeners) Add(event string, fn Handler) *Subscription {
	sub := &Subscription{event: event, fn: fn}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[event] = append(l.subs[event], sub)
	return sub
}

// Remove deletes a subscription. Removing one that is absent is a no-op.
func (l *Listeners) Remove(sub *Subscription) {
	if sub == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.subs[sub.event]
	for i, s := range list {
		if s == sub {
			l.subs[sub.event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Clear drops every subscription (channel teardown).
func (l *Listeners) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = make(map[string][]*Subscription)
}

// dispatch invokes every callback registered for the event. A panicking
// callback is isolated: it is logged and the remaining callbacks still run.
func (l *Listeners) dispatch(event string, payload json.RawMessage) {
	l.mu.Lock()
	list := make([]*Subscription, len(l.subs[event]))
	copy(list, l.subs[event])
	l.mu.Unlock()

	for _, sub := range list {
		invoke(sub, payload)
	}
}

func invoke(sub *Subscription, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "event", sub.event, "panic", r)
		}
	}()
	sub.fn(payload)
}
