// Package events provides the synchronous typed publish/subscribe bus the
// simulation core uses to surface observable state changes. Dispatch is
// in-subscriber-order and completes before Publish returns; there is no queue.
package events

import "runnervale.ai/internal/protocol"

// Handler receives a published event. Handlers must not panic; the bus does
// not recover on the publisher's behalf.
type Handler func(protocol.Event)

// TypeAll subscribes to every event type.
const TypeAll = "*"

type subscription struct {
	eventType string
	fn        Handler
	removed   bool
}

// Subscription identifies a registered handler for later removal.
type Subscription = *subscription

// Bus dispatches events synchronously. It is not safe for concurrent use;
// the simulation is single-threaded and callers must serialize access with
// tick execution.
type Bus struct {
	subs map[string][]*subscription
}

func NewBus() *Bus {
	return &Bus{subs: map[string][]*subscription{}}
}

// Subscribe registers fn for events of the given type. The returned
// Subscription is the handle for Unsubscribe.
func (b *Bus) Subscribe(eventType string, fn Handler) Subscription {
	s := &subscription{eventType: eventType, fn: fn}
	b.subs[eventType] = append(b.subs[eventType], s)
	return s
}

// Unsubscribe removes a previously registered handler. Safe to call during
// dispatch: a handler removed mid-dispatch is skipped for the current event
// if it has not run yet, and the remaining handlers run exactly once.
func (b *Bus) Unsubscribe(sub Subscription) {
	if sub == nil || sub.removed {
		return
	}
	sub.removed = true
	list := b.subs[sub.eventType]
	for i, s := range list {
		if s == sub {
			b.subs[sub.eventType] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
}

// Publish invokes all current handlers for ev's concrete type, then all
// wildcard handlers, before returning.
func (b *Bus) Publish(ev protocol.Event) {
	b.dispatch(b.subs[ev.EventType()], ev)
	b.dispatch(b.subs[TypeAll], ev)
}

func (b *Bus) dispatch(list []*subscription, ev protocol.Event) {
	// Iterate over a snapshot so handlers may subscribe/unsubscribe freely;
	// the removed flag keeps just-unsubscribed handlers from firing.
	snap := make([]*subscription, len(list))
	copy(snap, list)
	for _, s := range snap {
		if s.removed {
			continue
		}
		s.fn(ev)
	}
}
