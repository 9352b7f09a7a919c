// Package events is the session-scoped notification channel between
// views. It replaces a page-global event target with an explicit,
// typed observer registry that is injected into every consumer.
package events

import "sync"

// TicketDeleted announces that a ticket was removed, so every mounted
// list drops it from its local copy.
type TicketDeleted struct {
	ID string
}

// Bus delivers events synchronously, in subscriber registration order,
// best-effort: an event published while nothing is subscribed is lost.
type Bus struct {
	mu     sync.Mutex
	nextID int
	order  []int
	subs   map[int]func(TicketDeleted)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(TicketDeleted))}
}

// SubscribeTicketDeleted registers a handler and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (b *Bus) SubscribeTicketDeleted(h func(TicketDeleted)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// PublishTicketDeleted invokes every live handler. Handlers run
// outside the bus lock so they may publish or (un)subscribe freely.
func (b *Bus) PublishTicketDeleted(e TicketDeleted) {
	b.mu.Lock()
	handlers := make([]func(TicketDeleted), 0, len(b.order))
	for _, id := range b.order {
		if h, ok := b.subs[id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}
