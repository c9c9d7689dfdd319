// Package notify is the in-process publish/subscribe channel for cart events.
package notify

import (
	"sync"

	"storefront-cart/internal/domain"
)

// Broker fans every published event out to all current subscribers, synchronously and
// in subscription order. Handlers must not block; slow observers should hand off to
// their own goroutine and may coalesce.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(domain.Event)
	order  []int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]func(domain.Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broker) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broker) remove(id int) {
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

func (b *Broker) Publish(e domain.Event) {
	b.mu.RLock()
	handlers := make([]func(domain.Event), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Len is the number of active subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Buffer returns a handler that forwards into a channel of size n without blocking the
// publisher. Events arriving while the channel is full are dropped.
func Buffer(n int) (func(domain.Event), <-chan domain.Event) {
	if n < 1 {
		n = 1
	}
	ch := make(chan domain.Event, n)
	return func(e domain.Event) {
		select {
		case ch <- e:
		default:
		}
	}, ch
}

// Coalesce is Buffer(1): readers see "something changed" at least once after any burst.
func Coalesce() (func(domain.Event), <-chan domain.Event) {
	return Buffer(1)
}
