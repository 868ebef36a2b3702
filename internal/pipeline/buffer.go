package pipeline

import (
	"sync"

	"aggregator/internal/model"
)

// Acker acknowledges a single broker delivery. amqp091.Delivery satisfies
// it; tests use a fake.
type Acker interface {
	Ack(multiple bool) error
}

// Item is one buffered (delivery handle, validated event) pair.
type Item struct {
	Ack   Acker
	Event model.Validated
}

// Buffer is the unbounded FIFO for one event type. The consumer callback
// appends, the scheduler drains; the mutex makes a drain observe a complete
// snapshot. There is no cap; sustained write failure grows the buffer, which
// shows up in the buffered-items counter.
type Buffer struct {
	mu    sync.Mutex
	items []Item
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(ack Acker, ev model.Validated) {
	b.mu.Lock()
	b.items = append(b.items, Item{Ack: ack, Event: ev})
	b.mu.Unlock()
}

// DrainAll atomically empties the buffer and returns its prior contents.
// Appends racing with a drain land in the next batch, never the one being
// drained.
func (b *Buffer) DrainAll() []Item {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()
	return items
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	n := len(b.items)
	b.mu.Unlock()
	return n
}
