// Package channel provides the unbounded FIFO mailboxes that connect the
// orchestrator with its workers. Sends never block and reads are
// non-blocking drains, so a stalled consumer can only grow memory, never
// stall a producer.
package channel

import "sync"

// Sender provides write access to a mailbox.
type Sender[T any] interface {
	Send(T)
}

// Receiver provides drain access to a mailbox.
type Receiver[T any] interface {
	Drain() []T
	Last() (T, bool)
	Len() int
}

// Channel combines both ends with the ability to discard pending messages.
type Channel[T any] interface {
	Sender[T]
	Receiver[T]
	Clear()
}

// Mailbox is a goroutine-safe unbounded FIFO.
type Mailbox[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{items: make([]T, 0)}
}

// Send appends a message. It never blocks.
func (m *Mailbox[T]) Send(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, v)
}

// Drain removes and returns every queued message in FIFO order.
// Returns nil if the mailbox is empty.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil
	}
	result := m.items
	m.items = make([]T, 0, cap(result))
	return result
}

// Last drains the mailbox and returns only the most recent message.
// Older messages are discarded.
func (m *Mailbox[T]) Last() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	last := m.items[len(m.items)-1]
	clear(m.items)
	m.items = m.items[:0]
	return last, true
}

// Len returns the number of queued messages.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Clear discards every queued message.
func (m *Mailbox[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.items)
	m.items = m.items[:0]
}
