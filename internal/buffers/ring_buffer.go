// Package buffers provides the bounded FIFO buffers that back every capture.
package buffers

import "sync"

// RingBuffer is a fixed-capacity circular buffer.
// Writing past capacity overwrites the oldest entry. Safe for concurrent use.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
	head     int // index of the next write once the buffer is full
}

// NewRingBuffer creates a ring buffer holding at most capacity entries.
// A capacity below one is treated as one.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// WriteOne appends an entry, evicting the oldest one if the buffer is full.
func (rb *RingBuffer[T]) WriteOne(entry T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(rb.entries) < rb.capacity {
		rb.entries = append(rb.entries, entry)
		return
	}
	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % rb.capacity
}

// ReadAll returns a copy of the buffered entries, oldest first.
// The result is never nil so it encodes as an empty JSON array.
func (rb *RingBuffer[T]) ReadAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	result := make([]T, len(rb.entries))
	if len(rb.entries) < rb.capacity {
		copy(result, rb.entries)
		return result
	}
	n := copy(result, rb.entries[rb.head:])
	copy(result[n:], rb.entries[:rb.head])
	return result
}

// Len returns the number of buffered entries.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.entries)
}

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int {
	return rb.capacity
}

// Clear removes all entries.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries = make([]T, 0, rb.capacity)
	rb.head = 0
}
