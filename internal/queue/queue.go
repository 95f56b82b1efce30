// Package queue provides the hand-off between ingestion workers and the
// batch processor.
package queue

import (
	"sync"
)

// Queue is an unbounded FIFO queue safe for use by multiple producers and
// consumers.
//
// Push after Close is accepted so that records in flight during shutdown
// are not dropped; consumers keep draining until the queue is empty.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	closed bool
}

// New creates an empty queue
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and wakes at most one blocked consumer
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// BlockingPop waits until an item is available or the queue is closed.
// It returns false only when the queue is closed and empty.
func (q *Queue[T]) BlockingPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.len() == 0 && !q.closed {
		q.cond.Wait()
	}
	return q.pop()
}

// TryPop returns the head item without waiting
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Close marks the queue closed and wakes every blocked consumer
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Closed reports whether Close has been called
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len()
}

func (q *Queue[T]) len() int {
	return len(q.items) - q.head
}

// pop must be called with mu held
func (q *Queue[T]) pop() (T, bool) {
	var zero T
	if q.len() == 0 {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// compact once the consumed prefix dominates the backing array
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 1024 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return item, true
}
