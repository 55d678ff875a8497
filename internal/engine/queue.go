package engine

import (
	"context"
	"sync"
)

// work is one submitted unit waiting for the loop.
type work struct {
	seq    int64
	name   string
	ctx    context.Context
	fn     Unit
	future *Future
}

// workQueue is a thread-safe FIFO queue of units.
//
// The queue is unbounded so that Submit never blocks the caller before the
// rendezvous on the Future. Thread-safety is required: any goroutine may
// enqueue while the loop dequeues.
//
// The queue uses a channel for signaling so the loop can wait with select
// alongside context cancellation.
type workQueue struct {
	mu     sync.Mutex
	items  []work
	closed bool
	signal chan struct{} // buffered, size 1
}

func newWorkQueue() *workQueue {
	return &workQueue{
		items:  make([]work, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a unit to the back of the queue.
// Returns false if the queue is closed.
func (q *workQueue) Enqueue(w work) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, w)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front unit without blocking.
func (q *workQueue) TryDequeue() (work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return work{}, false
	}

	w := q.items[0]

	// Clear the slot so the context and closure can be collected.
	q.items[0] = work{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return w, true
}

// Wait returns a channel that signals when units may be available.
// The channel is closed by Close.
func (q *workQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *workQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting units and wakes the loop.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Drain removes every remaining unit. Used after the loop exits so that no
// caller stays blocked on a Future that will never complete.
func (q *workQueue) Drain() []work {
	q.mu.Lock()
	defer q.mu.Unlock()

	rest := q.items
	q.items = nil
	return rest
}
