package engine

import (
	"sync"

	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
)

// Origin records where a top-level dispatch or cascade step came from.
type Origin string

const (
	// OriginExternal is a caller of Dispatch.
	OriginExternal Origin = "external"
	// OriginEffect is an action synthesized from a completed tool call.
	OriginEffect Origin = "effect"
	// OriginInternal is an action the engine dispatches itself
	// (middleware/register).
	OriginInternal Origin = "internal"
	// OriginRule is an action fired by a matching rule.
	OriginRule Origin = "rule"
)

// request is one unit of work for the Run loop.
type request struct {
	action ir.Action
	origin Origin

	// rule is appended to the rule store before action is processed.
	rule *rules.Rule

	// reply receives the outcome; nil for fire-and-forget requests.
	reply chan outcome
}

type outcome struct {
	result Result
	err    error
}

// requestQueue is a thread-safe FIFO queue of requests.
//
// The queue is unbounded so effect goroutines never block on enqueue.
// A buffered signal channel lets the Run loop wait with context awareness.
type requestQueue struct {
	mu     sync.Mutex
	items  []request
	closed bool
	signal chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		items:  make([]request, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds r to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, r)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front request without blocking.
func (q *requestQueue) TryDequeue() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return request{}, false
	}

	r := q.items[0]
	// Clear the slot so the backing array does not pin payloads.
	q.items[0] = request{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return r, true
}

// Wait returns a channel that signals when requests may be available.
// It is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes waiters. Requests already queued
// can still be dequeued.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drain removes and returns every queued request.
func (q *requestQueue) Drain() []request {
	q.mu.Lock()
	defer q.mu.Unlock()

	rest := q.items
	q.items = nil
	return rest
}

func (q *requestQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
