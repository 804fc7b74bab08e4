// Package queue implements the per-peer/per-link frame queue the
// writer tasks of spec.md §5 drain: a BGP peer's writer drains a
// per-peer MPSC of encoded UPDATE/KEEPALIVE/NOTIFICATION frames.
// IS-IS flooding does not use it: isis.Flooder hands each encoded
// LSP and PSNP straight to its send callback.
package queue

import "sync"

// Queue contains an ordered list of byte slices, safe for one
// producer goroutine (Push) and one consumer goroutine (Pop) as
// spec.md §5's reader/writer task split requires.
type Queue struct {
	mu    sync.Mutex
	items [][]byte
}

// New creates a new empty Queue.
func New() *Queue {
	return &Queue{items: make([][]byte, 0, 1024)}
}

// Push appends item to the tail of the queue.
func (q *Queue) Push(item []byte) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Pop removes and returns the item at the head of the queue. It
// returns nil if the queue is empty; callers must check Length (or
// the ok-returning TryPop) before assuming a non-nil result is
// meaningful for an intentionally-empty frame.
func (q *Queue) Pop() []byte {
	item, _ := q.TryPop()
	return item
}

// TryPop removes and returns the head item, reporting false if the
// queue was empty.
func (q *Queue) TryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Length returns the number of byte slices currently queued.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
