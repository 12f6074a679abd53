// Package events buffers world events between producers and the tick loop.
package events

import (
	"sync"

	"github.com/racerl/racecore/internal/queue"
	"github.com/racerl/racecore/pkg/core"
)

// Queue collects world events from any goroutine and hands them to the
// environment once per tick. Events carrying a non-zero ContactID are
// accepted at most once per episode.
type Queue struct {
	pending *queue.Queue[core.WorldEvent]

	mu   sync.Mutex
	seen map[uint64]struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		pending: queue.New[core.WorldEvent](),
		seen:    make(map[uint64]struct{}),
	}
}

// Push enqueues ev and reports whether it was accepted. Events with an
// unknown kind or an already seen ContactID are dropped.
func (q *Queue) Push(ev core.WorldEvent) bool {
	if !ev.Kind.Valid() {
		return false
	}
	if ev.ContactID != 0 {
		q.mu.Lock()
		if _, dup := q.seen[ev.ContactID]; dup {
			q.mu.Unlock()
			return false
		}
		q.seen[ev.ContactID] = struct{}{}
		q.mu.Unlock()
	}
	q.pending.Push(ev)
	return true
}

// Drain returns every pending event in arrival order.
func (q *Queue) Drain() []core.WorldEvent {
	return q.pending.Drain()
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return q.pending.Len()
}

// Reset forgets the contacts seen so far and discards pending events.
// It is called when a new episode starts.
func (q *Queue) Reset() {
	q.mu.Lock()
	clear(q.seen)
	q.mu.Unlock()
	q.pending.Clear()
}
