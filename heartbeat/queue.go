// Package heartbeat implements the heartbeat channel (spec.md §4.6, C8): a
// single unbounded queue consumed by one goroutine that forwards encoded
// heartbeats to the bridge's fire-and-forget recordActivityHeartbeat call.
package heartbeat

import (
	"sync"

	"github.com/tailored-agentic-units/worker-core/core/proto"
)

// Queue is an unbounded FIFO of pending heartbeats. Unlike
// hub.MessageChannel[T] (bounded, backpressure-producing by design),
// Enqueue here must never block the activity goroutine that calls it
// (spec.md §4.6: "single unbounded queue"), so it grows a slice under a
// mutex and signals a single waiting consumer instead of sending on a
// fixed-capacity channel.
type Queue struct {
	mu     sync.Mutex
	items  []proto.Heartbeat
	signal chan struct{}
	closed bool
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Enqueue appends a heartbeat. No-op once Close has been called, since
// Close is only called from DRAINED, at which point there can be no
// in-flight activities left to heartbeat (spec.md §4.6).
func (q *Queue) Enqueue(h proto.Heartbeat) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, h)
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// drain pops every currently queued heartbeat, or reports that the queue is
// closed and empty.
func (q *Queue) drain() ([]proto.Heartbeat, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, q.closed
	}
	items := q.items
	q.items = nil
	return items, false
}

// Close marks the queue closed. Safe to call once the worker reaches
// DRAINED; Consumer.Run's loop exits after forwarding anything already queued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
