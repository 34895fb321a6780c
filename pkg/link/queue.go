package link

import "sync/atomic"

// Queue is a bounded outbound message buffer. When full, the oldest
// message is discarded to make room.
type Queue struct {
	ch      chan []byte
	dropped atomic.Int64
}

// NewQueue creates a queue holding up to size messages.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan []byte, size)}
}

// Push enqueues msg and reports whether an older message was dropped.
// Push never blocks.
func (q *Queue) Push(msg []byte) bool {
	dropped := false
	for {
		select {
		case q.ch <- msg:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			dropped = true
			q.dropped.Add(1)
		default:
		}
	}
}

// C exposes the receive side for the sender goroutine.
func (q *Queue) C() <-chan []byte { return q.ch }

// Len returns the number of buffered messages.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns the total number of discarded messages.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Clear discards everything buffered without counting it as dropped.
func (q *Queue) Clear() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
