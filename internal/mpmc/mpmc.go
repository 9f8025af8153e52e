// Package mpmc implements a bounded Vyukov multi-producer/multi-consumer
// queue of pointer-sized values, used wherever multiple producers must
// share one consumer (telemetry records, the stream bus's per-type
// rings). Grounded on the classic Dmitry Vyukov bounded MPMC algorithm
// referenced directly by spec.md §4.4, following the same per-slot
// sequence-number CAS shape the teacher's disruptor package already uses
// for its single-producer sequencer (internal/disruptor/sequencer.go).
package mpmc

import "sync/atomic"

type cell struct {
	seq   atomic.Uint64
	value any
}

// Queue is a bounded ring of capacity n (n a power of two). Producers CAS
// the tail cursor, consumers CAS the head cursor; each slot's own
// sequence number arbitrates readiness without any lock.
type Queue struct {
	mask  uint64
	cells []cell
	head  atomic.Uint64
	tail  atomic.Uint64
}

// New creates a Queue with n slots (n must be a power of two).
func New(n int) *Queue {
	if n <= 0 || (n&(n-1)) != 0 {
		panic("mpmc: capacity must be a power of two")
	}
	q := &Queue{
		mask:  uint64(n - 1),
		cells: make([]cell, n),
	}
	for i := range q.cells {
		q.cells[i].seq.Store(uint64(i))
	}
	return q
}

// Push enqueues v. Returns false if the queue is full.
func (q *Queue) Push(v any) bool {
	var c *cell
	pos := q.tail.Load()
	for {
		c = &q.cells[pos&q.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				goto claimed
			}
			pos = q.tail.Load()
		case diff < 0:
			return false // full
		default:
			pos = q.tail.Load()
		}
	}
claimed:
	c.value = v
	c.seq.Store(pos + 1)
	return true
}

// Pop dequeues a value. Returns ok=false if the queue is empty.
func (q *Queue) Pop() (any, bool) {
	var c *cell
	pos := q.head.Load()
	for {
		c = &q.cells[pos&q.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				goto claimed
			}
			pos = q.head.Load()
		case diff < 0:
			return nil, false // empty
		default:
			pos = q.head.Load()
		}
	}
claimed:
	v := c.value
	c.value = nil
	c.seq.Store(pos + q.mask + 1)
	return v, true
}

// Len returns the queue's fixed capacity.
func (q *Queue) Len() int { return len(q.cells) }
