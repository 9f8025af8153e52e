// Package spsc implements the sequenced single-producer/single-consumer
// queue used as the primary intra-process hot channel (gateway<->shard,
// transport<->engine). Grounded on the original's
// common/src/containers/sequenced_spsc.hpp, adapted from the teacher's
// disruptor.RingBuffer (internal/disruptor/ring_buffer.go) which already
// implements the cache-aligned-slot, per-slot-sequence-number shape —
// generalized here from disruptor's multi-producer CAS sequencer down to
// the plain SPSC case spec.md §4.3 calls for (single writer, single
// reader, fixed inline payload, no CAS needed).
package spsc

import (
	"sync/atomic"
)

// MaxInline is the largest payload, in bytes, a single slot can hold.
// Messages larger than this are rejected at Write time, matching the
// original's MAX_DATA_SIZE=52.
const MaxInline = 52

// slot is one ring entry. The 64-byte alignment keeps adjacent slots on
// separate cache lines so producer and consumer never false-share.
type slot struct {
	seq  atomic.Uint64
	size uint32
	data [MaxInline]byte
	_    [64 - 8 - 4 - MaxInline%64]byte // pad toward a cache line; best-effort
}

// Queue is a fixed-capacity ring of N slots, N a power of two.
type Queue struct {
	mask     uint64
	slots    []slot
	writeIdx uint64 // producer-only
	readIdx  uint64 // consumer-only
}

// New creates a Queue with n slots (n must be a power of two).
func New(n int) *Queue {
	if n <= 0 || (n&(n-1)) != 0 {
		panic("spsc: capacity must be a power of two")
	}
	q := &Queue{
		mask:  uint64(n - 1),
		slots: make([]slot, n),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Write copies src into the next slot. Returns false if the slot isn't
// yet free (the queue is full) or src exceeds MaxInline.
func (q *Queue) Write(src []byte) bool {
	if len(src) > MaxInline {
		return false
	}
	s := &q.slots[q.writeIdx&q.mask]
	if s.seq.Load() != q.writeIdx {
		return false
	}
	copy(s.data[:], src)
	s.size = uint32(len(src))
	s.seq.Store(q.writeIdx + 1)
	q.writeIdx++
	return true
}

// Read copies the next available message into dst, returning the number
// of bytes copied, or 0 if nothing is ready. Returns -1 if dst is too
// small for the pending message (a logic error: callers size dst to
// MaxInline).
func (q *Queue) Read(dst []byte) int {
	n := uint64(len(q.slots))
	s := &q.slots[q.readIdx&q.mask]
	if s.seq.Load() != q.readIdx+1 {
		return 0
	}
	if uint32(len(dst)) < s.size {
		return -1
	}
	copy(dst, s.data[:s.size])
	size := int(s.size)
	s.seq.Store(q.readIdx + n)
	q.readIdx++
	return size
}

// Len reports the capacity of the queue (number of slots).
func (q *Queue) Len() int { return len(q.slots) }
