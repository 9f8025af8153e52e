// Package lfqworker bridges a producing goroutine (usually the network
// or gateway thread) to a consumer callable running on its own
// goroutine, per spec.md §4.11. It holds a bounded sequenced SPSC queue
// plus a futex word for parking the consumer once its spin budget is
// exhausted. The park policy is the exact pattern spec.md §9 says to
// keep: busy-spin SPIN_RETRIES_HOT, stage to SPIN_RETRIES_WARM with
// pauses/yields, double-check the queue, set `sleeping`, then
// futex_wait — checked with sequential consistency before the producer
// wakes it, to avoid a lost wakeup.
package lfqworker

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"

	"github.com/rishav/hft-engine/internal/futex"
	"github.com/rishav/hft-engine/internal/spsc"
)

const (
	spinRetriesHot  = 1000
	spinRetriesWarm = 200
)

// Codec serializes T to/from the SPSC queue's inline byte payload.
type Codec[T any] interface {
	Encode(v T, out []byte) int
	Decode(data []byte) T
}

// Worker runs a consumer loop on a dedicated goroutine, fed by Post
// calls from any other goroutine (single producer at a time, matching
// internal/spsc's SPSC contract).
type Worker[T any] struct {
	queue   *spsc.Queue
	codec   Codec[T]
	consume func(T)

	sleeping atomic.Bool
	futexVal futex.Word
	stopFlag atomic.Bool
	done     chan struct{}
}

// New creates a Worker with a queue of the given capacity (power of
// two), a codec for T, and the consumer callback invoked for every
// drained message.
func New[T any](capacity int, codec Codec[T], consume func(T)) *Worker[T] {
	return &Worker[T]{
		queue:   spsc.New(capacity),
		codec:   codec,
		consume: consume,
		done:    make(chan struct{}),
	}
}

// Run runs the reader loop on the calling goroutine, invoking onReady
// once before the loop starts, and returns once Stop is called. Call this from the worker's dedicated
// goroutine.
func (w *Worker[T]) Run(onReady func()) {
	if onReady != nil {
		onReady()
	}
	buf := make([]byte, spsc.MaxInline)
	for {
		if w.stopFlag.Load() {
			return
		}
		n := w.drainOnce(buf)
		if n > 0 {
			continue
		}
		if w.park(buf) {
			return
		}
	}
}

// drainOnce reads and dispatches every currently-available message,
// returning the count consumed.
func (w *Worker[T]) drainOnce(buf []byte) int {
	count := 0
	for {
		n := w.queue.Read(buf)
		if n <= 0 {
			return count
		}
		w.consume(w.codec.Decode(buf[:n]))
		count++
	}
}

// park runs the staged spin-then-futex-wait policy. Returns true if a
// stop was observed while parked.
func (w *Worker[T]) park(buf []byte) bool {
	for i := 0; i < spinRetriesHot; i++ {
		if w.stopFlag.Load() {
			return true
		}
		if w.drainOnce(buf) > 0 {
			return false
		}
	}
	for i := 0; i < spinRetriesWarm; i++ {
		if w.stopFlag.Load() {
			return true
		}
		if w.drainOnce(buf) > 0 {
			return false
		}
		if i%8 == 0 {
			runtime.Gosched()
		}
	}

	// Double-check, then announce sleeping before the final futex_wait so
	// a racing Post sees `sleeping` before it decides whether to Wake.
	if w.drainOnce(buf) > 0 {
		return false
	}
	w.sleeping.Store(true)
	seen := w.futexVal.Load()
	if w.drainOnce(buf) > 0 {
		w.sleeping.Store(false)
		return false
	}
	if w.stopFlag.Load() {
		w.sleeping.Store(false)
		return true
	}
	futex.Wait(&w.futexVal, seen)
	w.sleeping.Store(false)
	return false
}

// Post encodes v and enqueues it. Returns false if the retry budget is
// exhausted (queue stayed full) — callers should treat this as a
// resource-exhaustion InternalError per spec.md §7.
func (w *Worker[T]) Post(v T) bool {
	buf := make([]byte, spsc.MaxInline)
	n := w.codec.Encode(v, buf)
	const postRetries = 64
	ok := false
	for i := 0; i < postRetries; i++ {
		if w.queue.Write(buf[:n]) {
			ok = true
			break
		}
		runtime.Gosched()
	}
	if !ok {
		return false
	}
	if w.sleeping.Load() {
		w.futexVal.Add(1)
		futex.Wake(&w.futexVal, 1)
	}
	return true
}

// Stop flips the stop flag, wakes the parked reader, and returns — it
// does not join; callers coordinate shutdown completion via their own
// signal (e.g. a channel closed at the end of Run).
func (w *Worker[T]) Stop() {
	w.stopFlag.Store(true)
	w.futexVal.Add(1)
	futex.Wake(&w.futexVal, 1)
}

// Uint64Codec is a trivial Codec for bare uint64 payloads (handles,
// slot IDs), used where the message fits in 8 bytes and needs no
// structure.
type Uint64Codec struct{}

func (Uint64Codec) Encode(v uint64, out []byte) int {
	binary.LittleEndian.PutUint64(out, v)
	return 8
}

func (Uint64Codec) Decode(data []byte) uint64 {
	return binary.LittleEndian.Uint64(data)
}
