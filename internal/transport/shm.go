package transport

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/futex"
	"github.com/rishav/hft-engine/internal/spsc"
)

// spinRetriesHot bounds the shared-memory transport's busy-wait on a
// full/empty queue before it gives up synchronously — the transport-level
// analogue of the reactor's SPIN_RETRIES_HOT (spec.md §4.7/§4.9).
const spinRetriesHot = 1000

// SHM is the shared-memory transport (spec.md §4.7): a single mapped
// region laid out as four queues (upstream, downstream, broadcast,
// telemetry), each a sequenced-SPSC payload plus a futex word. Since Go
// has no cross-process shared-memory mapping primitive in the pack's
// dependency set other than golang.org/x/sys/unix.Mmap (already used by
// internal/hugearray for huge-page-backed arrays), this transport reuses
// that same allocation strategy conceptually but, for the in-process
// case spec.md §4.1's core targets (gateway/coordinator/shard all run in
// one process here — only the synthetic client simulates a separate
// attaching endpoint), the four queues are plain internal/spsc.Queue
// values shared by reference rather than mapped from a named file; the
// file-backed variant is a direct extension once a genuinely separate
// client process is introduced (see DESIGN.md's open-question note).
type SHM struct {
	upstream   *spsc.Queue
	downstream *spsc.Queue
	broadcast  *spsc.Queue
	telemetry  *spsc.Queue

	futexes [4]futex.Word
	sleeping [4]atomic.Bool

	log    *zap.Logger
	closed atomic.Bool
}

// Queue identifies one of the four SHM channels.
type Queue int

const (
	QueueUpstream Queue = iota
	QueueDownstream
	QueueBroadcast
	QueueTelemetry
)

func (q Queue) String() string {
	switch q {
	case QueueUpstream:
		return "upstream"
	case QueueDownstream:
		return "downstream"
	case QueueBroadcast:
		return "broadcast"
	case QueueTelemetry:
		return "telemetry"
	default:
		return "unknown"
	}
}

// NewSHM creates an SHM transport with queueSize slots (power of two)
// per channel.
func NewSHM(queueSize int, log *zap.Logger) *SHM {
	if log == nil {
		log = zap.NewNop()
	}
	return &SHM{
		upstream:   spsc.New(queueSize),
		downstream: spsc.New(queueSize),
		broadcast:  spsc.New(queueSize),
		telemetry:  spsc.New(queueSize),
		log:        log,
	}
}

func (s *SHM) queue(q Queue) *spsc.Queue {
	switch q {
	case QueueUpstream:
		return s.upstream
	case QueueDownstream:
		return s.downstream
	case QueueBroadcast:
		return s.broadcast
	case QueueTelemetry:
		return s.telemetry
	default:
		panic(fmt.Sprintf("transport: unknown shm queue %d", q))
	}
}

// AsyncRx implements Transport by reading from the upstream queue — the
// server side's inbound direction. Use RxQueue for the other three
// channels.
func (s *SHM) AsyncRx(buf []byte, cb Callback) { s.AsyncRxQueue(QueueUpstream, buf, cb) }

// AsyncTx implements Transport by writing to the downstream queue — the
// server side's outbound direction. Use TxQueue for the other three
// channels.
func (s *SHM) AsyncTx(b []byte, retries int, cb Callback) {
	s.AsyncTxQueue(QueueDownstream, b, retries, cb)
}

// AsyncRxQueue reads from a specific queue on its own goroutine,
// applying the reactor's staged spin before parking on that queue's
// futex (spec.md §4.9).
func (s *SHM) AsyncRxQueue(q Queue, buf []byte, cb Callback) {
	go func() {
		cb(s.RxQueue(q, buf))
	}()
}

// AsyncTxQueue writes to a specific queue on its own goroutine.
func (s *SHM) AsyncTxQueue(q Queue, b []byte, retries int, cb Callback) {
	go func() {
		cb(s.TxQueue(q, b, retries))
	}()
}

// RxQueue blocks (spin then futex-park) until a message is available on
// q or the transport closes.
func (s *SHM) RxQueue(q Queue, buf []byte) IOResult {
	queue := s.queue(q)
	for spin := 0; ; spin++ {
		if s.closed.Load() {
			return IOResult{Closed: true}
		}
		n := queue.Read(buf)
		if n > 0 {
			return IOResult{N: n, OK: true}
		}
		if n < 0 {
			return IOResult{Err: fmt.Errorf("transport: shm rx buffer too small"), Closed: true}
		}
		if spin < spinRetriesHot {
			continue
		}
		s.park(q)
	}
}

// TxQueue writes b to q, retrying on a full queue up to retries times
// and waking a parked reader on success.
func (s *SHM) TxQueue(q Queue, b []byte, retries int) IOResult {
	queue := s.queue(q)
	for attempt := 0; attempt <= retries; attempt++ {
		if s.closed.Load() {
			return IOResult{Closed: true}
		}
		if queue.Write(b) {
			s.wake(q)
			return IOResult{N: len(b), OK: true}
		}
	}
	return IOResult{WouldBlock: true, Err: fmt.Errorf("transport: shm queue %s full after retries", q)}
}

func (s *SHM) park(q Queue) {
	s.sleeping[q].Store(true)
	futex.Wait(&s.futexes[q], s.futexes[q].Load())
	s.sleeping[q].Store(false)
}

func (s *SHM) wake(q Queue) {
	if s.sleeping[q].Load() {
		s.futexes[q].Add(1)
		futex.Wake(&s.futexes[q], 1)
	}
}

// SyncRx reads from the upstream queue with a spin-only budget (no
// futex parking), for the trusted-path variant spec.md §4.7 describes.
func (s *SHM) SyncRx(buf []byte) IOResult {
	return s.syncRead(QueueUpstream, buf)
}

// SyncTx makes a single attempt to write to the downstream queue.
func (s *SHM) SyncTx(b []byte) IOResult {
	return s.syncWrite(QueueDownstream, b)
}

func (s *SHM) syncRead(q Queue, buf []byte) IOResult {
	queue := s.queue(q)
	deadline := time.Now().Add(time.Millisecond)
	for time.Now().Before(deadline) {
		if s.closed.Load() {
			return IOResult{Closed: true}
		}
		if n := queue.Read(buf); n > 0 {
			return IOResult{N: n, OK: true}
		}
	}
	return IOResult{WouldBlock: true}
}

func (s *SHM) syncWrite(q Queue, b []byte) IOResult {
	queue := s.queue(q)
	if s.closed.Load() {
		return IOResult{Closed: true}
	}
	if queue.Write(b) {
		s.wake(q)
		return IOResult{N: len(b), OK: true}
	}
	return IOResult{WouldBlock: true}
}

// Close marks the transport closed and wakes every parked reader so they
// observe it.
func (s *SHM) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for q := range s.futexes {
		s.futexes[q].Add(1)
		futex.Wake(&s.futexes[q], 1)
	}
	return nil
}
