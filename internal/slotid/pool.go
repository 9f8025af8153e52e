package slotid

import "sync/atomic"

// Pool is a lock-free versioned ID allocator: a per-acquirer local stack
// backed by a shared single-producer/single-consumer return queue, with a
// fresh-index frontier for growth. Grounded on the original's
// common/src/id/slot_id_pool.hpp: the acquiring thread drains a bounded
// chunk of the return queue into its local stack on miss, and only falls
// back to minting fresh indices when the return queue itself is empty.
//
// Pool is NOT safe for concurrent Acquire from multiple goroutines — it
// has exactly one acquirer, matching the gateway's single-threaded use.
// Release is safe to call from exactly one other goroutine (single
// producer into the return queue); the LFQ worker bridges the shard's
// release calls back to the gateway's release-owning thread in the full
// pipeline, but Pool itself enforces no such bridging.
type Pool struct {
	space Space

	localStack    []ID
	localTop      int
	localCapacity int

	returnQueue []ID
	returnMask  uint32
	head        atomic.Uint32 // consumer-owned (acquirer), advanced on drain
	tail        atomic.Uint32 // producer-owned (releaser), advanced on release

	freshChunk  uint32
	nextFresh   uint32
	capacity    uint32
}

// Config configures a Pool's internal sizing.
type Config struct {
	Capacity      uint32 // total addressable slots (power of two)
	LocalCache    uint32 // local stack capacity, e.g. 64Ki
	FreshChunk    uint32 // how many fresh indices to mint per refill, e.g. 16Ki
	ReturnQueue   uint32 // shared return-queue capacity (power of two)
}

// DefaultConfig mirrors the original's LOCAL_CACHE_SIZE=65536,
// FRESH_CHUNK_SIZE=16384.
func DefaultConfig(capacity uint32) Config {
	return Config{
		Capacity:    capacity,
		LocalCache:  65536,
		FreshChunk:  16384,
		ReturnQueue: capacity,
	}
}

// NewPool creates a Pool over the given Space. Index 0 is never minted
// fresh (fresh allocation starts at 1) so that the zero ID value stays
// universally invalid regardless of generation bookkeeping bugs.
func NewPool(space Space, cfg Config) *Pool {
	if cfg.ReturnQueue == 0 || (cfg.ReturnQueue&(cfg.ReturnQueue-1)) != 0 {
		panic("slotid: ReturnQueue capacity must be a power of two")
	}
	return &Pool{
		space:         space,
		localStack:    make([]ID, cfg.LocalCache),
		localCapacity: int(cfg.LocalCache),
		returnQueue:   make([]ID, cfg.ReturnQueue),
		returnMask:    cfg.ReturnQueue - 1,
		freshChunk:    cfg.FreshChunk,
		nextFresh:     1,
		capacity:      cfg.Capacity,
	}
}

// Acquire returns a fresh or reused ID with generation >= 1, or ok=false
// if the pool is exhausted (fresh frontier reached capacity and the
// return queue is empty).
func (p *Pool) Acquire() (ID, bool) {
	if p.localTop > 0 {
		p.localTop--
		return p.localStack[p.localTop], true
	}
	return p.refill()
}

// refill drains the return queue into the local stack, then mints fresh
// indices if still empty.
func (p *Pool) refill() (ID, bool) {
	head := p.head.Load()
	tail := p.tail.Load()
	for head != tail && p.localTop < p.localCapacity {
		p.localStack[p.localTop] = p.returnQueue[head&p.returnMask]
		p.localTop++
		head++
	}
	p.head.Store(head)

	if p.localTop == 0 {
		limit := p.nextFresh + p.freshChunk
		if limit > p.capacity {
			limit = p.capacity
		}
		for p.nextFresh < limit && p.localTop < p.localCapacity {
			p.localStack[p.localTop] = p.space.Make(p.nextFresh, 1)
			p.localTop++
			p.nextFresh++
		}
	}

	if p.localTop == 0 {
		return 0, false
	}
	p.localTop--
	return p.localStack[p.localTop], true
}

// Release increments the slot's generation (wrapping 0 to 1, never
// staying at 0) and enqueues it for reuse. Release must not be called
// concurrently with another Release — it is the single producer into the
// return queue.
func (p *Pool) Release(id ID) {
	id = p.space.NextGen(id)
	tail := p.tail.Load()
	p.returnQueue[tail&p.returnMask] = id
	p.tail.Store(tail + 1)
}
