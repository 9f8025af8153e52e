package slotid

import "testing"

func TestAcquireReleaseRoundTrip(t *testing.T) {
	space := NewSpace(1024)
	pool := NewPool(space, Config{Capacity: space.Capacity(), LocalCache: 64, FreshChunk: 1, ReturnQueue: space.Capacity()})

	id, ok := pool.Acquire()
	if !ok {
		t.Fatal("expected acquire to succeed")
	}
	if space.Gen(id) != 1 {
		t.Fatalf("fresh id must have generation 1, got %d", space.Gen(id))
	}

	idx := space.Index(id)
	pool.Release(id)

	reacquired, ok := pool.Acquire()
	if !ok {
		t.Fatal("expected second acquire to succeed")
	}
	if space.Index(reacquired) != idx {
		t.Fatalf("expected same index %d back, got %d", idx, space.Index(reacquired))
	}
	if space.Gen(reacquired) != 2 {
		t.Fatalf("expected generation bumped to 2, got %d", space.Gen(reacquired))
	}
}

func TestGenerationWrapsSkippingZero(t *testing.T) {
	space := NewSpace(4) // 2 index bits, 30 generation bits -> wrap at 2^30-1
	id := space.Make(1, space.genMaskForTest())
	next := space.NextGen(id)
	if space.Gen(next) != 1 {
		t.Fatalf("expected wrap to generation 1, got %d", space.Gen(next))
	}
}

// genMaskForTest exposes the generation mask for the wrap test without
// widening the public API.
func (s Space) genMaskForTest() uint32 { return s.genMask }

func TestExhaustion(t *testing.T) {
	space := NewSpace(4)
	cfg := Config{Capacity: 4, LocalCache: 8, FreshChunk: 8, ReturnQueue: 4}
	pool := NewPool(space, cfg)

	// capacity 4, index 0 never minted, so only indices 1..3 are available.
	seen := map[uint32]bool{}
	for i := 0; i < 3; i++ {
		id, ok := pool.Acquire()
		if !ok {
			t.Fatalf("expected acquire %d to succeed", i)
		}
		seen[space.Index(id)] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct indices, got %d", len(seen))
	}

	if _, ok := pool.Acquire(); ok {
		t.Fatal("expected pool to be exhausted")
	}
}

func TestIndexBitsPowerOfTwo(t *testing.T) {
	space := NewSpace(256)
	if space.Capacity() != 256 {
		t.Fatalf("expected capacity 256, got %d", space.Capacity())
	}
}
