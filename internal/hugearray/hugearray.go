// Package hugearray provides fixed-capacity, huge-page-backed storage for
// the hot-path arrays (order records, order book sides). Grounded on the
// original's common/src/utils/huge_array.hpp concept and, for the actual
// mmap/madvise/mlock plumbing, on golang.org/x/sys/unix as carried
// (indirectly) by every repo in the retrieval pack.
//
// Array[T] is move-only in spirit: callers get a fixed-length slice view
// and are expected to index it directly (indices come from a slotid.Pool,
// so bounds are trusted on the hot path — no bounds checks are added
// beyond what Go's slice indexing already performs).
package hugearray

// Flags enumerate the allocation hints requested for an Array's backing
// memory, matching the "alloc(size, align, flags)" abstraction called for
// in spec.md's design notes.
type Flags uint8

const (
	// FlagHuge requests transparent huge pages via madvise(MADV_HUGEPAGE).
	FlagHuge Flags = 1 << iota
	// FlagLock requests the mapping be locked in RAM via mlock, so it is
	// never paged out.
	FlagLock
	// FlagPrefault requests madvise(MADV_WILLNEED) to fault pages in
	// immediately rather than lazily on first touch.
	FlagPrefault
)

// DefaultFlags is what the order-record table and book sides use: locked,
// huge-page-backed, and pre-faulted so the first order of the session
// doesn't pay a page-fault tax.
const DefaultFlags = FlagHuge | FlagLock | FlagPrefault

// Array is a fixed-size array of T backed by a single allocation. T must
// be a trivial, fixed-size value type — no pointers, no maps, nothing the
// Go GC would need to scan per-element on the hot path.
type Array[T any] struct {
	slice []T
	raw   rawMapping
}

// New allocates an Array of n elements of T with the requested Flags. On
// Linux the array is an anonymous mmap: madvise/mlock hints that fail are
// ignored (never fatal), but a failed mmap is returned as an error. On
// other platforms New uses a plain GC-managed slice and applies no hints.
func New[T any](n int, flags Flags) (*Array[T], error) {
	raw, slice, err := allocate[T](n, flags)
	if err != nil {
		return nil, err
	}
	return &Array[T]{slice: slice, raw: raw}, nil
}

// Len returns the fixed capacity of the array.
func (a *Array[T]) Len() int { return len(a.slice) }

// At returns a pointer to element i for in-place mutation. No bounds
// check beyond Go's native slice indexing panic — callers pass indices
// derived from a slotid.Pool, which are already bounds-guaranteed by
// construction.
func (a *Array[T]) At(i uint32) *T { return &a.slice[i] }

// Slice exposes the full backing slice for bulk iteration.
func (a *Array[T]) Slice() []T { return a.slice }

// Close releases the backing mapping. Safe to call once; a no-op for the
// plain-slice fallback.
func (a *Array[T]) Close() error { return release(a.raw) }
