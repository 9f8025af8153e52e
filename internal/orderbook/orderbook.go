// Package orderbook implements the price-ordered order book: two
// huge-page-backed arrays (bids, asks) organized as binary heaps, with a
// price-time match loop run after every accepted add. This replaces the
// teacher's red-black-tree-plus-FIFO-queue book (formerly orderbook.go,
// pricelevel.go, rbtree.go in this package) with the array design
// spec.md §4.15 and §9's design note call for: a hand-rolled sift
// up/down over a flat array rather than a generic priority-queue
// abstraction, so the "push then match" ordering stays fully explicit
// and the element type stays trivially copyable.
package orderbook

import (
	"fmt"

	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/hugearray"
	"github.com/rishav/hft-engine/internal/slotid"
	"github.com/rishav/hft-engine/internal/wire"
)

// InvalidBookID is the zero value every OrderRecord starts with before a
// shard assigns a real book ID.
const InvalidBookID uint32 = 0

// InternalOrder is the shard-local representation of a resting order.
type InternalOrder struct {
	SystemID uint32
	BookID   uint32
	Quantity uint32
	Price    uint32
}

// PartialFill reduces Quantity by q, clamping at zero.
func (o *InternalOrder) PartialFill(q uint32) {
	if q >= o.Quantity {
		o.Quantity = 0
		return
	}
	o.Quantity -= q
}

// IsFilled reports whether the order has no quantity left.
func (o *InternalOrder) IsFilled() bool { return o.Quantity == 0 }

// StatusSink receives InternalOrderStatus events as the book emits them.
type StatusSink interface {
	Emit(domain.InternalOrderStatus)
}

// SinkFunc adapts a plain function to StatusSink.
type SinkFunc func(domain.InternalOrderStatus)

func (f SinkFunc) Emit(s domain.InternalOrderStatus) { f(s) }

// side is one half of the book: a fixed-capacity array heap plus an
// index from system ID to the order's current heap position, kept
// correct across every swap so cancellation by system ID is O(log n) —
// the "side-and-index" lookup spec.md §9 open question 1 calls for.
type side struct {
	orders   *hugearray.Array[InternalOrder]
	posBySys map[uint32]int
	count    int
	less     func(a, b InternalOrder) bool // true if a should sit closer to the root than b
}

func newSide(capacity int, less func(a, b InternalOrder) bool) (*side, error) {
	arr, err := hugearray.New[InternalOrder](capacity, hugearray.DefaultFlags)
	if err != nil {
		return nil, err
	}
	return &side{
		orders:   arr,
		posBySys: make(map[uint32]int, capacity),
		less:     less,
	}, nil
}

func (s *side) capacity() int { return s.orders.Len() }
func (s *side) full() bool    { return s.count >= s.capacity() }
func (s *side) empty() bool   { return s.count == 0 }

func (s *side) top() *InternalOrder {
	if s.empty() {
		return nil
	}
	return s.orders.At(0)
}

func (s *side) set(i int, v InternalOrder) {
	*s.orders.At(uint32(i)) = v
	s.posBySys[v.SystemID] = i
}

func (s *side) get(i int) InternalOrder { return *s.orders.At(uint32(i)) }

func (s *side) swap(i, j int) {
	a, b := s.get(i), s.get(j)
	s.set(i, b)
	s.set(j, a)
}

// push inserts v at the end and sifts it up. Caller must have already
// checked !full().
func (s *side) push(v InternalOrder) {
	i := s.count
	s.set(i, v)
	s.count++
	s.siftUp(i)
}

// pop removes the root (best price), sifting the last element down into
// its place.
func (s *side) pop() {
	last := s.count - 1
	delete(s.posBySys, s.get(0).SystemID)
	if last > 0 {
		s.set(0, s.get(last))
		s.count = last
		s.siftDown(0)
	} else {
		s.count = 0
	}
}

// remove deletes the order at heap index i (used for cancel), replacing
// it with the last element and re-heapifying from that point.
func (s *side) remove(i int) {
	last := s.count - 1
	delete(s.posBySys, s.get(i).SystemID)
	if i == last {
		s.count = last
		return
	}
	s.set(i, s.get(last))
	s.count = last
	s.siftDown(i)
	s.siftUp(i)
}

func (s *side) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !s.less(s.get(i), s.get(parent)) {
			return
		}
		s.swap(i, parent)
		i = parent
	}
}

func (s *side) siftDown(i int) {
	for {
		left, right := 2*i+1, 2*i+2
		best := i
		if left < s.count && s.less(s.get(left), s.get(best)) {
			best = left
		}
		if right < s.count && s.less(s.get(right), s.get(best)) {
			best = right
		}
		if best == i {
			return
		}
		s.swap(i, best)
		i = best
	}
}

// OrderBook is one ticker's two-sided book.
type OrderBook struct {
	Ticker    wire.Ticker
	bids      *side // max-heap by price
	asks      *side // min-heap by price
	bookIDs   *slotid.Pool
	bookSpace slotid.Space
}

// Config sizes an OrderBook's backing arrays and book-ID space.
type Config struct {
	SideCapacity int    // per-side array capacity
	BookIDSpace  uint32 // book-ID namespace capacity (spec.md §3: 131072)
}

// DefaultConfig matches spec.md §3's book-ID capacity of 131072, split
// evenly across both sides.
func DefaultConfig() Config {
	return Config{SideCapacity: 65536, BookIDSpace: 131072}
}

// New creates an OrderBook for ticker with the given Config.
func New(ticker wire.Ticker, cfg Config) (*OrderBook, error) {
	bids, err := newSide(cfg.SideCapacity, func(a, b InternalOrder) bool { return a.Price > b.Price })
	if err != nil {
		return nil, fmt.Errorf("orderbook: bids: %w", err)
	}
	asks, err := newSide(cfg.SideCapacity, func(a, b InternalOrder) bool { return a.Price < b.Price })
	if err != nil {
		return nil, fmt.Errorf("orderbook: asks: %w", err)
	}
	space := slotid.NewSpace(cfg.BookIDSpace)
	return &OrderBook{
		Ticker:    ticker,
		bids:      bids,
		asks:      asks,
		bookIDs:   slotid.NewPool(space, slotid.DefaultConfig(space.Capacity())),
		bookSpace: space,
	}, nil
}

func (b *OrderBook) sideFor(action wire.Action) *side {
	if action.IsBuy() {
		return b.bids
	}
	return b.asks
}

// BestBid returns the top-of-book bid, or nil if the bid side is empty.
func (b *OrderBook) BestBid() *InternalOrder { return b.bids.top() }

// BestAsk returns the top-of-book ask, or nil if the ask side is empty.
func (b *OrderBook) BestAsk() *InternalOrder { return b.asks.top() }

// BidCount / AskCount report the current resting-order count per side.
func (b *OrderBook) BidCount() int { return b.bids.count }
func (b *OrderBook) AskCount() int { return b.asks.count }

// Add inserts event as a new resting order (selecting the side by
// action), emits an Accepted status carrying its assigned book ID, then
// runs the match loop — spec.md §8 scenario 1's "six Accepted statuses,
// no match status" for a non-crossing book, and scenarios 2/3's accept
// count for a crossing one. Returns ok=false (after emitting a Rejected
// status instead) if the side is already at capacity or the book-ID
// space is exhausted — spec.md §4.15's "full side -> Rejected" path.
func (b *OrderBook) Add(event domain.InternalOrderEvent, sink StatusSink) (assignedBookID uint32, ok bool) {
	s := b.sideFor(event.Action)
	if s.full() {
		sink.Emit(domain.InternalOrderStatus{SystemID: event.SystemID, State: wire.StateRejected})
		return InvalidBookID, false
	}

	bookID, acquired := b.bookIDs.Acquire()
	if !acquired {
		sink.Emit(domain.InternalOrderStatus{SystemID: event.SystemID, State: wire.StateRejected})
		return InvalidBookID, false
	}

	order := InternalOrder{
		SystemID: event.SystemID,
		BookID:   uint32(bookID),
		Quantity: event.Quantity,
		Price:    event.Price,
	}
	s.push(order)
	sink.Emit(domain.InternalOrderStatus{SystemID: order.SystemID, BookID: order.BookID, State: wire.StateAccepted})

	b.match(event.SystemID, sink)
	return order.BookID, true
}

// CancelBySystemID removes a resting order identified by its system ID,
// wherever it sits (bid or ask side): posBySys maps a system ID straight
// to its current heap slot without a linear scan.
func (b *OrderBook) CancelBySystemID(systemID uint32) bool {
	if i, found := b.bids.posBySys[systemID]; found {
		bookID := b.bids.get(i).BookID
		b.bids.remove(i)
		b.bookIDs.Release(slotid.ID(bookID))
		return true
	}
	if i, found := b.asks.posBySys[systemID]; found {
		bookID := b.asks.get(i).BookID
		b.asks.remove(i)
		b.bookIDs.Release(slotid.ID(bookID))
		return true
	}
	return false
}

// match runs the price-time match loop until the two best prices no
// longer cross. Execution price is always the resting ask's price,
// regardless of which side the incoming order is on. Only the order
// whose system ID equals the one that triggered this Add call is
// reported — the resting order on the other side of a fill never gets a
// status here, matching spec.md §9 open question 2's gap.
func (b *OrderBook) match(causingSystemID uint32, sink StatusSink) {
	for !b.bids.empty() && !b.asks.empty() {
		bid := b.bids.top()
		ask := b.asks.top()
		if bid.Price < ask.Price {
			break
		}

		qty := minUint32(bid.Quantity, ask.Quantity)
		price := ask.Price

		bid.PartialFill(qty)
		ask.PartialFill(qty)

		if bid.SystemID == causingSystemID {
			sink.Emit(statusFor(*bid, qty, price))
		}
		if ask.SystemID == causingSystemID {
			sink.Emit(statusFor(*ask, qty, price))
		}

		if bid.IsFilled() {
			b.bids.pop()
		}
		if ask.IsFilled() {
			b.asks.pop()
		}
	}
}

func statusFor(o InternalOrder, fillQty, fillPrice uint32) domain.InternalOrderStatus {
	state := wire.StatePartial
	if o.IsFilled() {
		state = wire.StateFull
	}
	return domain.InternalOrderStatus{
		SystemID:  o.SystemID,
		BookID:    o.BookID,
		FillQty:   fillQty,
		FillPrice: fillPrice,
		State:     state,
	}
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
