package orderbook

import (
	"testing"

	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/wire"
)

func testConfig() Config {
	return Config{SideCapacity: 16, BookIDSpace: 32}
}

type collector struct {
	statuses []domain.InternalOrderStatus
}

func (c *collector) Emit(s domain.InternalOrderStatus) {
	c.statuses = append(c.statuses, s)
}

func newTestBook(t *testing.T) *OrderBook {
	t.Helper()
	b, err := New(wire.TickerFromString("AAPL"), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func buy(id, qty, price uint32) domain.InternalOrderEvent {
	return domain.InternalOrderEvent{SystemID: id, Quantity: qty, Price: price, Action: wire.ActionBuy}
}

func sell(id, qty, price uint32) domain.InternalOrderEvent {
	return domain.InternalOrderEvent{SystemID: id, Quantity: qty, Price: price, Action: wire.ActionSell}
}

// TestThreeBuysThreeSellsNonCrossing reproduces spec.md §8 scenario 1
// literally: six non-crossing adds, id order (1..6), must yield exactly
// six Accepted statuses and no match status.
func TestThreeBuysThreeSellsNonCrossing(t *testing.T) {
	b := newTestBook(t)
	sink := &collector{}

	adds := []domain.InternalOrderEvent{
		sell(1, 1, 40), sell(2, 1, 50), sell(3, 1, 60),
		buy(4, 1, 30), buy(5, 1, 20), buy(6, 1, 10),
	}
	for _, ev := range adds {
		if _, ok := b.Add(ev, sink); !ok {
			t.Fatalf("add %+v rejected", ev)
		}
	}

	if b.BidCount() != 3 || b.AskCount() != 3 {
		t.Fatalf("expected 3 bids and 3 asks, got %d/%d", b.BidCount(), b.AskCount())
	}
	if len(sink.statuses) != 6 {
		t.Fatalf("expected 6 Accepted statuses, got %d: %+v", len(sink.statuses), sink.statuses)
	}
	for i, s := range sink.statuses {
		if s.State != wire.StateAccepted || s.SystemID != adds[i].SystemID {
			t.Fatalf("status %d: expected Accepted for system id %d, got %+v", i, adds[i].SystemID, s)
		}
	}
}

// TestThreeBuysThreeSellsCrossing reproduces spec.md §8 scenario 2
// literally: three buys (1,2,3) rest, then three sells (4,5,6) each
// immediately cross the best resting bid. Expect 9 total emissions: an
// Accepted for every one of the 6 adds, plus a Full-fill status for
// each of the 3 crossing sells (the resting bid on the other side of
// each fill never gets a status, per spec.md §9 open question 2).
func TestThreeBuysThreeSellsCrossing(t *testing.T) {
	b := newTestBook(t)
	sink := &collector{}

	adds := []domain.InternalOrderEvent{
		buy(1, 1, 40), buy(2, 1, 50), buy(3, 1, 60),
		sell(4, 1, 30), sell(5, 1, 20), sell(6, 1, 10),
	}
	for _, ev := range adds {
		if _, ok := b.Add(ev, sink); !ok {
			t.Fatalf("add %+v rejected", ev)
		}
	}

	if len(sink.statuses) != 9 {
		t.Fatalf("expected 9 emissions (6 accepts + 3 full-fills), got %d: %+v", len(sink.statuses), sink.statuses)
	}
	for i := 0; i < 3; i++ {
		if sink.statuses[i].State != wire.StateAccepted || sink.statuses[i].SystemID != adds[i].SystemID {
			t.Fatalf("status %d: expected Accepted for system id %d, got %+v", i, adds[i].SystemID, sink.statuses[i])
		}
	}
	for i, sellID := range []uint32{4, 5, 6} {
		accept, fill := sink.statuses[3+2*i], sink.statuses[3+2*i+1]
		if accept.State != wire.StateAccepted || accept.SystemID != sellID {
			t.Fatalf("expected Accepted for sell %d, got %+v", sellID, accept)
		}
		if fill.State != wire.StateFull || fill.SystemID != sellID {
			t.Fatalf("expected Full fill for sell %d, got %+v", sellID, fill)
		}
	}
	if b.BidCount() != 0 || b.AskCount() != 0 {
		t.Fatalf("expected every order fully matched away, got %d bids / %d asks", b.BidCount(), b.AskCount())
	}
}

// TestOneSellSweepsTenBids reproduces spec.md §8 scenario 3 literally:
// ten same-price bids (ids 0..9, qty i+1), then one sell of their total
// quantity at the same price. Expect 10 accepts for the bids, plus 1
// accept and 9 Partial + 1 Full statuses for the sweeping sell — 21
// emissions total.
func TestOneSellSweepsTenBids(t *testing.T) {
	b := newTestBook(t)
	sink := &collector{}

	var total uint32
	for i := uint32(0); i < 10; i++ {
		qty := i + 1
		total += qty
		if _, ok := b.Add(buy(i, qty, 10), sink); !ok {
			t.Fatalf("bid %d rejected", i)
		}
	}
	if b.BidCount() != 10 {
		t.Fatalf("expected 10 resting bids, got %d", b.BidCount())
	}
	if len(sink.statuses) != 10 {
		t.Fatalf("expected 10 Accepted statuses for the bids, got %d", len(sink.statuses))
	}

	if _, ok := b.Add(sell(999, total, 10), sink); !ok {
		t.Fatal("sweep sell rejected")
	}
	if b.BidCount() != 0 {
		t.Fatalf("expected all bids consumed, got %d remaining", b.BidCount())
	}

	if len(sink.statuses) != 21 {
		t.Fatalf("expected 21 emissions total (10 accepts + 1 accept + 9 partial + 1 full), got %d: %+v", len(sink.statuses), sink.statuses)
	}
	sellStatuses := sink.statuses[10:]
	if sellStatuses[0].State != wire.StateAccepted {
		t.Fatalf("expected the sweeping sell's own Accepted first, got %+v", sellStatuses[0])
	}
	fills := sellStatuses[1:]
	for i, s := range fills {
		if s.SystemID != 999 {
			t.Fatalf("fill %d: expected system id 999, got %+v", i, s)
		}
		wantState := wire.StatePartial
		if i == len(fills)-1 {
			wantState = wire.StateFull
		}
		if s.State != wantState {
			t.Fatalf("fill %d: expected state %v, got %+v", i, wantState, s)
		}
	}
}

func TestCancelBySystemIDRemovesRestingOrder(t *testing.T) {
	b := newTestBook(t)
	sink := &collector{}

	b.Add(buy(1, 10, 100), sink)
	b.Add(buy(2, 10, 101), sink)
	b.Add(buy(3, 10, 99), sink)

	if !b.CancelBySystemID(2) {
		t.Fatal("expected cancel of resting order to succeed")
	}
	if b.BidCount() != 2 {
		t.Fatalf("expected 2 remaining bids after cancel, got %d", b.BidCount())
	}
	if b.BestBid().Price != 100 {
		t.Fatalf("expected best bid 100 after removing 101, got %d", b.BestBid().Price)
	}
	if b.CancelBySystemID(2) {
		t.Fatal("expected second cancel of the same system ID to fail")
	}
}

func TestHeapPropertyHoldsAfterInterleavedOps(t *testing.T) {
	b := newTestBook(t)
	sink := &collector{}

	prices := []uint32{87, 95, 91, 99, 83, 100, 89}
	for i, p := range prices {
		b.Add(buy(uint32(i+1), 1, p), sink)
	}
	b.CancelBySystemID(4) // remove the 99 bid
	b.CancelBySystemID(1) // remove the 87 bid

	assertBidHeapInvariant(t, b)

	if b.BestBid().Price != 100 {
		t.Fatalf("expected best bid 100 after removals, got %d", b.BestBid().Price)
	}
}

func assertBidHeapInvariant(t *testing.T, b *OrderBook) {
	t.Helper()
	s := b.bids
	for i := 0; i < s.count; i++ {
		left, right := 2*i+1, 2*i+2
		parent := s.get(i)
		if left < s.count && s.get(left).Price > parent.Price {
			t.Fatalf("max-heap violated: parent[%d]=%d < left child[%d]=%d", i, parent.Price, left, s.get(left).Price)
		}
		if right < s.count && s.get(right).Price > parent.Price {
			t.Fatalf("max-heap violated: parent[%d]=%d < right child[%d]=%d", i, parent.Price, right, s.get(right).Price)
		}
	}
}

func TestFullSideRejectsWithoutMutatingBook(t *testing.T) {
	b := newTestBook(t)
	sink := &collector{}

	for i := 0; i < 16; i++ {
		if _, ok := b.Add(buy(uint32(i+1), 1, 50+uint32(i)), sink); !ok {
			t.Fatalf("buy %d unexpectedly rejected while side has room", i)
		}
	}
	if b.BidCount() != 16 {
		t.Fatalf("expected side capacity 16 filled, got %d", b.BidCount())
	}

	sink.statuses = nil
	if _, ok := b.Add(buy(9999, 1, 1), sink); ok {
		t.Fatal("expected 17th bid on a full side to be rejected")
	}
	if b.BidCount() != 16 {
		t.Fatalf("expected book unchanged after rejection, got count %d", b.BidCount())
	}
	if len(sink.statuses) != 1 || sink.statuses[0].State != wire.StateRejected {
		t.Fatalf("expected exactly one Rejected status, got %+v", sink.statuses)
	}
}
