package priceclient

import (
	"testing"
	"time"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/wire"
)

type recordingBroadcaster struct {
	got chan wire.TickerPrice
}

func (r *recordingBroadcaster) Broadcast(tp wire.TickerPrice) { r.got <- tp }

func TestFeedBroadcastsOnlyWhenRoundedPriceChanges(t *testing.T) {
	hub := bus.NewHub(16)
	received := make(chan wire.TickerPrice, 64)
	bus.RegisterMarket(hub, func(tp wire.TickerPrice) { received <- tp })

	aapl := wire.TickerFromString("AAPL")
	f := New(hub, map[wire.Ticker]uint32{aapl: 100}, nil)

	// Force a deterministic first tick: strong upward drift guarantees a
	// rounded-price change.
	f.mu.Lock()
	f.walkers[aapl].driftPerTic = 0.5
	f.mu.Unlock()

	f.tickAll(time.Now())

	select {
	case tp := <-received:
		if tp.Ticker != aapl || tp.Price <= 100 {
			t.Fatalf("expected an increased price for %s, got %+v", aapl, tp)
		}
	default:
		t.Fatal("expected a TickerPrice to have been posted")
	}
}

func TestFeedSkipsBroadcastWhenRoundedPriceUnchanged(t *testing.T) {
	hub := bus.NewHub(16)
	received := make(chan wire.TickerPrice, 64)
	bus.RegisterMarket(hub, func(tp wire.TickerPrice) { received <- tp })

	aapl := wire.TickerFromString("AAPL")
	f := New(hub, map[wire.Ticker]uint32{aapl: 100}, nil)
	f.mu.Lock()
	f.walkers[aapl].driftPerTic = 0 // no movement at all
	f.mu.Unlock()

	f.tickAll(time.Now())

	select {
	case tp := <-received:
		t.Fatalf("expected no broadcast for an unchanged rounded price, got %+v", tp)
	default:
	}
}

func TestFeedFansOutToExtraBroadcasters(t *testing.T) {
	hub := bus.NewHub(16)
	aapl := wire.TickerFromString("AAPL")
	rb := &recordingBroadcaster{got: make(chan wire.TickerPrice, 1)}
	f := New(hub, map[wire.Ticker]uint32{aapl: 100}, nil, rb)
	f.mu.Lock()
	f.walkers[aapl].driftPerTic = 0.5
	f.mu.Unlock()

	f.tickAll(time.Now())

	select {
	case tp := <-rb.got:
		if tp.Ticker != aapl {
			t.Fatalf("unexpected ticker: %+v", tp)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the extra broadcaster to receive the update")
	}
}
