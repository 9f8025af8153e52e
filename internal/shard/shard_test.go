package shard

import (
	"testing"
	"time"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/orderbook"
	"github.com/rishav/hft-engine/internal/wire"
)

type collector struct {
	ch chan domain.InternalOrderStatus
}

func newCollector() *collector { return &collector{ch: make(chan domain.InternalOrderStatus, 64)} }

func (c *collector) Emit(s domain.InternalOrderStatus) { c.ch <- s }

func testBookConfig() orderbook.Config {
	return orderbook.Config{SideCapacity: 16, BookIDSpace: 32}
}

func TestRoundRobinTickerAssignment(t *testing.T) {
	hub := bus.NewHub(16)
	sink := newCollector()
	c := New(2, 16, hub, sink, nil)

	tickers := []wire.Ticker{
		wire.TickerFromString("AAPL"),
		wire.TickerFromString("GOOG"),
		wire.TickerFromString("MSFT"),
	}
	for _, tk := range tickers {
		if err := c.RegisterTicker(tk, testBookConfig()); err != nil {
			t.Fatal(err)
		}
	}

	if c.routing[tickers[0]] != 0 || c.routing[tickers[1]] != 1 || c.routing[tickers[2]] != 0 {
		t.Fatalf("unexpected round-robin assignment: %v", c.routing)
	}
}

func TestDispatchRoutesToOwningShardAndAccepts(t *testing.T) {
	hub := bus.NewHub(16)
	sink := newCollector()
	c := New(2, 16, hub, sink, nil)

	tk := wire.TickerFromString("AAPL")
	if err := c.RegisterTicker(tk, testBookConfig()); err != nil {
		t.Fatal(err)
	}
	c.Start()
	defer c.Stop()

	c.Dispatch(domain.InternalOrderEvent{SystemID: 1, Ticker: tk, Quantity: 10, Price: 100, Action: wire.ActionBuy})

	select {
	case s := <-sink.ch:
		if s.State != wire.StateAccepted || s.SystemID != 1 {
			t.Fatalf("expected an Accepted status for the resting buy, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the accept status")
	}

	c.Dispatch(domain.InternalOrderEvent{SystemID: 2, Ticker: tk, Quantity: 10, Price: 100, Action: wire.ActionSell})

	select {
	case s := <-sink.ch:
		if s.State != wire.StateAccepted || s.SystemID != 2 {
			t.Fatalf("expected an Accepted status for the crossing sell, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the accept status")
	}

	select {
	case s := <-sink.ch:
		if s.State != wire.StateFull {
			t.Fatalf("expected a full-fill status from the crossing sell, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a match status")
	}
}

func TestUnknownTickerDispatchIsDropped(t *testing.T) {
	hub := bus.NewHub(16)
	sink := newCollector()
	c := New(1, 16, hub, sink, nil)
	c.Start()
	defer c.Stop()

	c.Dispatch(domain.InternalOrderEvent{SystemID: 1, Ticker: wire.TickerFromString("ZZZZ"), Action: wire.ActionBuy})

	select {
	case s := <-sink.ch:
		t.Fatalf("expected no status for an unregistered ticker, got %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartPostsOperationalOnceAllShardsReady(t *testing.T) {
	hub := bus.NewHub(16)
	done := make(chan struct{})
	hub.SubscribeSystem(func(msg any) {
		if _, ok := msg.(OperationalEvent); ok {
			close(done)
		}
	})
	go hub.RunSystemDispatcher()
	defer hub.StopSystemDispatcher()

	sink := newCollector()
	c := New(3, 16, hub, sink, nil)
	c.Start()
	defer c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected OperationalEvent once all shards reported ready")
	}
}
