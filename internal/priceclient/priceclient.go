// Package priceclient implements spec.md §4.16's price feed: a
// synthetic random walk per ticker, driven by a time.Ticker at
// `rates.price_feed_rate_us`, broadcasting TickerPrice on the market bus
// and fanning the same updates out over UDP and WebSocket to connected
// clients. This is an external collaborator per spec.md §1 ("the
// randomized price-feed generator ... exercise the core but are not
// part of it"), so it lives outside internal/gateway and internal/shard
// and only ever posts TickerPrice — it never originates orders.
//
// Grounded on the teacher's internal/marketdata/publisher.go
// (subscriber-channel fan-out pattern, non-blocking send-or-drop on a
// full subscriber), generalized from L1/L2/trade quote broadcasting to
// the single TickerPrice message spec.md §4.16/§6 defines, plus a
// gorilla/websocket hub (SPEC_FULL.md §6 DOMAIN STACK) standing in for
// the teacher's channel-based fan-out when the subscriber is a remote
// WebSocket client rather than an in-process channel.
package priceclient

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/wire"
)

// reseedMin/reseedMax bound how often a walker's drift/period parameters
// re-randomize, per spec.md §4.16: "re-randomize every [100ms, 5s]".
const (
	reseedMin = 100 * time.Millisecond
	reseedMax = 5 * time.Second
)

// walker tracks one ticker's continuous price and the last price
// broadcast (rounded to a whole tick), plus its current fluctuation
// parameters.
type walker struct {
	ticker      wire.Ticker
	price       float64
	lastSent    uint32
	driftPerTic float64
	nextReseed  time.Time
}

func newWalker(ticker wire.Ticker, startPrice uint32) *walker {
	w := &walker{ticker: ticker, price: float64(startPrice), lastSent: startPrice}
	w.reseed(time.Now())
	return w
}

func (w *walker) reseed(now time.Time) {
	w.driftPerTic = (rand.Float64() - 0.5) * 0.02 // up to +-1% per tick
	period := reseedMin + time.Duration(rand.Int63n(int64(reseedMax-reseedMin)))
	w.nextReseed = now.Add(period)
}

func (w *walker) tick(now time.Time) (rounded uint32, changed bool) {
	if now.After(w.nextReseed) {
		w.reseed(now)
	}
	w.price += w.price * w.driftPerTic
	if w.price < 1 {
		w.price = 1
	}
	rounded = uint32(w.price + 0.5)
	changed = rounded != w.lastSent
	if changed {
		w.lastSent = rounded
	}
	return rounded, changed
}

// Broadcaster is the narrow surface Feed needs to fan a TickerPrice out
// beyond the market bus (UDP datagram send, WebSocket hub, or both).
type Broadcaster interface {
	Broadcast(wire.TickerPrice)
}

// Feed owns one walker per ticker and drives them from a single timer.
type Feed struct {
	mu      sync.Mutex
	walkers map[wire.Ticker]*walker

	hub          *bus.Hub
	broadcasters []Broadcaster
	log          *zap.Logger
}

// New creates a Feed over hub, seeding one walker per (ticker, start
// price) pair. Extra fan-out destinations (UDP, WebSocket) are supplied
// via broadcasters; either may be omitted.
func New(hub *bus.Hub, seeds map[wire.Ticker]uint32, log *zap.Logger, broadcasters ...Broadcaster) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	walkers := make(map[wire.Ticker]*walker, len(seeds))
	for ticker, price := range seeds {
		walkers[ticker] = newWalker(ticker, price)
	}
	return &Feed{
		walkers:      walkers,
		hub:          hub,
		broadcasters: broadcasters,
		log:          log,
	}
}

// Run drives every walker on a ticker firing every period
// (rates.price_feed_rate_us) until stop fires.
func (f *Feed) Run(period time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			f.tickAll(now)
		case <-stop:
			return
		}
	}
}

func (f *Feed) tickAll(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.walkers {
		price, changed := w.tick(now)
		if !changed {
			continue
		}
		tp := wire.TickerPrice{Ticker: w.ticker, Price: price}
		bus.PostMarket(f.hub, tp)
		for _, b := range f.broadcasters {
			b.Broadcast(tp)
		}
	}
}

// CurrentPrice returns the last-broadcast price for ticker, for tests and
// diagnostics.
func (f *Feed) CurrentPrice(ticker wire.Ticker) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.walkers[ticker]
	if !ok {
		return 0, false
	}
	return w.lastSent, true
}
