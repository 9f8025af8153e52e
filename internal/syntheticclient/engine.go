// Package syntheticclient implements a randomized trading client that
// generates orders against the running book, tracks their statuses, and
// randomly cancels some of its own accepted orders — grounded closely
// on the original's client/src/execution/trade_engine.hpp TradeEngine,
// which exists to load-test and demo the matching engine without a
// human operator. SPEC_FULL.md §7.5 names this as a supplemented
// feature (spec.md §6 already names the client-side console commands
// "s+/s-" that start/stop it, but the distillation never describes the
// engine itself).
package syntheticclient

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/slotid"
	"github.com/rishav/hft-engine/internal/wire"
)

// Sender is what Engine needs to push a wire message toward the server
// — satisfied by *internal/channel.Channel.
type Sender interface {
	Send(msg any) error
}

// Config tunes order generation. Capacity bounds how many of the
// engine's own orders can be in flight at once (the original's
// MAX_SYSTEM_ORDERS-sized huge array, here just an order-tracking slot
// space local to this client).
type Config struct {
	Capacity     uint32
	TradeRate    time.Duration        // pause between loop iterations
	StatsPeriod  time.Duration        // how often to log placed/closed/cancelled
	Seeds        map[wire.Ticker]uint32
	CancelChance float64 // probability an Accepted order is queued for cancel, [0,1]
}

// DefaultConfig mirrors the original's loop cadence (a busy-wait of a
// fixed pause count, here expressed as a duration) and its "cancel
// about half of accepted orders" RNG.generate<uint32_t>(0,1)==1 coin
// flip.
func DefaultConfig(seeds map[wire.Ticker]uint32) Config {
	return Config{
		Capacity:     1 << 16,
		TradeRate:    time.Millisecond,
		StatsPeriod:  time.Second,
		Seeds:        seeds,
		CancelChance: 0.5,
	}
}

type clientOrder struct {
	order    wire.Order
	created  time.Time
	systemID uint32
	valid    bool
}

// Engine generates and tracks synthetic orders. Not safe for concurrent
// use from more than one goroutine at a time — matching the original's
// single dedicated jthread.
type Engine struct {
	cfg    Config
	sender Sender
	log    *zap.Logger

	idSpace slotid.Space
	ids     *slotid.Pool
	orders  []clientOrder

	tickers []wire.Ticker
	prices  map[wire.Ticker]uint32
	cursor  int

	toCancel chan uint32 // indices of orders pending a cancel send

	trading  bool
	stopCh   chan struct{}
	rng      *rand.Rand

	placed, fulfilled, cancelled uint64
}

// New builds an Engine over sender, seeded with cfg.Seeds as the
// initial known price per ticker.
func New(sender Sender, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	space := slotid.NewSpace(cfg.Capacity)
	tickers := make([]wire.Ticker, 0, len(cfg.Seeds))
	prices := make(map[wire.Ticker]uint32, len(cfg.Seeds))
	for t, p := range cfg.Seeds {
		tickers = append(tickers, t)
		prices[t] = p
	}
	return &Engine{
		cfg:      cfg,
		sender:   sender,
		log:      log,
		idSpace:  space,
		ids:      slotid.NewPool(space, slotid.DefaultConfig(space.Capacity())),
		orders:   make([]clientOrder, space.Capacity()),
		tickers:  tickers,
		prices:   prices,
		toCancel: make(chan uint32, cfg.Capacity),
		stopCh:   make(chan struct{}),
		rng:      rand.New(rand.NewSource(1)),
	}
}

// TradeStart enables order generation (the "s+" console command).
func (e *Engine) TradeStart() {
	if e.trading {
		return
	}
	e.log.Info("synthetic trading started")
	e.trading = true
}

// TradeStop disables order generation without affecting in-flight
// orders (the "s-" console command).
func (e *Engine) TradeStop() {
	if !e.trading {
		return
	}
	e.log.Info("synthetic trading stopped")
	e.trading = false
}

// Stop ends Run's loop.
func (e *Engine) Stop() { close(e.stopCh) }

// Run drives the trade loop until Stop is called. Call it from its own
// goroutine.
func (e *Engine) Run() {
	if len(e.tickers) == 0 {
		e.log.Error("synthetic client started with no seeded tickers")
		return
	}
	ticker := time.NewTicker(e.cfg.TradeRate)
	defer ticker.Stop()

	stats := time.NewTicker(e.cfg.StatsPeriod)
	defer stats.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-stats.C:
			e.logStats()
		case <-ticker.C:
			if !e.trading {
				continue
			}
			if !e.sendCancel() {
				e.sendNew()
			}
		}
	}
}

// sendNew places one randomized order for the next ticker in round-robin
// order, mirroring the original's cursor over marketData_.
func (e *Engine) sendNew() {
	t := e.tickers[e.cursor]
	e.cursor = (e.cursor + 1) % len(e.tickers)

	price := fluctuate(e.prices[t], e.rng)
	action := wire.ActionBuy
	if e.rng.Intn(2) == 1 {
		action = wire.ActionSell
	}
	quantity := uint32(1 + e.rng.Intn(100))

	id, ok := e.ids.Acquire()
	if !ok {
		e.log.Error("synthetic client order-id pool exhausted, stopping")
		e.TradeStop()
		return
	}
	order := wire.Order{
		ID:       uint64(id),
		Created:  uint64(time.Now().UnixNano()),
		Ticker:   t,
		Quantity: quantity,
		Price:    price,
		Action:   action,
	}
	idx := e.idSpace.Index(id)
	e.orders[idx] = clientOrder{order: order, created: time.Now(), valid: true}

	if err := e.sender.Send(order); err != nil {
		e.log.Debug("failed to send synthetic order", zap.Error(err))
		return
	}
	e.placed++
}

// sendCancel drains one pending cancel, if any, and sends it using the
// gateway-assigned system ID learned from the order's Accepted status.
func (e *Engine) sendCancel() bool {
	select {
	case idx := <-e.toCancel:
		r := &e.orders[idx]
		if !r.valid {
			return false
		}
		cancel := wire.Order{
			ID:       uint64(r.systemID),
			Ticker:   r.order.Ticker,
			Quantity: r.order.Quantity,
			Price:    r.order.Price,
			Action:   wire.ActionCancel,
		}
		if err := e.sender.Send(cancel); err != nil {
			e.log.Debug("failed to send synthetic cancel", zap.Error(err))
		}
		return true
	default:
		return false
	}
}

// OnOrderStatus feeds one OrderStatus the client received back from the
// server. Register it with the channel/bus that delivers downstream
// traffic for this client's session.
func (e *Engine) OnOrderStatus(s wire.OrderStatus) {
	id, ok := e.lookupID(s.OrderID)
	if !ok {
		e.log.Error("order status for unknown id", zap.Uint64("order_id", s.OrderID))
		return
	}
	idx := e.idSpace.Index(id)
	r := &e.orders[idx]
	if !r.valid {
		e.log.Error("order status for invalid record", zap.Uint32("index", idx))
		return
	}
	r.systemID = s.SystemID

	switch s.State {
	case wire.StateAccepted:
		if e.rng.Float64() < e.cfg.CancelChance {
			select {
			case e.toCancel <- idx:
			default:
			}
		}
	case wire.StateFull:
		e.fulfilled++
		e.release(id, idx)
	case wire.StateCancelled:
		e.cancelled++
		e.release(id, idx)
	case wire.StateRejected:
		e.log.Debug("order rejected", zap.Uint64("order_id", s.OrderID))
		e.release(id, idx)
	}
}

func (e *Engine) release(id slotid.ID, idx uint32) {
	e.orders[idx] = clientOrder{}
	e.ids.Release(id)
}

// lookupID recovers the slotid.ID this engine originally minted for
// orderID (the engine uses its own acquired ID as the wire Order.ID, so
// this is a generation-less reconstruction — the record's validity flag
// is the actual correctness check).
func (e *Engine) lookupID(orderID uint64) (slotid.ID, bool) {
	id := slotid.ID(orderID)
	if !e.idSpace.Valid(id) {
		return 0, false
	}
	idx := e.idSpace.Index(id)
	if idx >= uint32(len(e.orders)) {
		return 0, false
	}
	return id, true
}

// OnTickerPrice updates this engine's view of a ticker's last known
// price, used as the basis for the next random walk.
func (e *Engine) OnTickerPrice(tp wire.TickerPrice) {
	if _, ok := e.prices[tp.Ticker]; !ok {
		return
	}
	e.prices[tp.Ticker] = tp.Price
}

func (e *Engine) logStats() {
	e.log.Info("synthetic trading stats",
		zap.Uint64("placed", e.placed),
		zap.Uint64("fulfilled", e.fulfilled),
		zap.Uint64("cancelled", e.cancelled),
	)
}

// fluctuate jitters price by up to +/-1%, floored at 1 to keep
// Order.Valid()'s price>0 invariant.
func fluctuate(price uint32, rng *rand.Rand) uint32 {
	pct := (rng.Float64() - 0.5) * 0.02
	next := int64(float64(price) * (1 + pct))
	if next < 1 {
		next = 1
	}
	return uint32(next)
}
