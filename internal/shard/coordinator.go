package shard

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/orderbook"
	"github.com/rishav/hft-engine/internal/wire"
)

// OperationalEvent is posted to the system bus once every shard has
// reported ready, unblocking the front-end acceptors (spec.md §4.14).
type OperationalEvent struct{}

// StatsEvent is the periodic runtime-metrics telemetry record posted on
// the stream bus (spec.md §4.14's "Statistics").
type StatsEvent struct {
	RPSDelta     uint64
	TotalOpened  uint64
}

// Coordinator owns W shards and routes InternalOrderEvents to the one
// that owns the event's ticker, with no cross-shard locking.
type Coordinator struct {
	shards  []*Shard
	routing map[wire.Ticker]int // ticker -> owning shard index, fixed after Start

	ready atomic.Int32
	want  int32

	hub  *bus.Hub
	log  *zap.Logger
	stop chan struct{}
	grp  *errgroup.Group
}

// New creates a Coordinator with w shards (w = len(cpu.cores_app),
// defaulting to 1 per spec.md §4.14), each shard's inbox sized
// inboxSize, reporting statuses through sink and publishing stats/
// readiness on hub.
func New(w int, inboxSize int, hub *bus.Hub, sink orderbook.StatusSink, log *zap.Logger) *Coordinator {
	if w < 1 {
		w = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		shards:  make([]*Shard, w),
		routing: make(map[wire.Ticker]int),
		hub:     hub,
		log:     log,
		stop:    make(chan struct{}),
		want:    int32(w),
		grp:     &errgroup.Group{},
	}
	for i := 0; i < w; i++ {
		c.shards[i] = newShard(i, inboxSize, sink, log)
	}
	return c
}

// RegisterTicker assigns ticker to a shard round-robin (spec.md §3:
// "Tickers are striped across workers round-robin") and creates its
// order book on that shard. Call this for every ticker before Start.
func (c *Coordinator) RegisterTicker(ticker wire.Ticker, cfg orderbook.Config) error {
	idx := len(c.routing) % len(c.shards)
	if err := c.shards[idx].addBook(ticker, cfg); err != nil {
		return fmt.Errorf("shard: register ticker %s: %w", ticker, err)
	}
	c.routing[ticker] = idx
	return nil
}

// Start spawns every shard's run loop under an errgroup (supervising
// startup/shutdown fan-in across the W shard goroutines, rather than a
// bare WaitGroup). Each shard signals readiness by incrementing the
// shared counter; once it reaches W, OperationalEvent is posted to the
// system bus.
func (c *Coordinator) Start() {
	c.log.Info("starting shards", zap.Int("count", len(c.shards)))
	for _, s := range c.shards {
		s := s
		c.grp.Go(func() error {
			if c.ready.Add(1) == c.want {
				c.log.Info("all shards ready")
				c.hub.PostSystem(OperationalEvent{})
			}
			s.run(c.stop)
			return nil
		})
	}
}

// Stop signals every shard's run loop to return and waits for all of
// them to exit.
func (c *Coordinator) Stop() {
	c.log.Info("stopping shards")
	close(c.stop)
	c.grp.Wait()
}

// Dispatch routes ev to the shard owning ev.Ticker (assigned once at
// RegisterTicker time). Events for unknown tickers are dropped without
// emitting any status.
func (c *Coordinator) Dispatch(ev domain.InternalOrderEvent) {
	idx, ok := c.routing[ev.Ticker]
	if !ok {
		return
	}
	c.shards[idx].inbox <- ev
}

// RunStatsTimer posts a StatsEvent on the stream bus at every interval
// in which the opened-order count changed, until stop fires, reporting the delta of total opened orders since
// the previous tick (spec.md §4.14's "Statistics").
func (c *Coordinator) RunStatsTimer(interval time.Duration, stop <-chan struct{}) {
	var last uint64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			total := c.totalOpened()
			delta := total - last
			last = total
			if delta != 0 {
				bus.PostStream(c.hub, StatsEvent{RPSDelta: delta, TotalOpened: total})
			}
		case <-stop:
			return
		}
	}
}

func (c *Coordinator) totalOpened() uint64 {
	var sum uint64
	for _, s := range c.shards {
		sum += s.Opened()
	}
	return sum
}
