// Package gateway implements the single-threaded order gateway spec.md
// §4.13 describes: it owns the system-ID slot-ID pool and the
// huge-page-backed OrderRecord table indexed by system-ID slot, and
// bridges the wire-visible ServerOrder/ServerOrderStatus world to the
// shard-local InternalOrderEvent/InternalOrderStatus world. Grounded on
// the teacher's single-threaded "event processor" design
// (internal/disruptor/processor.go's single-consumer loop), generalized
// from ring-buffer draining to the gateway's specific inbound/outbound
// handling rules.
package gateway

import (
	"time"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/hugearray"
	"github.com/rishav/hft-engine/internal/risk"
	"github.com/rishav/hft-engine/internal/slotid"
	"github.com/rishav/hft-engine/internal/wire"
)

// systemIDCapacity matches spec.md §3's 16,777,216-entry system-order-ID
// space.
const systemIDCapacity = 16 * 1024 * 1024

// Dispatcher hands an InternalOrderEvent to whichever shard owns its
// ticker (the coordinator, spec.md §4.14).
type Dispatcher interface {
	Dispatch(domain.InternalOrderEvent)
}

// StatusPoster publishes a ServerOrderStatus toward the originating
// client (typically the session manager via the bus).
type StatusPoster interface {
	PostStatus(domain.ServerOrderStatus)
}

// Gateway is not safe for concurrent use: every method runs on the
// gateway's single dedicated goroutine, matching spec.md §4.13 and §5's
// scheduling model.
type Gateway struct {
	ids     *slotid.Pool
	idSpace slotid.Space
	records *hugearray.Array[domain.OrderRecord]

	dispatcher Dispatcher
	statuses   StatusPoster
	risk       *risk.Checker
	log        *zap.Logger

	now func() time.Time
}

// New creates a Gateway. now lets tests and synthetic clock injection
// replace time.Now (spec.md never names a clock abstraction explicitly,
// but every OrderRecord carries a Created timestamp that must be
// deterministic in tests). riskCfg is checked synchronously on every
// inbound order, extending spec.md §3's bare price>0 validation.
func New(dispatcher Dispatcher, statuses StatusPoster, riskCfg risk.Config, log *zap.Logger, now func() time.Time) (*Gateway, error) {
	space := slotid.NewSpace(systemIDCapacity)
	records, err := hugearray.New[domain.OrderRecord](int(space.Capacity()), hugearray.DefaultFlags)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		ids:        slotid.NewPool(space, slotid.DefaultConfig(space.Capacity())),
		idSpace:    space,
		records:    records,
		dispatcher: dispatcher,
		statuses:   statuses,
		risk:       risk.NewChecker(riskCfg),
		log:        log,
		now:        now,
	}, nil
}

// HandleInbound processes one ServerOrder arriving from a session's
// upstream channel.
func (g *Gateway) HandleInbound(so domain.ServerOrder) {
	order := so.Order
	if !order.Valid() {
		g.log.Debug("order rejected: invalid", zap.Uint64("client_id", so.ClientID), zap.Uint64("order_id", order.ID))
		g.statuses.PostStatus(rejection(so.ClientID, order.ID))
		return
	}
	if ok, reason := g.risk.Check(order); !ok {
		g.log.Debug("order rejected: risk check", zap.Uint64("client_id", so.ClientID), zap.Uint64("order_id", order.ID), zap.String("reason", reason))
		g.statuses.PostStatus(rejection(so.ClientID, order.ID))
		return
	}

	switch order.Action {
	case wire.ActionCancel, wire.ActionModify:
		g.handleCancelOrModify(so)
	default:
		g.handleNewOrder(so)
	}
}

func (g *Gateway) handleCancelOrModify(so domain.ServerOrder) {
	// order.ID on a Cancel/Modify carries the client-supplied system-ID
	// value (spec.md §4.13): "look up OrderRecord by the client-supplied
	// system-ID value".
	systemID := uint32(so.Order.ID)
	idx := g.idSpace.Index(slotid.ID(systemID))
	if idx >= uint32(g.records.Len()) {
		g.statuses.PostStatus(rejection(so.ClientID, so.Order.ID))
		return
	}
	rec := g.records.At(idx)
	if rec.SystemID != systemID || rec.ClientID != so.ClientID {
		g.statuses.PostStatus(rejection(so.ClientID, so.Order.ID))
		return
	}

	g.dispatcher.Dispatch(domain.InternalOrderEvent{
		SystemID: systemID,
		Ticker:   rec.Ticker,
		Quantity: so.Order.Quantity,
		Price:    so.Order.Price,
		Action:   so.Order.Action,
	})
}

func (g *Gateway) handleNewOrder(so domain.ServerOrder) {
	id, ok := g.ids.Acquire()
	if !ok {
		g.statuses.PostStatus(rejection(so.ClientID, so.Order.ID))
		return
	}
	systemID := uint32(id)
	idx := g.idSpace.Index(id)

	*g.records.At(idx) = domain.OrderRecord{
		Created:    g.now().UnixNano(),
		SystemID:   systemID,
		BookID:     0, // InvalidBookID, until the shard reports one
		ClientID:   so.ClientID,
		ExternalID: so.Order.ID,
		Ticker:     so.Order.Ticker,
	}

	g.dispatcher.Dispatch(domain.InternalOrderEvent{
		SystemID: systemID,
		Ticker:   so.Order.Ticker,
		Quantity: so.Order.Quantity,
		Price:    so.Order.Price,
		Action:   so.Order.Action,
	})
}

// HandleOutbound processes one InternalOrderStatus reported back by a
// shard (delivered via the LFQ worker's consumer thread, spec.md
// §4.13).
func (g *Gateway) HandleOutbound(status domain.InternalOrderStatus) {
	idx := g.idSpace.Index(slotid.ID(status.SystemID))
	if idx >= uint32(g.records.Len()) {
		return
	}
	rec := g.records.At(idx)
	if rec.SystemID != status.SystemID {
		return
	}

	g.statuses.PostStatus(domain.ServerOrderStatus{
		ClientID: rec.ClientID,
		Status: wire.OrderStatus{
			OrderID:   rec.ExternalID,
			SystemID:  status.SystemID,
			Timestamp: uint64(g.now().UnixNano()),
			Quantity:  status.FillQty,
			FillPrice: status.FillPrice,
			State:     status.State,
		},
	})

	switch status.State {
	case wire.StateAccepted, wire.StatePartial:
		rec.BookID = status.BookID
	case wire.StateRejected, wire.StateCancelled, wire.StateFull:
		*rec = domain.OrderRecord{}
		g.ids.Release(slotid.ID(status.SystemID))
	}
}

func rejection(clientID, externalOrderID uint64) domain.ServerOrderStatus {
	return domain.ServerOrderStatus{
		ClientID: clientID,
		Status: wire.OrderStatus{
			OrderID: externalOrderID,
			State:   wire.StateRejected,
		},
	}
}
