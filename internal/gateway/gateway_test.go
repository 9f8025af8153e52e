package gateway

import (
	"testing"
	"time"

	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/risk"
	"github.com/rishav/hft-engine/internal/wire"
)

type recordingDispatcher struct {
	events []domain.InternalOrderEvent
}

func (d *recordingDispatcher) Dispatch(e domain.InternalOrderEvent) {
	d.events = append(d.events, e)
}

type recordingStatuses struct {
	statuses []domain.ServerOrderStatus
}

func (s *recordingStatuses) PostStatus(st domain.ServerOrderStatus) {
	s.statuses = append(s.statuses, st)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInvalidOrderRejectedSynchronously(t *testing.T) {
	d := &recordingDispatcher{}
	s := &recordingStatuses{}
	gw, err := New(d, s, risk.DefaultConfig(), nil, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleInbound(domain.ServerOrder{
		ClientID: 1,
		Order:    wire.Order{ID: 1, Price: 0, Action: wire.ActionBuy},
	})

	if len(d.events) != 0 {
		t.Fatal("expected no dispatch for an invalid order")
	}
	if len(s.statuses) != 1 || s.statuses[0].Status.State != wire.StateRejected {
		t.Fatalf("expected a Rejected status, got %+v", s.statuses)
	}
}

func TestNewOrderAllocatesSystemIDAndDispatches(t *testing.T) {
	d := &recordingDispatcher{}
	s := &recordingStatuses{}
	gw, err := New(d, s, risk.DefaultConfig(), nil, fixedClock(time.Unix(100, 0)))
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleInbound(domain.ServerOrder{
		ClientID: 42,
		Order:    wire.Order{ID: 7, Ticker: wire.TickerFromString("AAPL"), Quantity: 10, Price: 150, Action: wire.ActionBuy},
	})

	if len(d.events) != 1 {
		t.Fatalf("expected exactly one dispatched event, got %d", len(d.events))
	}
	ev := d.events[0]
	if ev.Quantity != 10 || ev.Price != 150 || ev.Action != wire.ActionBuy {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.SystemID == 0 {
		t.Fatal("expected a non-zero allocated system ID")
	}
}

func TestOutboundAcceptedRecordsBookIDAndPostsStatus(t *testing.T) {
	d := &recordingDispatcher{}
	s := &recordingStatuses{}
	gw, err := New(d, s, risk.DefaultConfig(), nil, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleInbound(domain.ServerOrder{
		ClientID: 1,
		Order:    wire.Order{ID: 1, Ticker: wire.TickerFromString("GOOG"), Quantity: 5, Price: 100, Action: wire.ActionBuy},
	})
	systemID := d.events[0].SystemID

	gw.HandleOutbound(domain.InternalOrderStatus{SystemID: systemID, BookID: 99, State: wire.StateAccepted})

	if len(s.statuses) != 1 {
		t.Fatalf("expected 1 status (none from inbound, one from outbound accept): got %d", len(s.statuses))
	}
	last := s.statuses[len(s.statuses)-1]
	if last.ClientID != 1 || last.Status.State != wire.StateAccepted {
		t.Fatalf("unexpected status: %+v", last)
	}
	if last.Status.SystemID != systemID {
		t.Fatalf("expected the status to echo the allocated system ID %d, got %d", systemID, last.Status.SystemID)
	}
}

func TestOutboundFullReleasesSystemID(t *testing.T) {
	d := &recordingDispatcher{}
	s := &recordingStatuses{}
	gw, err := New(d, s, risk.DefaultConfig(), nil, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleInbound(domain.ServerOrder{
		ClientID: 1,
		Order:    wire.Order{ID: 1, Ticker: wire.TickerFromString("GOOG"), Quantity: 5, Price: 100, Action: wire.ActionBuy},
	})
	systemID := d.events[0].SystemID

	gw.HandleOutbound(domain.InternalOrderStatus{SystemID: systemID, FillQty: 5, FillPrice: 100, State: wire.StateFull})

	// A second status for the same (now-released) system ID should not
	// find a matching record (SystemID field in the zeroed record no
	// longer equals the stale systemID).
	before := len(s.statuses)
	gw.HandleOutbound(domain.InternalOrderStatus{SystemID: systemID, State: wire.StateFull})
	if len(s.statuses) != before {
		t.Fatalf("expected no additional status for an already-released system ID, got %d new", len(s.statuses)-before)
	}
}

func TestRiskCheckRejectsOversizeOrder(t *testing.T) {
	d := &recordingDispatcher{}
	s := &recordingStatuses{}
	gw, err := New(d, s, risk.Config{MaxOrderSize: 5, MaxOrderValue: 1_000_000}, nil, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleInbound(domain.ServerOrder{
		ClientID: 1,
		Order:    wire.Order{ID: 1, Ticker: wire.TickerFromString("GOOG"), Quantity: 10, Price: 100, Action: wire.ActionBuy},
	})

	if len(d.events) != 0 {
		t.Fatal("expected no dispatch for an order failing the risk check")
	}
	if len(s.statuses) != 1 || s.statuses[0].Status.State != wire.StateRejected {
		t.Fatalf("expected a Rejected status, got %+v", s.statuses)
	}
}

func TestCancelRejectsOnClientIDMismatch(t *testing.T) {
	d := &recordingDispatcher{}
	s := &recordingStatuses{}
	gw, err := New(d, s, risk.DefaultConfig(), nil, fixedClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatal(err)
	}

	gw.HandleInbound(domain.ServerOrder{
		ClientID: 1,
		Order:    wire.Order{ID: 1, Ticker: wire.TickerFromString("GOOG"), Quantity: 5, Price: 100, Action: wire.ActionBuy},
	})
	systemID := d.events[0].SystemID

	s.statuses = nil
	gw.HandleInbound(domain.ServerOrder{
		ClientID: 2, // different client
		Order:    wire.Order{ID: uint64(systemID), Price: 1, Action: wire.ActionCancel},
	})

	if len(d.events) != 1 {
		t.Fatalf("expected cancel from wrong client not to dispatch, total events: %d", len(d.events))
	}
	if len(s.statuses) != 1 || s.statuses[0].Status.State != wire.StateRejected {
		t.Fatalf("expected a Rejected status for client-ID mismatch, got %+v", s.statuses)
	}
}
