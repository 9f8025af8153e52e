package cli

import (
	"strings"
	"testing"

	"github.com/rishav/hft-engine/internal/wire"
)

func TestFormatPriceRendersFixedPointCents(t *testing.T) {
	if got := FormatPrice(15050); got != "150.50" {
		t.Fatalf("expected 150.50, got %s", got)
	}
	if got := FormatPrice(5); got != "0.05" {
		t.Fatalf("expected 0.05, got %s", got)
	}
}

func TestFormatQuantityAddsThousandsSeparators(t *testing.T) {
	if got := FormatQuantity(1234567); got != "1,234,567" {
		t.Fatalf("got %s", got)
	}
	if got := FormatQuantity(42); got != "42" {
		t.Fatalf("got %s", got)
	}
}

func TestBookRendersSortedTickers(t *testing.T) {
	b := NewBook()
	b.Update(wire.TickerPrice{Ticker: wire.TickerFromString("MSFT"), Price: 30000})
	b.Update(wire.TickerPrice{Ticker: wire.TickerFromString("AAPL"), Price: 15050})

	out := b.Render()
	aaplIdx := strings.Index(out, "AAPL")
	msftIdx := strings.Index(out, "MSFT")
	if aaplIdx == -1 || msftIdx == -1 || aaplIdx > msftIdx {
		t.Fatalf("expected AAPL before MSFT, got:\n%s", out)
	}
}

func TestStatsRecordClassifiesByState(t *testing.T) {
	var s Stats
	s.Record(wire.OrderStatus{State: wire.StateAccepted})
	s.Record(wire.OrderStatus{State: wire.StateFull})
	s.Record(wire.OrderStatus{State: wire.StatePartial})
	s.Record(wire.OrderStatus{State: wire.StateRejected})
	s.Record(wire.OrderStatus{State: wire.StateCancelled})

	if s.Accepted != 1 || s.Filled != 2 || s.Rejected != 1 || s.Canceled != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
