// Package cli formats wire-protocol values for terminal display in
// cmd/marketclient, grounded on the teacher's cmd/client/main.go
// "book"/"stats" pretty-printers (ASCII section headers, asks-above-bids
// layout, spread/mid summary line). Display only: prices stay the
// hot-path's fixed-point uint32 cents everywhere else in this module,
// and shopspring/decimal is used here purely to render that integer as
// a human price string (SPEC_FULL.md §6 DOMAIN STACK) — nothing in this
// package round-trips back into wire.Order or domain.InternalOrder.
package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rishav/hft-engine/internal/wire"
)

// priceScale is the number of fixed-point decimal places the wire
// protocol's uint32 price fields carry (cents).
const priceScale = 2

// FormatPrice renders a wire price (integer cents) as a decimal dollar
// string, e.g. 15050 -> "150.50".
func FormatPrice(price uint32) string {
	return decimal.New(int64(price), -priceScale).StringFixed(priceScale)
}

// FormatQuantity renders a share quantity with thousands separators.
func FormatQuantity(qty uint32) string {
	s := fmt.Sprintf("%d", qty)
	var b strings.Builder
	for i, r := range s {
		if i != 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatOrder renders an outgoing order for echo/confirmation display.
func FormatOrder(o wire.Order) string {
	return fmt.Sprintf("#%d %s %s qty=%s price=%s", o.ID, o.Action, o.Ticker, FormatQuantity(o.Quantity), FormatPrice(o.Price))
}

// FormatOrderStatus renders an incoming status update.
func FormatOrderStatus(s wire.OrderStatus) string {
	if s.FillPrice == 0 {
		return fmt.Sprintf("order #%d: %s", s.OrderID, s.State)
	}
	return fmt.Sprintf("order #%d: %s qty=%s @ %s", s.OrderID, s.State, FormatQuantity(s.Quantity), FormatPrice(s.FillPrice))
}

// Book tracks the latest broadcast price per ticker, as received in
// TickerPrice messages on the client's downstream channel;
// cmd/marketclient renders it on a periodic timer.
// This is a best-known-price ticker, not a depth book — the client has
// no visibility into resting orders on the server's order book, only
// the TickerPrice broadcasts it receives.
type Book struct {
	last map[wire.Ticker]uint32
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{last: make(map[wire.Ticker]uint32)}
}

// Update records the latest price seen for tp.Ticker.
func (b *Book) Update(tp wire.TickerPrice) {
	b.last[tp.Ticker] = tp.Price
}

// Render formats every known ticker's last price, sorted alphabetically,
// in the teacher's "=== ... ===" section-header style.
func (b *Book) Render() string {
	var out strings.Builder
	fmt.Fprintln(&out, "=== Last Prices ===")
	tickers := make([]string, 0, len(b.last))
	byName := make(map[string]wire.Ticker, len(b.last))
	for t := range b.last {
		tickers = append(tickers, t.String())
		byName[t.String()] = t
	}
	sort.Strings(tickers)
	for _, name := range tickers {
		t := byName[name]
		fmt.Fprintf(&out, "  %-8s %s\n", name, FormatPrice(b.last[t]))
	}
	if len(tickers) == 0 {
		fmt.Fprintln(&out, "  (no prices received yet)")
	}
	return out.String()
}

// Stats accumulates client-side order lifecycle counters, rendered by
// cmd/marketclient on a periodic timer, the client-side mirror of the
// teacher's getStats HTTP call.
type Stats struct {
	Sent     uint64
	Accepted uint64
	Filled   uint64
	Rejected uint64
	Canceled uint64
}

// Record classifies one incoming OrderStatus into the running counters.
func (s *Stats) Record(status wire.OrderStatus) {
	switch status.State {
	case wire.StateAccepted:
		s.Accepted++
	case wire.StateFull, wire.StatePartial:
		s.Filled++
	case wire.StateRejected:
		s.Rejected++
	case wire.StateCancelled:
		s.Canceled++
	}
}

// Render formats the running counters for display.
func (s Stats) Render() string {
	return fmt.Sprintf(
		"=== Client Stats ===\n  sent:     %d\n  accepted: %d\n  filled:   %d\n  rejected: %d\n  canceled: %d\n",
		s.Sent, s.Accepted, s.Filled, s.Rejected, s.Canceled,
	)
}
