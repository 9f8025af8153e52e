// Package wire defines the network-visible message types and their
// binary layout (spec.md §6), plus the internal events that cross
// between gateway, coordinator, and shards on the market bus. Field
// layout is adapted from the teacher's internal/orders/types.go (fixed-
// point int64 cents, nanosecond timestamps) but trimmed to exactly the
// data model spec.md §3/§6 specify — the teacher's Market/IOC/FOK order
// types and string-keyed symbols are dropped because the wire Order here
// has a fixed 4-byte ticker and exactly four actions (Buy, Sell, Cancel,
// Modify); preserving the teacher's richer order-type set would break
// the fixed wire layout spec.md §6 mandates.
package wire

import "fmt"

// Action is the order action on the wire (spec.md §6).
type Action uint8

const (
	ActionBuy Action = iota
	ActionSell
	ActionCancel
	ActionModify
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	case ActionCancel:
		return "CANCEL"
	case ActionModify:
		return "MODIFY"
	default:
		return "UNKNOWN"
	}
}

// IsBuy reports whether a is ActionBuy. Cancel/Modify are not
// side-bearing on their own; callers resolve them via the existing order
// record.
func (a Action) IsBuy() bool { return a == ActionBuy }

// OrderState is the lifecycle state reported back to the client.
type OrderState uint8

const (
	StateAccepted OrderState = iota
	StateRejected
	StatePartial
	StateFull
	StateCancelled
)

func (s OrderState) String() string {
	switch s {
	case StateAccepted:
		return "ACCEPTED"
	case StateRejected:
		return "REJECTED"
	case StatePartial:
		return "PARTIAL"
	case StateFull:
		return "FULL"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Ticker is the fixed 4-byte symbol used on the wire.
type Ticker [4]byte

func TickerFromString(s string) Ticker {
	var t Ticker
	copy(t[:], s)
	return t
}

func (t Ticker) String() string {
	n := 0
	for n < len(t) && t[n] != 0 {
		n++
	}
	return string(t[:n])
}

// Order is the client->server wire message (spec.md §6).
type Order struct {
	ID       uint64
	Created  uint64
	Ticker   Ticker
	Quantity uint32
	Price    uint32
	Action   Action
}

// Valid reports whether the order passes the one invariant spec.md §3
// requires synchronously: price > 0.
func (o Order) Valid() bool { return o.Price > 0 }

func (o Order) String() string {
	return fmt.Sprintf("Order{id=%d %s %s qty=%d price=%d}", o.ID, o.Action, o.Ticker, o.Quantity, o.Price)
}

// OrderStatus is the server->client wire message (spec.md §6).
// SystemID is the gateway-assigned system-ID (spec.md §4.13: "synthesize
// ServerOrderStatus{client_id, {external_id, system_id_raw, ...}}") —
// clients that want to cancel or modify a resting order must echo this
// value back as the Order.ID of the follow-up Cancel/Modify message,
// since the gateway indexes its OrderRecord table by system-ID, not by
// the client's own external order ID.
type OrderStatus struct {
	OrderID   uint64
	SystemID  uint32
	Timestamp uint64
	Quantity  uint32
	FillPrice uint32
	State     OrderState
}

// LoginRequest is the client->server upstream login message.
type LoginRequest struct {
	Name     string // <= 32 bytes
	Password string // <= 32 bytes
}

// LoginResponse is the server->client login result, used both for the
// upstream login handshake and the downstream token-bind handshake.
type LoginResponse struct {
	Token uint64
	Ok    bool
	Error string // <= 32 bytes
}

// TokenBindRequest is the client->server (downstream) message binding a
// downstream socket to an already-authenticated session.
type TokenBindRequest struct {
	Token uint64
}

// TickerPrice is the server->clients UDP broadcast message.
type TickerPrice struct {
	Ticker Ticker
	Price  uint32
}
