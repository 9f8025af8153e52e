// Package domain holds the internal event shapes that cross the gateway,
// coordinator, shard, and session-manager boundaries on the market and
// system buses (spec.md §2's dataflow, §3's OrderRecord/Session). These
// never touch the wire directly — internal/wire owns the external
// protocol — but they carry the same fixed-point price/quantity fields,
// following the teacher's internal/orders/types.go convention of int64
// cents (narrowed to uint32 here to match the wire Order's field widths
// spec.md §6 specifies).
package domain

import (
	"github.com/google/uuid"

	"github.com/rishav/hft-engine/internal/wire"
)

// InternalOrderEvent is what the gateway hands to the coordinator after
// allocating (or resolving, for Cancel/Modify) a system ID.
type InternalOrderEvent struct {
	SystemID uint32
	Ticker   wire.Ticker
	Quantity uint32
	Price    uint32
	Action   wire.Action
}

// InternalOrderStatus is what a shard's order book emits back toward the
// gateway for every accept/fill/reject/cancel.
type InternalOrderStatus struct {
	SystemID  uint32
	BookID    uint32
	FillQty   uint32
	FillPrice uint32
	State     wire.OrderState
}

// OrderRecord is the gateway's per-system-ID bookkeeping row (spec.md
// §3). BookID is orderbook.InvalidBookID until the shard reports one.
type OrderRecord struct {
	Created    int64
	SystemID   uint32
	BookID     uint32
	ClientID   uint64
	ExternalID uint64
	Ticker     wire.Ticker
}

// ServerOrder is a wire Order with the client ID the session manager
// attached at the upstream boundary.
type ServerOrder struct {
	ClientID uint64
	Order    wire.Order
}

// ServerOrderStatus is a wire OrderStatus addressed to a specific client,
// for the session manager to route to that client's downstream channel.
type ServerOrderStatus struct {
	ClientID uint64
	Status   wire.OrderStatus
}

// ServerLoginResponse is the authenticator's reply to a LoginRequest,
// still carrying the connection ID so the session manager can find the
// right unauthenticated upstream channel.
type ServerLoginResponse struct {
	ConnectionID uint64
	ClientID     uint64
	Ok           bool
	Error        string
}

// ConnState is the lifecycle state of a channel or connection.
type ConnState uint8

const (
	StateConnected ConnState = iota
	StateDisconnected
	StateError
)

// ChannelStatusEvent is published by a Channel on every state transition.
type ChannelStatusEvent struct {
	ChannelID uint64
	Status    ConnState
}

// ConnectionStatusEvent is the transport-level lifecycle signal
// cmd/gatewayd posts on the system bus when an upstream connection opens
// or closes. Session teardown is not driven by it: the upstream channel's
// ChannelStatusEvent handler calls the session manager directly. TraceID is an
// internal correlation id minted once per accepted connection (the
// accept loop in cmd/gatewayd calls uuid.New()) purely for log
// correlation across the gateway/session/channel boundary — it never
// appears on the wire and is unrelated to the session token.
type ConnectionStatusEvent struct {
	ConnectionID uint64
	TraceID      uuid.UUID
	Status       ConnState
}

// ConsoleCommand is a short terminal command token such as "p+" or "q" (spec.md §6)
// parsed by internal/console and posted keyed on the system bus, so any
// subsystem can subscribe to the one command it cares about via
// Hub.SubscribeSystemKeyed(cmd, ...).
type ConsoleCommand uint8

const (
	CommandPriceFeedStart ConsoleCommand = iota
	CommandPriceFeedStop
	CommandTelemetryStart
	CommandTelemetryStop
	CommandSyntheticStart
	CommandSyntheticStop
	CommandShutdown
)

// String names the command for log lines, mirroring the original's
// utils::toString(command) used in ConsoleManager::printCommands.
func (c ConsoleCommand) String() string {
	switch c {
	case CommandPriceFeedStart:
		return "price-feed-start"
	case CommandPriceFeedStop:
		return "price-feed-stop"
	case CommandTelemetryStart:
		return "telemetry-start"
	case CommandTelemetryStop:
		return "telemetry-stop"
	case CommandSyntheticStart:
		return "synthetic-start"
	case CommandSyntheticStop:
		return "synthetic-stop"
	case CommandShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// InternalError is posted on the system bus by any subsystem that hits
// unrecoverable resource exhaustion (spec.md §7); the control center
// treats it as shutdown-inducing. Supplements spec.md per
// original_source/common/src/internal_error.hpp, which spec.md's
// distillation references but never shapes.
type InternalError struct {
	Code string
	What string
}
