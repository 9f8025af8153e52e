// Package risk implements the synchronous pre-trade checks the gateway
// runs before an order reaches allocation (spec.md §3's "orders failing
// validation are rejected synchronously", extended beyond the bare
// price>0 check). Grounded on the teacher's internal/risk/checker.go,
// trimmed to the stateless checks that fit spec.md's scope: order size
// and order value limits. The teacher's position/daily-volume/price-band
// tracking is dropped — it requires per-account, per-symbol state that
// contradicts spec.md §1's "no persistence of order state" non-goal
// (those checks model account balances and traded history, not order
// validity), and no SPEC_FULL.md component owns an account ledger.
package risk

import "github.com/rishav/hft-engine/internal/wire"

// Config bounds the two synchronous, stateless checks this package
// performs.
type Config struct {
	MaxOrderSize  uint32 // maximum quantity per order
	MaxOrderValue uint64 // maximum price*quantity per order
}

// DefaultConfig returns generous limits, matching the teacher's
// risk.DefaultConfig() convention of shipping sane non-zero defaults
// rather than leaving a zero-value Config that rejects everything.
func DefaultConfig() Config {
	return Config{
		MaxOrderSize:  1_000_000,
		MaxOrderValue: 1_000_000_000,
	}
}

// Checker runs the configured checks. It holds no mutable state: both
// checks are pure functions of the order and the configured limits.
type Checker struct {
	config Config
}

// NewChecker creates a Checker bound to config.
func NewChecker(config Config) *Checker {
	return &Checker{config: config}
}

// Check reports whether order passes every configured limit, and if not,
// why. Called by the gateway immediately after wire.Order.Valid(),
// before a system ID is allocated.
func (c *Checker) Check(order wire.Order) (ok bool, reason string) {
	if order.Quantity > c.config.MaxOrderSize {
		return false, "order size exceeds configured maximum"
	}
	value := uint64(order.Price) * uint64(order.Quantity)
	if value > c.config.MaxOrderValue {
		return false, "order value exceeds configured maximum"
	}
	return true, ""
}
