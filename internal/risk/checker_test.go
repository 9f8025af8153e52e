package risk

import (
	"testing"

	"github.com/rishav/hft-engine/internal/wire"
)

func TestCheckRejectsOversizeOrder(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 100, MaxOrderValue: 1_000_000})
	ok, reason := c.Check(wire.Order{Quantity: 101, Price: 10})
	if ok || reason == "" {
		t.Fatalf("expected rejection for oversize order, got ok=%v reason=%q", ok, reason)
	}
}

func TestCheckRejectsOvervalueOrder(t *testing.T) {
	c := NewChecker(Config{MaxOrderSize: 1000, MaxOrderValue: 500})
	ok, reason := c.Check(wire.Order{Quantity: 10, Price: 100})
	if ok || reason == "" {
		t.Fatalf("expected rejection for overvalue order, got ok=%v reason=%q", ok, reason)
	}
}

func TestCheckPassesWithinLimits(t *testing.T) {
	c := NewChecker(DefaultConfig())
	ok, _ := c.Check(wire.Order{Quantity: 100, Price: 50})
	if !ok {
		t.Fatal("expected an order within default limits to pass")
	}
}
