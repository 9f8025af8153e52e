// Package telemetry defines the runtime-metrics record cmd/gatewayd
// builds from the StatsEvents the core posts on the stream bus
// (spec.md §4.14's "Statistics",
// SPEC_FULL.md §7.4) and a dummy sink matching the original's
// dummy_telemetry_adapter.hpp — a real sink is an external collaborator
// per spec.md §1's scope boundary, so the in-process default just counts
// what it was handed.
package telemetry

import "sync/atomic"

// Record is one runtime-metrics sample: requests-per-second delta,
// cumulative opened-order count, and per-shard queue depth at sample
// time. ShardQueueDepth is a slice, so copies of a Record share its
// backing array.
type Record struct {
	RPSDelta        uint64
	TotalOpened     uint64
	ShardQueueDepth []uint32
}

// Sink receives Records as they are produced.
type Sink interface {
	Emit(Record)
}

// DummySink counts records without persisting or forwarding
// them anywhere — the in-process stand-in for an external telemetry
// collector (spec.md §1 externalizes the real sink).
type DummySink struct {
	count atomic.Uint64
}

// NewDummySink creates a DummySink.
func NewDummySink() *DummySink { return &DummySink{} }

// Emit implements Sink.
func (s *DummySink) Emit(Record) { s.count.Add(1) }

// Count returns how many records this sink has seen.
func (s *DummySink) Count() uint64 { return s.count.Load() }
