// Package appctx threads the process-wide collaborators every
// long-lived component needs — the bus hub, the loaded configuration,
// and the structured logger — as a single injected context value,
// following spec.md §9's design note that singletons "inject as
// process-wide context types" rather than reach for package-level
// globals. Grounded on the teacher's cmd/server/main.go, which builds
// exactly this kind of "everything main() wires together" struct inline;
// this package gives it a name. cmd/gatewayd is its only user; the
// internal packages it wires take their collaborators as plain arguments.
package appctx

import (
	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/config"
)

// Context is the process-wide set of collaborators. It is built once in
// main and passed down by value (a small struct of pointers) rather than
// through a context.Context, since none of these values are
// request-scoped or carry cancellation — context.Context remains
// reserved for per-operation deadlines/cancellation on blocking calls,
// matching the teacher's own use of context.Context only for that
// purpose.
type Context struct {
	Hub    *bus.Hub
	Config config.Config
	Log    *zap.Logger
}

// New builds a Context from its three collaborators.
func New(hub *bus.Hub, cfg config.Config, log *zap.Logger) Context {
	if log == nil {
		log = zap.NewNop()
	}
	return Context{Hub: hub, Config: cfg, Log: log}
}

// Named returns a child logger scoped to component, the convention every
// long-lived subsystem uses to tag its log lines (spec.md §9 / SPEC_FULL
// §5.1).
func (c Context) Named(component string) *zap.Logger {
	return c.Log.Named(component)
}
