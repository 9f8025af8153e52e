// Package console implements the interactive terminal command loop named
// in spec.md §6: the server recognizes "p+/p-/t+/t-/q" and the client
// mirrors with "s+/s-/t+/t-/q". Grounded on the original's
// ConsoleReader/ConsoleManager (common/src/console_reader.hpp,
// common/src/console_manager.hpp), which poll stdin on a 200ms timer and
// publish the matched command onto the system bus. Go has no non-blocking
// stdin read without a raw-mode terminal, so this port takes the more
// idiomatic path: a single goroutine blocked in bufio.Scanner.Scan,
// rather than the original's timer-polled non-blocking check — the
// observable behavior (one command dispatched per line of input) is the
// same, the mechanism is simpler.
package console

import (
	"bufio"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/domain"
)

// Binding maps one command token to the ConsoleCommand posted for it.
type Binding struct {
	Token       string
	Command     domain.ConsoleCommand
	Description string
}

// ServerBindings is spec.md §6's server command set: p+/p-/t+/t-/q.
func ServerBindings() []Binding {
	return []Binding{
		{"p+", domain.CommandPriceFeedStart, "start price feed"},
		{"p-", domain.CommandPriceFeedStop, "stop price feed"},
		{"t+", domain.CommandTelemetryStart, "start telemetry"},
		{"t-", domain.CommandTelemetryStop, "stop telemetry"},
		{"q", domain.CommandShutdown, "shut down"},
	}
}

// ClientBindings is spec.md §6's client command set: s+/s-/t+/t-/q.
func ClientBindings() []Binding {
	return []Binding{
		{"s+", domain.CommandSyntheticStart, "start synthetic trading"},
		{"s-", domain.CommandSyntheticStop, "stop synthetic trading"},
		{"t+", domain.CommandTelemetryStart, "start telemetry"},
		{"t-", domain.CommandTelemetryStop, "stop telemetry"},
		{"q", domain.CommandShutdown, "shut down"},
	}
}

// Reader reads one command token per line from an input stream and posts
// the matching ConsoleCommand on the system bus, keyed so a single
// interested subscriber (the price feed, the telemetry drainer, the
// shutdown handler) can register just for its own command via
// Hub.SubscribeSystemKeyed.
type Reader struct {
	hub      *bus.Hub
	bindings map[string]domain.ConsoleCommand
	log      *zap.Logger
}

// New builds a Reader dispatching bindings onto hub.
func New(hub *bus.Hub, bindings []Binding, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	m := make(map[string]domain.ConsoleCommand, len(bindings))
	for _, b := range bindings {
		m[b.Token] = b.Command
	}
	return &Reader{hub: hub, bindings: m, log: log}
}

// PrintCommands logs the available commands, mirroring the original's
// ConsoleManager::printCommands.
func (r *Reader) PrintCommands(bindings []Binding) {
	r.log.Info("commands:")
	for _, b := range bindings {
		r.log.Info("command", zap.String("token", b.Token), zap.String("action", b.Description))
	}
}

// Run blocks reading lines from in until EOF or in's read loop errors,
// posting a keyed system-bus command for every line that matches a known
// token; unrecognized lines are ignored, matching the original's
// commands_.find(input) == end() no-op. Run returns when input is
// exhausted (on a real terminal: when stdin closes or the process is
// asked to stop reading by closing the other end of a pipe).
func (r *Reader) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		cmd, ok := r.bindings[token]
		if !ok {
			r.log.Debug("unrecognized console command", zap.String("input", token))
			continue
		}
		r.log.Info("console command", zap.String("token", token), zap.Stringer("command", cmd))
		r.hub.PostSystemKeyed(cmd, cmd)
	}
}
