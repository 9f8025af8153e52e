package console

import (
	"strings"
	"testing"
	"time"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/domain"
)

func TestRunDispatchesKnownServerCommands(t *testing.T) {
	hub := bus.NewHub(16)
	go hub.RunSystemDispatcher()
	defer hub.StopSystemDispatcher()

	got := make(chan domain.ConsoleCommand, 8)
	hub.SubscribeSystemKeyed(domain.CommandPriceFeedStart, func(msg any) {
		got <- msg.(domain.ConsoleCommand)
	})
	hub.SubscribeSystemKeyed(domain.CommandShutdown, func(msg any) {
		got <- msg.(domain.ConsoleCommand)
	})

	r := New(hub, ServerBindings(), nil)
	r.Run(strings.NewReader("p+\nbogus\nq\n"))

	want := []domain.ConsoleCommand{domain.CommandPriceFeedStart, domain.CommandShutdown}
	for _, w := range want {
		select {
		case got := <-got:
			if got != w {
				t.Fatalf("expected %s, got %s", w, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for command %s", w)
		}
	}
}

func TestRunIgnoresUnrecognizedTokens(t *testing.T) {
	hub := bus.NewHub(16)
	go hub.RunSystemDispatcher()
	defer hub.StopSystemDispatcher()

	got := make(chan struct{}, 1)
	hub.SubscribeSystem(func(msg any) { got <- struct{}{} })

	r := New(hub, ClientBindings(), nil)
	r.Run(strings.NewReader("nonsense\nmore nonsense\n"))

	select {
	case <-got:
		t.Fatal("expected no command to be posted for unrecognized input")
	case <-time.After(100 * time.Millisecond):
	}
}
