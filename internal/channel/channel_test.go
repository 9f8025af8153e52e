package channel

import (
	"testing"
	"time"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/transport"
	"github.com/rishav/hft-engine/internal/wire"
)

// fakeTransport is an in-memory Transport double driven entirely by test
// code: Feed enqueues bytes for the next AsyncRx to deliver, and Written
// records what AsyncTx was asked to send.
type fakeTransport struct {
	rx      chan []byte
	written chan []byte
	closed  chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		rx:      make(chan []byte, 8),
		written: make(chan []byte, 8),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) Feed(b []byte) { f.rx <- b }

func (f *fakeTransport) AsyncRx(buf []byte, cb transport.Callback) {
	go func() {
		select {
		case b := <-f.rx:
			n := copy(buf, b)
			cb(transport.IOResult{N: n, OK: true})
		case <-f.closed:
			cb(transport.IOResult{Closed: true})
		}
	}()
}

func (f *fakeTransport) AsyncTx(b []byte, retries int, cb transport.Callback) {
	cp := append([]byte(nil), b...)
	f.written <- cp
	cb(transport.IOResult{N: len(b), OK: true})
}

func (f *fakeTransport) SyncRx(buf []byte) transport.IOResult { return transport.IOResult{} }
func (f *fakeTransport) SyncTx(b []byte) transport.IOResult   { return transport.IOResult{} }
func (f *fakeTransport) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func newTestChannel(t *testing.T, ft *fakeTransport) (*Channel, *bus.Hub) {
	t.Helper()
	hub := bus.NewHub(16)
	view := bus.NewRestrictedView(hub, wire.Order{}, wire.LoginRequest{}, domain.ChannelStatusEvent{})
	ch, err := New(1, ft, view, wire.BinaryCodec{}, 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	return ch, hub
}

func TestChannelUnframesInboundOrderOntoBus(t *testing.T) {
	ft := newFakeTransport()
	ch, hub := newTestChannel(t, ft)

	received := make(chan wire.Order, 1)
	bus.RegisterMarket(hub, func(o wire.Order) { received <- o })

	ch.StartReading()

	order := wire.Order{ID: 1, Ticker: wire.TickerFromString("AAPL"), Quantity: 10, Price: 100, Action: wire.ActionBuy}
	frameBuf := make([]byte, 64)
	framer := wire.NewFramer(wire.BinaryCodec{})
	n, err := framer.Frame(order, frameBuf)
	if err != nil {
		t.Fatal(err)
	}
	ft.Feed(frameBuf[:n])

	select {
	case got := <-received:
		if got != order {
			t.Fatalf("expected %+v, got %+v", order, got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the order to reach the bus")
	}
}

func TestChannelSendFramesAndWritesToTransport(t *testing.T) {
	ft := newFakeTransport()
	ch, _ := newTestChannel(t, ft)

	status := wire.OrderStatus{OrderID: 5, State: wire.StateAccepted}
	if err := ch.Send(status); err != nil {
		t.Fatal(err)
	}

	select {
	case b := <-ft.written:
		framer := wire.NewFramer(wire.BinaryCodec{})
		var got wire.OrderStatus
		_, err := framer.Unframe(b, func(msg any) error {
			got = msg.(wire.OrderStatus)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if got != status {
			t.Fatalf("expected %+v, got %+v", status, got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the write")
	}
}

func TestChannelClosesOnTransportDisconnect(t *testing.T) {
	ft := newFakeTransport()
	hub := bus.NewHub(16)
	view := bus.NewRestrictedView(hub, wire.Order{}, domain.ChannelStatusEvent{})

	statusCh := make(chan domain.ChannelStatusEvent, 8)
	bus.RegisterMarket(hub, func(e domain.ChannelStatusEvent) { statusCh <- e })

	ch, err := New(1, ft, view, wire.BinaryCodec{}, 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	<-statusCh // Connected, posted by New

	ch.StartReading()
	ft.Close()

	select {
	case e := <-statusCh:
		if e.Status != domain.StateDisconnected {
			t.Fatalf("expected Disconnected, got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect status")
	}
}
