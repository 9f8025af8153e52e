package wire

import "testing"

func TestFramerRoundTripTwoMessages(t *testing.T) {
	codec := BinaryCodec{}
	framer := NewFramer(codec)

	msg1 := Order{ID: 1, Ticker: TickerFromString("AAPL"), Quantity: 10, Price: 100, Action: ActionBuy}
	msg2 := Order{ID: 2, Ticker: TickerFromString("GOOG"), Quantity: 5, Price: 200, Action: ActionSell}

	buf := make([]byte, 512)
	n1, err := framer.Frame(msg1, buf)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := framer.Frame(msg2, buf[n1:])
	if err != nil {
		t.Fatal(err)
	}

	var got []any
	consumed, err := framer.Unframe(buf[:n1+n2], func(m any) error {
		got = append(got, m)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if consumed != n1+n2 {
		t.Fatalf("expected to consume %d bytes, got %d", n1+n2, consumed)
	}
	if len(got) != 2 || got[0] != msg1 || got[1] != msg2 {
		t.Fatalf("expected [%v %v] in order, got %v", msg1, msg2, got)
	}
}

func TestFramerIncompleteFrameWaits(t *testing.T) {
	codec := BinaryCodec{}
	framer := NewFramer(codec)
	buf := make([]byte, 512)
	n, err := framer.Frame(Order{ID: 1, Ticker: TickerFromString("AAPL"), Quantity: 1, Price: 1}, buf)
	if err != nil {
		t.Fatal(err)
	}

	var got []any
	consumed, err := framer.Unframe(buf[:n-1], func(m any) error {
		got = append(got, m)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if consumed != 0 || len(got) != 0 {
		t.Fatalf("expected no dispatch on incomplete frame, got consumed=%d dispatched=%d", consumed, len(got))
	}
}

func TestFramerOversizeRejected(t *testing.T) {
	codec := BinaryCodec{}
	framer := NewFramer(codec)
	buf := make([]byte, 8)
	buf[0] = 0xff
	buf[1] = 0xff // body_size = 65535 > maxFrameBody

	_, err := framer.Unframe(buf, func(any) error { return nil })
	if err == nil {
		t.Fatal("expected oversize frame to be rejected")
	}
}
