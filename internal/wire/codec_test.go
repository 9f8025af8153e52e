package wire

import "testing"

func TestCodecRoundTrip(t *testing.T) {
	codec := BinaryCodec{}
	buf := make([]byte, 256)

	cases := []any{
		LoginRequest{Name: "alice", Password: "secret"},
		LoginResponse{Token: 99, Ok: true, Error: ""},
		TokenBindRequest{Token: 99},
		Order{ID: 42, Created: 123, Ticker: TickerFromString("GOOG"), Quantity: 10, Price: 100, Action: ActionBuy},
		OrderStatus{OrderID: 42, Timestamp: 555, Quantity: 10, FillPrice: 100, State: StateFull},
		TickerPrice{Ticker: TickerFromString("AAPL"), Price: 15000},
	}

	for _, msg := range cases {
		n, err := codec.Serialize(msg, buf)
		if err != nil {
			t.Fatalf("serialize %T: %v", msg, err)
		}
		got, consumed, err := codec.Deserialize(buf[:n])
		if err != nil {
			t.Fatalf("deserialize %T: %v", msg, err)
		}
		if consumed != n {
			t.Fatalf("%T: expected to consume %d bytes, got %d", msg, n, consumed)
		}
		if got != msg {
			t.Fatalf("%T: round-trip mismatch: got %+v want %+v", msg, got, msg)
		}
	}
}

func TestDeserializeIncompleteReturnsZero(t *testing.T) {
	codec := BinaryCodec{}
	buf := make([]byte, 256)
	n, err := codec.Serialize(Order{ID: 1, Ticker: TickerFromString("AAPL"), Quantity: 1, Price: 1}, buf)
	if err != nil {
		t.Fatal(err)
	}
	msg, consumed, err := codec.Deserialize(buf[:n-1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != nil || consumed != 0 {
		t.Fatalf("expected incomplete decode to report nothing, got msg=%v consumed=%d", msg, consumed)
	}
}
