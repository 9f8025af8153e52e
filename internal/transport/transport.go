// Package transport implements spec.md §4.7's two Transport
// implementations behind one contract: an async socket transport (TCP
// for the upstream/downstream channels, UDP for price broadcast) and a
// shared-memory transport. Grounded on the teacher's net/http-handler
// server loop (cmd/server/main.go) generalized from request/response
// HTTP handling down to raw async socket read/write with a callback
// convention, since spec.md §4.7 specifies transports in those terms
// rather than HTTP. Every long-lived transport logs through
// go.uber.org/zap (SPEC_FULL.md §5.1), matching the teacher's use of the
// standard logger generalized to the structured-logging library the
// rest of the pack reaches for.
package transport

// IOResult is the fixed outcome shape every Transport operation reports
// (spec.md §4.7's "{ok, would_block, closed, error} plus byte count").
type IOResult struct {
	N           int
	OK          bool
	WouldBlock  bool
	Closed      bool
	Err         error
}

// Callback is invoked once an asynchronous operation completes.
type Callback func(IOResult)

// Transport is the contract both the socket and shared-memory
// implementations satisfy (spec.md §4.7).
type Transport interface {
	// AsyncRx requests a read into buf; cb is invoked on completion.
	AsyncRx(buf []byte, cb Callback)
	// AsyncTx requests a write of b; cb is invoked on completion. retries
	// bounds how many times a partial/would-block write is retried
	// before giving up.
	AsyncTx(b []byte, retries int, cb Callback)
	// SyncRx reads into buf. An implementation may return WouldBlock
	// rather than wait indefinitely (SHM does after a bounded spin).
	SyncRx(buf []byte) IOResult
	// SyncTx writes b. An implementation may return WouldBlock when it
	// cannot write now (SHM does after a single attempt).
	SyncTx(b []byte) IOResult
	// Close is idempotent.
	Close() error
}
