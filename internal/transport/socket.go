package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Socket is the async TCP/UDP transport (spec.md §4.7): one goroutine per
// pending read/write request stands in for the original's async
// completion scheduler, since Go's net.Conn already gives every socket
// its own blocking-but-cheap-to-goroutine I/O path — there is no
// separate "transport owns scheduling" layer to hand-roll on top of the
// runtime's own netpoller.
type Socket struct {
	conn   net.Conn
	log    *zap.Logger
	closed bool
	mu     sync.Mutex
}

// NewSocket wraps an already-established net.Conn (the listener/dialer
// that produced it is this package's caller's concern — spec.md §4.7
// describes dual acceptors plus a datagram socket at the channel layer,
// not inside the transport itself).
func NewSocket(conn net.Conn, log *zap.Logger) *Socket {
	if log == nil {
		log = zap.NewNop()
	}
	return &Socket{conn: conn, log: log}
}

// DialTCP opens an upstream/downstream-style TCP connection with
// TCP_NODELAY and generous socket buffers (spec.md §4.7: "TCP honors
// no-delay and large socket buffers").
func DialTCP(addr string, timeout time.Duration, log *zap.Logger) (*Socket, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	tuneTCP(conn)
	return NewSocket(conn, log), nil
}

func tuneTCP(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetNoDelay(true)
	_ = tc.SetReadBuffer(1 << 20)
	_ = tc.SetWriteBuffer(1 << 20)
}

// AsyncRx implements Transport: it performs the read on its own
// goroutine and invokes cb with the result.
func (s *Socket) AsyncRx(buf []byte, cb Callback) {
	go func() {
		cb(s.SyncRx(buf))
	}()
}

// AsyncTx implements Transport: retries partial/would-block writes up to
// retries times before giving up, entirely on its own goroutine.
func (s *Socket) AsyncTx(b []byte, retries int, cb Callback) {
	go func() {
		var last IOResult
		for attempt := 0; attempt <= retries; attempt++ {
			last = s.SyncTx(b)
			if last.OK || last.Closed {
				break
			}
			b = b[last.N:]
			if len(b) == 0 {
				last.OK = true
				break
			}
		}
		cb(last)
	}()
}

// SyncRx implements Transport.
func (s *Socket) SyncRx(buf []byte) IOResult {
	n, err := s.conn.Read(buf)
	return s.classify(n, err)
}

// SyncTx implements Transport.
func (s *Socket) SyncTx(b []byte) IOResult {
	n, err := s.conn.Write(b)
	return s.classify(n, err)
}

func (s *Socket) classify(n int, err error) IOResult {
	if err == nil {
		return IOResult{N: n, OK: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return IOResult{N: n, WouldBlock: true, Err: err}
	}
	if errors.Is(err, net.ErrClosed) {
		return IOResult{N: n, Closed: true, Err: err}
	}
	s.log.Debug("socket io error", zap.Error(err))
	return IOResult{N: n, Closed: true, Err: err}
}

// Close implements Transport. Idempotent.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Datagram wraps a net.PacketConn for the UDP price-broadcast socket
// (spec.md §4.7's "one datagram socket for broadcast prices"). It is
// write-only from the server's point of view: BroadcastTo fans TickerPrice
// frames out to every subscribed client address.
type Datagram struct {
	conn net.PacketConn
	log  *zap.Logger
}

// NewDatagram binds a UDP socket at addr for broadcasting.
func NewDatagram(addr string, log *zap.Logger) (*Datagram, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Datagram{conn: conn, log: log}, nil
}

// BroadcastTo writes b to every address in dests, logging (not failing)
// individual send errors — a broadcast price update is best-effort per
// spec.md §1's scope (no guaranteed delivery semantics for market data).
func (d *Datagram) BroadcastTo(b []byte, dests []net.Addr) {
	for _, addr := range dests {
		if _, err := d.conn.WriteTo(b, addr); err != nil {
			d.log.Debug("broadcast send failed", zap.Stringer("addr", addr), zap.Error(err))
		}
	}
}

// Close closes the underlying packet connection.
func (d *Datagram) Close() error { return d.conn.Close() }
