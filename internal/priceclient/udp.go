package priceclient

import (
	"net"
	"sync"

	"github.com/rishav/hft-engine/internal/transport"
	"github.com/rishav/hft-engine/internal/wire"
)

// UDPBroadcaster adapts a transport.Datagram to the Broadcaster
// interface, framing every TickerPrice with the wire codec before
// fanning it out over the spec.md §4.7 broadcast socket. Destinations
// are the addresses added with AddDestination; client login does not
// add any (spec.md doesn't specify subscription management for the broadcast
// socket beyond "one datagram socket for broadcast prices").
type UDPBroadcaster struct {
	dg    *transport.Datagram
	codec wire.Codec

	mu    sync.RWMutex
	dests []net.Addr
}

// NewUDPBroadcaster wraps dg, encoding with codec.
func NewUDPBroadcaster(dg *transport.Datagram, codec wire.Codec) *UDPBroadcaster {
	return &UDPBroadcaster{dg: dg, codec: codec}
}

// AddDestination registers addr to receive future broadcasts.
func (u *UDPBroadcaster) AddDestination(addr net.Addr) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dests = append(u.dests, addr)
}

// Broadcast implements Broadcaster.
func (u *UDPBroadcaster) Broadcast(tp wire.TickerPrice) {
	buf := make([]byte, 16)
	n, err := u.codec.Serialize(tp, buf)
	if err != nil {
		return
	}

	u.mu.RLock()
	dests := u.dests
	u.mu.RUnlock()
	u.dg.BroadcastTo(buf[:n], dests)
}
