// Package channel implements spec.md §4.8: a Channel owns one Transport
// and one restricted bus view, unframing inbound bytes onto the bus and
// framing outbound messages back onto the transport. Grounded on the
// teacher's single-goroutine-per-connection request handling
// (cmd/server/main.go's HTTP handlers, generalized to a persistent
// socket/async-callback model spec.md §4.7/§4.8 actually specify) plus
// internal/slidingbuf and internal/wire for the buffering/framing
// machinery itself.
package channel

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rishav/hft-engine/internal/bus"
	"github.com/rishav/hft-engine/internal/domain"
	"github.com/rishav/hft-engine/internal/slidingbuf"
	"github.com/rishav/hft-engine/internal/transport"
	"github.com/rishav/hft-engine/internal/wire"
)

// bufPool leases fixed-size scratch buffers for framing outbound
// messages, released back to the pool in the write completion callback —
// spec.md §4.8's "acquires a buffer pool lease ... releases lease in the
// completion callback." sync.Pool is the stdlib's direct answer to a
// short-lived scratch-buffer lease; no pack library targets anything
// narrower than a general object pool here.
var bufPool = sync.Pool{
	New: func() any { return make([]byte, 4096) },
}

// Channel reads frames off a Transport into a sliding receive buffer,
// dispatches decoded messages through a restricted bus view, and frames
// outbound messages back onto the transport.
type Channel struct {
	id        uint64
	transport transport.Transport
	view      *bus.RestrictedView
	framer    *wire.Framer
	recv      *slidingbuf.Buffer
	log       *zap.Logger

	state atomic.Uint32 // domain.ConnState
}

// New creates a Channel with id over t, dispatching decoded messages
// through view and framing with codec. recvCapacity sizes the sliding
// receive buffer (spec.md §4.5).
func New(id uint64, t transport.Transport, view *bus.RestrictedView, codec wire.Codec, recvCapacity int, log *zap.Logger) (*Channel, error) {
	buf, err := slidingbuf.New(recvCapacity)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Channel{
		id:        id,
		transport: t,
		view:      view,
		framer:    wire.NewFramer(codec),
		recv:      buf,
		log:       log,
	}
	c.setState(domain.StateConnected)
	return c, nil
}

// ID returns this channel's identity (used as the connection/channel ID
// on ChannelStatusEvent/ConnectionStatusEvent).
func (c *Channel) ID() uint64 { return c.id }

// ChannelID implements session.Sender.
func (c *Channel) ChannelID() uint64 { return c.id }

// State reports the channel's current lifecycle state.
func (c *Channel) State() domain.ConnState { return domain.ConnState(c.state.Load()) }

func (c *Channel) setState(s domain.ConnState) {
	c.state.Store(uint32(s))
	c.view.Post(domain.ChannelStatusEvent{ChannelID: c.id, Status: s})
}

// StartReading begins the async read loop: each completed read feeds the
// sliding buffer, unframes every complete frame onto the bus, and
// re-issues another read until the channel closes or a parse failure
// occurs (spec.md §4.8: "on parse failure closes").
func (c *Channel) StartReading() {
	c.issueRead()
}

func (c *Channel) issueRead() {
	suffix := c.recv.WritableSuffix()
	c.transport.AsyncRx(suffix, c.onReadComplete)
}

func (c *Channel) onReadComplete(r transport.IOResult) {
	if r.Closed {
		c.fail(domain.StateDisconnected)
		return
	}
	if r.WouldBlock {
		c.issueRead()
		return
	}
	if !c.recv.CommitWrite(r.N) {
		c.log.Error("channel: read overflowed sliding buffer", zap.Uint64("channel_id", c.id))
		c.fail(domain.StateError)
		return
	}

	consumed, err := c.framer.Unframe(c.recv.ReadableData(), func(msg any) error {
		c.view.Post(msg)
		return nil
	})
	if err != nil {
		c.log.Warn("channel: frame parse failure", zap.Uint64("channel_id", c.id), zap.Error(err))
		c.fail(domain.StateError)
		return
	}
	c.recv.CommitRead(consumed)
	c.issueRead()
}

// Send frames msg into a leased buffer and posts an async write, freeing
// the lease in the completion callback.
func (c *Channel) Send(msg any) error {
	buf := bufPool.Get().([]byte)
	n, err := c.framer.Frame(msg, buf)
	if err != nil {
		bufPool.Put(buf)
		return fmt.Errorf("channel: frame: %w", err)
	}
	payload := buf[:n]
	c.transport.AsyncTx(payload, 3, func(r transport.IOResult) {
		bufPool.Put(buf)
		if r.Closed {
			c.fail(domain.StateDisconnected)
		}
	})
	return nil
}

func (c *Channel) fail(s domain.ConnState) {
	if c.State() == domain.StateDisconnected || c.State() == domain.StateError {
		return
	}
	c.setState(s)
	_ = c.transport.Close()
}

// Close tears the channel down idempotently, as if the peer disconnected.
func (c *Channel) Close() error {
	c.fail(domain.StateDisconnected)
	return nil
}
