package wire

import (
	"encoding/binary"
	"fmt"
)

// maxFrameBody caps the body_size header (a uint16, so the wire format
// itself tops out at 65535, but the engine never needs frames anywhere
// near that — this is a sanity fence against a corrupted/attacker-
// controlled size header).
const maxFrameBody = 4096

// Framer delimits a byte stream into discrete codec messages. The
// default implementation is length-prefixed (spec.md §4.6): a 2-byte
// little-endian body size header followed by the codec-encoded body.
type Framer struct {
	codec Codec
}

// NewFramer creates a length-prefixed Framer over the given Codec.
func NewFramer(codec Codec) *Framer {
	return &Framer{codec: codec}
}

// Frame writes msg into buf as [u16 body_size][body], returning the total
// bytes written (including the 2-byte header).
func (f *Framer) Frame(msg any, buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("wire: frame buffer too small")
	}
	n, err := f.codec.Serialize(msg, buf[2:])
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint16(buf[:2], uint16(n))
	return n + 2, nil
}

// Unframe repeatedly extracts complete frames from span and invokes
// onMessage for each, in order, until no complete frame remains. It
// returns the total number of bytes consumed across all frames found.
// An oversize or malformed body aborts with an error and no partial
// dispatch of the offending frame (earlier, already-dispatched frames in
// this call are not rolled back — the caller has already acted on them).
func (f *Framer) Unframe(span []byte, onMessage func(any) error) (int, error) {
	consumed := 0
	for {
		remaining := span[consumed:]
		if len(remaining) < 2 {
			return consumed, nil
		}
		bodySize := int(binary.LittleEndian.Uint16(remaining[:2]))
		if bodySize > maxFrameBody {
			return consumed, fmt.Errorf("wire: frame body %d exceeds limit %d", bodySize, maxFrameBody)
		}
		if len(remaining) < 2+bodySize {
			return consumed, nil // incomplete frame, wait for more bytes
		}

		body := remaining[2 : 2+bodySize]
		msg, n, err := f.codec.Deserialize(body)
		if err != nil {
			return consumed, err
		}
		if msg == nil || n != bodySize {
			return consumed, fmt.Errorf("wire: codec could not fully decode a %d-byte frame body", bodySize)
		}
		if err := onMessage(msg); err != nil {
			return consumed, err
		}
		consumed += 2 + bodySize
	}
}

// DummyFramer is used when the codec itself produces fixed-size,
// self-delimiting records (SBE-style) and no length prefix is needed —
// spec.md §4.6's alternative framer. It loops calling the codec directly
// until a zero-length decode signals "no more complete records".
type DummyFramer struct {
	codec Codec
}

func NewDummyFramer(codec Codec) *DummyFramer {
	return &DummyFramer{codec: codec}
}

func (f *DummyFramer) Unframe(span []byte, onMessage func(any) error) (int, error) {
	consumed := 0
	for {
		msg, n, err := f.codec.Deserialize(span[consumed:])
		if err != nil {
			return consumed, err
		}
		if n == 0 {
			return consumed, nil
		}
		if err := onMessage(msg); err != nil {
			return consumed, err
		}
		consumed += n
	}
}
