package wire

import (
	"encoding/binary"
	"fmt"
)

// MessageType tags each wire message so the codec can self-describe the
// payload that follows. Tag values are part of the wire contract, not
// just an implementation detail.
type MessageType uint8

const (
	MsgLoginRequest MessageType = iota + 1
	MsgLoginResponse
	MsgTokenBindRequest
	MsgOrder
	MsgOrderStatus
	MsgTickerPrice
)

// maxStringField bounds Name/Password/Error at the 32-byte limit spec.md
// §6 gives them.
const maxStringField = 32

// Codec serializes domain messages to/from bytes. It plays the role of
// spec.md §4.6's pluggable Serializable<T> strategy: one concrete codec
// (BinaryCodec here) stands in for either the FlatBuffer-style or
// SBE-style strategy the spec allows, chosen because it needs no code
// generation step and keeps every field access a fixed offset, matching
// the original's length-prefixed wire format closely enough to round-trip
// byte for byte.
type Codec interface {
	// Serialize writes msg's encoded bytes into out and returns the
	// number of bytes written.
	Serialize(msg any, out []byte) (int, error)
	// Deserialize decodes one message from the front of data. It returns
	// the decoded message and the number of bytes consumed. If data does
	// not yet hold a complete message, it returns (nil, 0, nil) — not an
	// error — so the framer can wait for more bytes.
	Deserialize(data []byte) (any, int, error)
}

// BinaryCodec is a fixed-layout little-endian codec: one byte of
// MessageType tag followed by the message's fields in declaration order.
type BinaryCodec struct{}

func putString(out []byte, s string) int {
	b := make([]byte, maxStringField)
	copy(b, s)
	copy(out, b)
	return maxStringField
}

func getString(data []byte) string {
	n := 0
	for n < len(data) && data[n] != 0 {
		n++
	}
	return string(data[:n])
}

// Serialize implements Codec.
func (BinaryCodec) Serialize(msg any, out []byte) (int, error) {
	switch m := msg.(type) {
	case LoginRequest:
		need := 1 + maxStringField*2
		if len(out) < need {
			return 0, fmt.Errorf("wire: buffer too small for LoginRequest")
		}
		out[0] = byte(MsgLoginRequest)
		putString(out[1:], m.Name)
		putString(out[1+maxStringField:], m.Password)
		return need, nil

	case LoginResponse:
		need := 1 + 8 + 1 + maxStringField
		if len(out) < need {
			return 0, fmt.Errorf("wire: buffer too small for LoginResponse")
		}
		out[0] = byte(MsgLoginResponse)
		binary.LittleEndian.PutUint64(out[1:], m.Token)
		if m.Ok {
			out[9] = 1
		}
		putString(out[10:], m.Error)
		return need, nil

	case TokenBindRequest:
		need := 1 + 8
		if len(out) < need {
			return 0, fmt.Errorf("wire: buffer too small for TokenBindRequest")
		}
		out[0] = byte(MsgTokenBindRequest)
		binary.LittleEndian.PutUint64(out[1:], m.Token)
		return need, nil

	case Order:
		need := 1 + 8 + 8 + 4 + 4 + 4 + 1
		if len(out) < need {
			return 0, fmt.Errorf("wire: buffer too small for Order")
		}
		out[0] = byte(MsgOrder)
		o := out[1:]
		binary.LittleEndian.PutUint64(o, m.ID)
		binary.LittleEndian.PutUint64(o[8:], m.Created)
		copy(o[16:20], m.Ticker[:])
		binary.LittleEndian.PutUint32(o[20:], m.Quantity)
		binary.LittleEndian.PutUint32(o[24:], m.Price)
		o[28] = byte(m.Action)
		return need, nil

	case OrderStatus:
		need := 1 + 8 + 4 + 8 + 4 + 4 + 1
		if len(out) < need {
			return 0, fmt.Errorf("wire: buffer too small for OrderStatus")
		}
		out[0] = byte(MsgOrderStatus)
		o := out[1:]
		binary.LittleEndian.PutUint64(o, m.OrderID)
		binary.LittleEndian.PutUint32(o[8:], m.SystemID)
		binary.LittleEndian.PutUint64(o[12:], m.Timestamp)
		binary.LittleEndian.PutUint32(o[20:], m.Quantity)
		binary.LittleEndian.PutUint32(o[24:], m.FillPrice)
		o[28] = byte(m.State)
		return need, nil

	case TickerPrice:
		need := 1 + 4 + 4
		if len(out) < need {
			return 0, fmt.Errorf("wire: buffer too small for TickerPrice")
		}
		out[0] = byte(MsgTickerPrice)
		copy(out[1:5], m.Ticker[:])
		binary.LittleEndian.PutUint32(out[5:], m.Price)
		return need, nil

	default:
		return 0, fmt.Errorf("wire: unserializable message type %T", msg)
	}
}

// Deserialize implements Codec.
func (BinaryCodec) Deserialize(data []byte) (any, int, error) {
	if len(data) < 1 {
		return nil, 0, nil
	}
	switch MessageType(data[0]) {
	case MsgLoginRequest:
		need := 1 + maxStringField*2
		if len(data) < need {
			return nil, 0, nil
		}
		return LoginRequest{
			Name:     getString(data[1:]),
			Password: getString(data[1+maxStringField:]),
		}, need, nil

	case MsgLoginResponse:
		need := 1 + 8 + 1 + maxStringField
		if len(data) < need {
			return nil, 0, nil
		}
		return LoginResponse{
			Token: binary.LittleEndian.Uint64(data[1:]),
			Ok:    data[9] != 0,
			Error: getString(data[10:]),
		}, need, nil

	case MsgTokenBindRequest:
		need := 1 + 8
		if len(data) < need {
			return nil, 0, nil
		}
		return TokenBindRequest{Token: binary.LittleEndian.Uint64(data[1:])}, need, nil

	case MsgOrder:
		need := 1 + 8 + 8 + 4 + 4 + 4 + 1
		if len(data) < need {
			return nil, 0, nil
		}
		o := data[1:]
		var tk Ticker
		copy(tk[:], o[16:20])
		return Order{
			ID:       binary.LittleEndian.Uint64(o),
			Created:  binary.LittleEndian.Uint64(o[8:]),
			Ticker:   tk,
			Quantity: binary.LittleEndian.Uint32(o[20:]),
			Price:    binary.LittleEndian.Uint32(o[24:]),
			Action:   Action(o[28]),
		}, need, nil

	case MsgOrderStatus:
		need := 1 + 8 + 4 + 8 + 4 + 4 + 1
		if len(data) < need {
			return nil, 0, nil
		}
		o := data[1:]
		return OrderStatus{
			OrderID:   binary.LittleEndian.Uint64(o),
			SystemID:  binary.LittleEndian.Uint32(o[8:]),
			Timestamp: binary.LittleEndian.Uint64(o[12:]),
			Quantity:  binary.LittleEndian.Uint32(o[20:]),
			FillPrice: binary.LittleEndian.Uint32(o[24:]),
			State:     OrderState(o[28]),
		}, need, nil

	case MsgTickerPrice:
		need := 1 + 4 + 4
		if len(data) < need {
			return nil, 0, nil
		}
		var tk Ticker
		copy(tk[:], data[1:5])
		return TickerPrice{
			Ticker: tk,
			Price:  binary.LittleEndian.Uint32(data[5:]),
		}, need, nil

	default:
		return nil, 0, fmt.Errorf("wire: unknown message type tag %d", data[0])
	}
}
