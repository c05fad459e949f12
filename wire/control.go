package wire

import (
	"encoding/binary"
	"math"
)

// FaderValuePayload carries one or more float32 control values
// addressed to a specific fader, used by the gain/pan/level family
// of control packets. SubIndex distinguishes values within a
// single control (e.g. input vs. output level); it is unused (0) for
// a single-value control such as gain or pan.
//
// original_source/src/protocol.h declares setFaderValue/getFaderValue
// but its body lives in protocol.cpp, which isn't part of the
// retrieved sources; this layout is this core's own resolution of
// that gap, not a byte-for-byte port.
type FaderValuePayload struct {
	FaderIndex uint8
	SubIndex   uint8
	Values     []float32
}

// Encode packs p into its wire payload: a 2-byte (index, sub) header
// followed by each value as a little-endian float32.
func (p FaderValuePayload) Encode() []byte {
	buf := make([]byte, 2+4*len(p.Values))
	buf[0] = p.FaderIndex
	buf[1] = p.SubIndex
	for i, v := range p.Values {
		binary.LittleEndian.PutUint32(buf[2+4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeFaderValue parses a FaderValuePayload carrying n float32
// values from payload.
func DecodeFaderValue(payload []byte, n int) (FaderValuePayload, bool) {
	if len(payload) < 2+4*n {
		return FaderValuePayload{}, false
	}
	values := make([]float32, n)
	for i := 0; i < n; i++ {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[2+4*i:]))
	}
	return FaderValuePayload{FaderIndex: payload[0], SubIndex: payload[1], Values: values}, true
}

// FaderDataPayload carries a variable-length byte string addressed to
// a specific fader: used by the name/icon/bits/EQ/disconnect family
// of control packets, per setFaderData/getFaderData in protocol.h.
type FaderDataPayload struct {
	FaderIndex uint8
	SubIndex   uint8
	Data       []byte
}

// Encode packs p into its wire payload, zero-padded to a 4-byte
// boundary (the pad argument of setRawData/setFaderData).
func (p FaderDataPayload) Encode() []byte {
	total := 2 + len(p.Data)
	padded := (total + 3) / 4 * 4
	buf := make([]byte, padded)
	buf[0] = p.FaderIndex
	buf[1] = p.SubIndex
	copy(buf[2:], p.Data)
	return buf
}

// DecodeFaderData parses a FaderDataPayload. Trailing zero padding
// added by Encode is not stripped; callers that want text should trim
// trailing NULs themselves.
func DecodeFaderData(payload []byte) (FaderDataPayload, bool) {
	if len(payload) < 2 {
		return FaderDataPayload{}, false
	}
	return FaderDataPayload{
		FaderIndex: payload[0],
		SubIndex:   payload[1],
		Data:       append([]byte(nil), payload[2:]...),
	}, true
}

// RawDataPayload carries a variable-length byte string with no fader
// addressing at all, per setRawData/getRawData: used by chat,
// lyrics, and a client's own name/icon requests.
type RawDataPayload struct {
	Data []byte
}

// Encode packs p, zero-padded to a 4-byte boundary.
func (p RawDataPayload) Encode() []byte {
	padded := (len(p.Data) + 3) / 4 * 4
	buf := make([]byte, padded)
	copy(buf, p.Data)
	return buf
}

// DecodeRawData parses a RawDataPayload. Trailing zero padding is not
// stripped.
func DecodeRawData(payload []byte) RawDataPayload {
	return RawDataPayload{Data: append([]byte(nil), payload...)}
}
