package wire

import (
	"encoding/binary"
	"errors"
)

// ErrFrameFull is returned by Encoder.Append when the remaining space
// in the frame is insufficient for the packet being appended. Callers
// should flush the current frame and retry on the next tick.
var ErrFrameFull = errors.New("wire: frame full")

// ErrShortPacket names a payload too short to build the requested
// inner packet. No function in this package returns it; the Decode*
// helpers report a short payload with ok == false instead.
var ErrShortPacket = errors.New("wire: short packet")

// Header is the one-byte frame header: two base-SeqMax digits packing
// a payload sequence number (low digit) and an XOR-mask redundancy
// distance (high digit). A zero high digit marks a payload frame; a
// non-zero high digit marks a mask frame whose sequence is a multiple
// of that digit.
type Header byte

// NewHeader packs a sequence number and redundancy distance into a
// Header, matching hpsjam_header::setSequence.
func NewHeader(seq, red uint8) Header {
	return Header((seq % SeqMax) + (red%SeqMax)*SeqMax)
}

// SeqNo returns the low digit: the payload sequence number.
func (h Header) SeqNo() uint8 { return uint8(h) % SeqMax }

// RedNo returns the high digit: the mask redundancy distance, or 0
// for a payload frame.
func (h Header) RedNo() uint8 { return (uint8(h) / SeqMax) % SeqMax }

// IsMask reports whether this header marks an XOR mask frame.
func (h Header) IsMask() bool { return h.RedNo() != 0 }

// InnerPacket is one variable-length entry inside a frame: a 4-byte
// aligned header (length in 4-byte units including this header, type,
// local sequence, peer sequence) followed by 4*(Length-1) payload
// bytes.
type InnerPacket struct {
	Type     PacketType
	LocalSeq uint8
	PeerSeq  uint8
	Payload  []byte
}

// length returns the wire length field: the total packet size,
// including its 4-byte header, in 4-byte units, rounded up. The
// length field is one byte wide, so units beyond 255 don't fit; ok is
// false in that case and the returned value must not be used.
func (p *InnerPacket) length() (units uint8, ok bool) {
	total := innerHeaderSize + len(p.Payload)
	u := (total + 3) / 4
	if u > 255 {
		return 0, false
	}
	return uint8(u), true
}

// Bytes returns the total on-wire size of p in bytes, and false if p
// is too large to ever fit in one inner packet regardless of how much
// room remains in the frame.
func (p *InnerPacket) Bytes() (int, bool) {
	units, ok := p.length()
	if !ok {
		return 0, false
	}
	return int(units) * 4, true
}

// Encoder assembles one outbound frame by appending inner packets in
// order, starting right after the one-byte header. It mirrors
// hpsjam_output_packetizer::append_pkt: copy the packet's bytes at
// the current offset, refuse if there isn't room, and never reorder
// or compact what's already been written.
type Encoder struct {
	buf    [MaxUDP]byte
	offset int // offset into buf past the header, i.e. bytes used so far
}

// NewEncoder returns an Encoder with a freshly zeroed frame.
func NewEncoder() *Encoder {
	return &Encoder{offset: 0}
}

// Reset clears the encoder back to an empty frame.
func (e *Encoder) Reset() {
	for i := 0; i < headerSize+e.offset; i++ {
		e.buf[i] = 0
	}
	e.offset = 0
}

// Remaining returns how many more payload bytes can still be
// appended before the frame is full.
func (e *Encoder) Remaining() int {
	return len(e.buf) - headerSize - e.offset
}

// Offset returns the number of inner-packet bytes written so far
// (not counting the header).
func (e *Encoder) Offset() int { return e.offset }

// Append writes one inner packet at the current offset. It returns
// ErrFrameFull without modifying the encoder if there isn't enough
// room.
func (e *Encoder) Append(p *InnerPacket) error {
	n, ok := p.Bytes()
	if !ok || n > e.Remaining() {
		return ErrFrameFull
	}
	start := headerSize + e.offset
	units, _ := p.length()
	e.buf[start] = units
	e.buf[start+1] = byte(p.Type)
	e.buf[start+2] = p.LocalSeq
	e.buf[start+3] = p.PeerSeq
	copy(e.buf[start+innerHeaderSize:start+n], p.Payload)
	// zero any rounding pad between the real payload and the 4-byte
	// boundary the length field rounded up to.
	for i := start + innerHeaderSize + len(p.Payload); i < start+n; i++ {
		e.buf[i] = 0
	}
	e.offset += n
	return nil
}

// Finish stamps the frame header and returns the bytes that should
// actually be sent: the header plus every appended inner packet, NOT
// padded out to MaxUDP (the reference sender transmits only
// offset+sizeof(header) bytes per datagram).
func (e *Encoder) Finish(h Header) []byte {
	e.buf[0] = byte(h)
	out := make([]byte, headerSize+e.offset)
	copy(out, e.buf[:headerSize+e.offset])
	return out
}

// XOR XORs the currently-assembled frame bytes (header plus payload,
// zero-padded to MaxUDP) into dst, accumulating the FEC mask exactly
// as hpsjam_frame::do_xor does over the full union.
func (e *Encoder) XOR(dst *[MaxUDP]byte) {
	for i := range dst {
		dst[i] ^= e.buf[i]
	}
}

// Decode walks the inner packets of a received frame, starting right
// after the header byte. It stops at the first invalid or type-0
// sentinel packet and never reads past len(data); a decode that stops
// early is not an error; it is how the wire format is intentionally
// self-terminating and tolerant of truncation.
func Decode(data []byte) (Header, []InnerPacket) {
	if len(data) < headerSize {
		return 0, nil
	}
	hdr := Header(data[0])
	var packets []InnerPacket
	offset := headerSize
	for offset+innerHeaderSize <= len(data) {
		length := data[offset]
		ptype := PacketType(data[offset+1])
		if length == 0 || ptype == TypeEnd {
			break
		}
		end := offset + int(length)*4
		if end > len(data) {
			break
		}
		packets = append(packets, InnerPacket{
			Type:     ptype,
			LocalSeq: data[offset+2],
			PeerSeq:  data[offset+3],
			Payload:  append([]byte(nil), data[offset+innerHeaderSize:end]...),
		})
		offset = end
	}
	return hdr, packets
}

// ConfigurePayload is the decoded form of a CONFIGURE_REQUEST
// packet's 1-byte body, per hpsjam_packet::setConfigure: a single
// format id padded out to a 4-byte payload.
type ConfigurePayload struct {
	OutputFormat PacketType
}

// Encode returns the 4-byte padded payload for a configure packet.
func (c ConfigurePayload) Encode() []byte {
	return []byte{byte(c.OutputFormat), 0, 0, 0}
}

// DecodeConfigure parses a configure packet's payload.
func DecodeConfigure(payload []byte) (ConfigurePayload, bool) {
	if len(payload) < 1 {
		return ConfigurePayload{}, false
	}
	return ConfigurePayload{OutputFormat: PacketType(payload[0])}, true
}

// PingPayload is the decoded form of a PING_REQUEST/PING_REPLY
// packet, per hpsjam_packet::setPing.
type PingPayload struct {
	Packets  uint16
	TimeMS   uint16
	Password uint64
}

// Encode packs a ping payload into its 12-byte wire form: two
// little-endian uint16 fields followed by the password split across
// two little-endian uint32 halves, matching setPing's putS32 calls.
func (p PingPayload) Encode() []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint16(buf[0:2], p.Packets)
	binary.LittleEndian.PutUint16(buf[2:4], p.TimeMS)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.Password))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Password>>32))
	return buf
}

// DecodePing parses a ping packet's payload.
func DecodePing(payload []byte) (PingPayload, bool) {
	if len(payload) < 12 {
		return PingPayload{}, false
	}
	lo := binary.LittleEndian.Uint32(payload[4:8])
	hi := binary.LittleEndian.Uint32(payload[8:12])
	return PingPayload{
		Packets:  binary.LittleEndian.Uint16(payload[0:2]),
		TimeMS:   binary.LittleEndian.Uint16(payload[2:4]),
		Password: uint64(hi)<<32 | uint64(lo),
	}, true
}

// NewACK builds the 4-byte ACK inner packet acknowledging peerSeq.
// An ACK carries no payload: the acknowledged peer sequence number
// lives in the inner packet header's PeerSeq field, per append_ack
// in the reference.
func NewACK(peerSeq uint8) InnerPacket {
	return InnerPacket{Type: TypeACK, LocalSeq: 0, PeerSeq: peerSeq}
}
