// Package packetizer implements the sending half of the protocol: it
// assembles inner packets into frames, maintains the rolling XOR mask
// across a configurable redundancy distance, and drives reliable
// delivery of control packets (retransmission, watchdog, timeout)
// independently of the unreliable audio stream.
package packetizer

import (
	"github.com/rtjam/core/clock"
	"github.com/rtjam/core/events"
	"github.com/rtjam/core/wire"
)

// pendInert is the sentinel pend_count value meaning "no reliable
// packet is currently in flight and none has ever timed out or been
// watchdogged since init."
const pendInert = 65535 // math.MaxUint16

// DefaultDistance is the redundancy distance used when none is
// configured explicitly.
const DefaultDistance = 2

// Packetizer assembles outbound frames for one peer: it multiplexes
// best-effort audio packets (coalesced per tick into the current
// frame), a single in-flight reliable control packet at a time
// (resent on a fixed cadence until acknowledged, watchdogged and
// eventually given up on), and the periodic XOR mask frame that
// provides FEC for the preceding d_max payload frames.
//
// Not safe for concurrent use; callers serialize access the same way
// they serialize the rest of a peer's state.
type Packetizer struct {
	enc  *wire.Encoder
	mask [wire.MaxUDP]byte

	pending    []wire.InnerPacket // queued reliable control packets, FIFO
	inFlight   *wire.InnerPacket  // the one currently being retried
	pendCount  uint16
	pendSeqNo  uint8
	peerSeqNo  uint8
	startTick  uint32
	pingTicks  uint16
	sendAck    bool

	dCur, dMax uint8
	seqNo      uint8
	dLen       int

	clock clock.Clock
	sink  *events.Sink
}

// New returns a Packetizer with the given redundancy distance (clamped
// modulo wire.SeqMax), clock and event sink. sink may be nil.
func New(distance uint8, c clock.Clock, sink *events.Sink) *Packetizer {
	return &Packetizer{
		enc:       wire.NewEncoder(),
		dMax:      distance % wire.SeqMax,
		pendCount: pendInert,
		clock:     c,
		sink:      sink,
	}
}

// Enqueue schedules a reliable control packet for delivery,
// coalescing with (overwriting) any already-queued packet of the
// same type: only the newest value of a given control type is worth
// sending.
func (p *Packetizer) Enqueue(pkt wire.InnerPacket) {
	for i := range p.pending {
		if p.pending[i].Type == pkt.Type {
			p.pending[i] = pkt
			return
		}
	}
	p.pending = append(p.pending, pkt)
}

// AppendAudio appends a best-effort inner packet (audio or silence)
// to the frame currently being assembled. It returns false if the
// frame has no room left; the caller should flush (Send) and retry.
func (p *Packetizer) AppendAudio(pkt *wire.InnerPacket) bool {
	return p.enc.Append(pkt) == nil
}

// RequestAck marks that the next sent frame should carry an ACK for
// the most recently delivered peer sequence number.
func (p *Packetizer) RequestAck(peerSeq uint8) {
	p.peerSeqNo = peerSeq
	p.sendAck = true
}

// Send finalizes and returns the next frame to transmit: either the
// accumulated XOR mask (after every dMax payload frames) or a regular payload
// frame carrying whatever audio was appended plus at most one
// reliable control packet and an ACK.
func (p *Packetizer) Send() []byte {
	if p.dCur == p.dMax {
		hdr := wire.NewHeader(p.seqNo, p.dMax)
		out := make([]byte, 1+p.dLen)
		out[0] = byte(hdr)
		copy(out[1:], p.mask[1:1+p.dLen])
		p.mask = [wire.MaxUDP]byte{}
		p.dCur = 0
		p.dLen = 0
		return out
	}

	p.driveReliable()

	if p.sendAck {
		ack := wire.NewACK(p.peerSeqNo)
		if p.enc.Append(&ack) == nil {
			p.sendAck = false
		}
	}

	offset := p.enc.Offset()
	frame := p.enc.Finish(wire.NewHeader(p.seqNo, 0))
	p.enc.XOR(&p.mask)
	if offset > p.dLen {
		p.dLen = offset
	}
	p.enc.Reset()
	p.seqNo++
	p.dCur++
	return frame
}

func (p *Packetizer) driveReliable() {
	if p.inFlight == nil {
		if len(p.pending) == 0 {
			if p.pendCount != pendInert {
				p.pendCount++
			}
			return
		}
		next := p.pending[0]
		p.pending = p.pending[1:]
		next.LocalSeq = p.pendSeqNo
		next.PeerSeq = p.peerSeqNo
		p.inFlight = &next
		p.startTick = p.tick()
		p.pendSeqNo++
		p.enc.Append(p.inFlight)
		p.pendCount = 1
		return
	}

	if p.pendCount%64 == 0 {
		p.inFlight.PeerSeq = p.peerSeqNo
		p.enc.Append(p.inFlight)
		p.pendCount++
	} else if p.pendCount != pendInert {
		p.pendCount++
	}

	switch p.pendCount {
	case 1000:
		p.sink.PendingWatchdogFired()
	case 2000:
		p.sink.PendingTimeoutFired()
	}
}

func (p *Packetizer) tick() uint32 {
	if p.clock == nil {
		return 0
	}
	return p.clock.Ticks()
}

// Ack acknowledges delivery of the in-flight reliable packet if
// localSeq matches it, clearing it so the next Enqueue'd packet can
// start sending. Returns the round-trip time in ticks, or 0 if
// localSeq didn't match the in-flight packet.
func (p *Packetizer) Ack(localSeq uint8) uint16 {
	if p.inFlight == nil || p.inFlight.LocalSeq != localSeq {
		return 0
	}
	p.inFlight = nil
	p.pingTicks = uint16(p.tick() - p.startTick)
	return p.pingTicks
}

// Reset clears all sender state, as at construction, with the given
// redundancy distance.
func (p *Packetizer) Reset(distance uint8) {
	*p = Packetizer{
		enc:       wire.NewEncoder(),
		dMax:      distance % wire.SeqMax,
		pendCount: pendInert,
		clock:     p.clock,
		sink:      p.sink,
	}
}
