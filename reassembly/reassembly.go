// Package reassembly turns the raw payload and XOR-mask frames a
// transport hands in back into an ordered, loss-concealed stream of
// inner packets.
//
// A Reassembler holds one SeqMax-deep ring of frame slots per frame
// sequence number. Payload frames land directly in current[seq];
// XOR-mask frames land in mask[seq] and are combined with whatever
// payload frames did arrive to recover exactly one missing frame per
// redundancy group. Deliver then walks the ring starting from the
// redundancy-aligned rotation whose received-frame bitmap has the
// smallest unsigned value (the oldest contiguous run), synthesizing a
// silence frame for anything still missing once a group can no longer
// be deferred.
package reassembly

import (
	"github.com/rtjam/core/audio"
	"github.com/rtjam/core/jitter"
	"github.com/rtjam/core/wire"
)

const (
	gotPacket   uint8 = 1 << 0
	gotXORMask  uint8 = 1 << 1
	gotReceived uint8 = 1 << 2
)

// Reassembler reconstructs an ordered packet stream out of frames
// that may arrive out of order, damaged-but-recoverable, or not at
// all. Not safe for concurrent use.
type Reassembler struct {
	current [wire.SeqMax][wire.MaxUDP]byte
	mask    [wire.SeqMax][wire.MaxUDP]byte
	valid   [wire.SeqMax]uint8
	lastRed uint8
	meter   *jitter.Meter
}

// New returns an empty Reassembler. meter may be nil if reception
// statistics aren't needed.
func New(meter *jitter.Meter) *Reassembler {
	return &Reassembler{lastRed: 2, meter: meter}
}

// Reset clears all receive state back to empty, as at construction.
// Used on session teardown and reset; it does not touch the jitter
// meter, whose smoothed counters should survive a reset.
func (r *Reassembler) Reset() {
	for i := range r.valid {
		r.valid[i] = 0
	}
	r.lastRed = 2
}

// Receive folds one received frame into the reassembler: a payload
// frame (red == 0) is stored by its sequence number, and a mask frame
// is stored and remembered as the current redundancy distance,
// provided its distance evenly divides SeqMax and aligns to it.
func (r *Reassembler) Receive(frame []byte) {
	if len(frame) == 0 {
		return
	}
	hdr := wire.Header(frame[0])
	seq := hdr.SeqNo()
	red := hdr.RedNo()

	if red != 0 {
		if wire.SeqMax%red == 0 && seq%red == 0 {
			r.lastRed = red
			copyFrame(&r.mask[seq], frame)
			r.valid[seq] |= gotXORMask
		}
	} else {
		copyFrame(&r.current[seq], frame)
		r.valid[seq] |= gotPacket
	}

	if r.meter != nil {
		r.meter.RecordPacket()
	}
}

func copyFrame(dst *[wire.MaxUDP]byte, src []byte) {
	for i := range dst {
		dst[i] = 0
	}
	n := len(src)
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst[:n], src[:n])
}

func xorInto(dst, src *[wire.MaxUDP]byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// Recover attempts to reconstruct exactly one missing payload frame
// per redundancy group, for every group whose mask frame has arrived:
// XOR the mask against every payload that did arrive, and whatever
// remains is the missing frame, provided exactly one is missing.
// Groups with zero or more than one frame missing are left alone;
// Deliver handles those with silence synthesis instead.
func (r *Reassembler) Recover() {
	if r.lastRed <= 1 {
		return
	}
	for x := uint8(0); x < wire.SeqMax; x += r.lastRed {
		if r.valid[x]&gotXORMask == 0 {
			continue
		}
		if wire.Header(r.mask[x][0]).RedNo() != r.lastRed {
			continue
		}

		missing := uint8(0)
		for y := uint8(0); y < r.lastRed; y++ {
			z := (wire.SeqMax + x - y - 1) % wire.SeqMax
			if r.valid[z]&gotPacket == 0 {
				missing++
			}
		}
		if missing != 1 {
			continue
		}

		for y := uint8(0); y < r.lastRed; y++ {
			z := (wire.SeqMax + x - y - 1) % wire.SeqMax
			if r.valid[z]&gotPacket != 0 {
				xorInto(&r.mask[x], &r.current[z])
			}
		}
		for y := uint8(0); y < r.lastRed; y++ {
			z := (wire.SeqMax + x - y - 1) % wire.SeqMax
			if r.valid[z]&gotPacket == 0 {
				r.current[z] = r.mask[x]
				// the recovered frame's header byte is whatever
				// garbage the XOR left behind; clear it, nothing
				// downstream reads it.
				r.mask[x][0] = 0
				r.current[z][0] = 0
				r.valid[z] |= gotPacket
				if r.meter != nil {
					r.meter.RecordLoss()
				}
			}
		}
	}
}

// Deliver returns the next deliverable frame's inner packets, or ok
// == false if no frame can be delivered yet (the oldest pending
// redundancy group hasn't fully arrived, and there's nothing received
// beyond it to force the issue). Call Recover before Deliver so FEC
// gets first chance at filling any gap.
func (r *Reassembler) Deliver() ([]wire.InnerPacket, bool) {
	raw, ok := r.deliverRaw()
	if !ok {
		return nil, false
	}
	_, packets := wire.Decode(raw[:])
	return packets, true
}

func (r *Reassembler) deliverRaw() (frame [wire.MaxUDP]byte, ok bool) {
	var bitmap uint32
	for x := uint8(0); x < wire.SeqMax; x++ {
		if r.valid[x]&gotPacket != 0 {
			bitmap |= 1 << x
		}
	}

	start := bitmap
	minX := uint8(0)
	for x := uint8(0); x < wire.SeqMax; x++ {
		if start > bitmap && x%r.lastRed == 0 {
			start = bitmap
			minX = x
		}
		if bitmap&1 != 0 {
			bitmap >>= 1
			bitmap |= 1 << (wire.SeqMax - 1)
		} else {
			bitmap >>= 1
		}
	}

	red := (uint32(1) << r.lastRed) - 1

	for (start&red) == red || (start & ^red) != 0 {
		for x := uint8(0); x < r.lastRed; x++ {
			z := (minX + x) % wire.SeqMax
			if r.valid[z]&gotReceived != 0 {
				continue
			}
			if r.valid[z]&gotPacket == 0 {
				r.current[z] = silenceFrame()
				if r.meter != nil {
					r.meter.RecordLoss()
					r.meter.RecordDamage()
				}
			}
			r.valid[z] |= gotReceived
			r.valid[(z+wire.SeqMax/2)%wire.SeqMax] &^= gotReceived
			return r.current[z], true
		}

		for x := uint8(0); x < r.lastRed; x++ {
			z := (minX + x) % wire.SeqMax
			r.valid[z] &= gotReceived
		}

		minX = (minX + r.lastRed) % wire.SeqMax
		start >>= r.lastRed
	}

	return frame, false
}

func silenceFrame() [wire.MaxUDP]byte {
	var buf [wire.MaxUDP]byte
	enc := wire.NewEncoder()
	_ = enc.Append(&wire.InnerPacket{Type: wire.TypeSilence, Payload: audio.EncodeSilence(wire.NomSamples)})
	copy(buf[:], enc.Finish(0))
	return buf
}
