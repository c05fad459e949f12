// Package peer composes the wire codec, audio codec, jitter meter,
// ring buffer, reassembler and packetizer into one bidirectional
// session with a single remote participant.
//
// An Endpoint plays both roles the reference implementation splits
// into hpsjam_server_peer and hpsjam_client_peer: Tick drives the
// network side (pop mixed output, encode, packetize, send) and
// Receive drives the inbound side (reassemble, recover, decode,
// deliver into the input ring buffer), while SoundProcess is the
// extra integration point a local client uses to bridge its sound
// card's capture/playback callback into the same buffers. A server
// relaying many peers only ever calls Tick/Receive/Enqueue; a local
// client additionally calls SoundProcess once per sound card
// callback.
//
// All state is protected by a single per-peer mutex, per spec's "one
// mutex per peer endpoint, held only while mutating that peer's
// state" concurrency model: there is no global lock and callers never
// need to hold two peers' locks at once.
package peer

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rtjam/core/audio"
	"github.com/rtjam/core/clock"
	"github.com/rtjam/core/events"
	"github.com/rtjam/core/jitter"
	"github.com/rtjam/core/packetizer"
	"github.com/rtjam/core/reassembly"
	"github.com/rtjam/core/ringbuffer"
	"github.com/rtjam/core/transport"
	"github.com/rtjam/core/wire"
)

// channel indices into the stereo ring-buffer/level-meter pairs.
const (
	left  = 0
	right = 1
)

// Endpoint is one bidirectional, per-peer-locked jam session: a
// remote address, the send/receive protocol state machines, the
// elastic input and output sample buffers, and the small bundle of
// mixer-facing controls (name, icon, gain, pan, mute/solo bits,
// output format) the surrounding orchestration layer reads and
// writes.
//
// Not safe for concurrent use except through its own methods, which
// serialize on a single mutex.
type Endpoint struct {
	mu sync.Mutex

	addr      net.Addr
	transport transport.Transport
	clock     clock.Clock
	extSink   *events.Sink

	distance     uint8
	outputFormat wire.PacketType

	reassembler *reassembly.Reassembler
	packetizer  *packetizer.Packetizer
	meter       *jitter.Meter

	inAudio   [2]*ringbuffer.Buffer
	outBuffer [2]*ringbuffer.Buffer
	inLevel   [2]audio.Level

	name string
	icon []byte
	bits uint8
	gain float32
	pan  float32

	lowWaterStreak int
	lost           bool

	// lastControlSeq/haveLastControlSeq dedupe reliable control packet
	// delivery: driveReliable resends the same in-flight packet (same
	// LocalSeq) every 64 ticks until it's acked, and each resend is a
	// genuinely new wire frame the reassembler delivers as a distinct
	// packet. Without this, a retransmit replays handleControl's sink
	// callbacks once per resend instead of exactly once per packet.
	haveLastControlSeq bool
	lastControlSeq     uint8

	// watchdogFired/timedOut latch events the packetizer raises from
	// inside Tick's own call stack (via Send -> driveReliable); Tick
	// drains them and fires the matching external callback only after
	// releasing mu, since the packetizer has no way to know Tick is
	// already holding it.
	watchdogFired bool
	timedOut      bool

	scratchOutL [wire.DefSamples]float32
	scratchOutR [wire.DefSamples]float32
}

// New returns an Endpoint for the peer at addr, sending over tp and
// timing watchdog/timeout/resend off clk. sink receives the outward
// events defined in events.Sink; it may be nil. tp may be nil for
// tests that only exercise buffering and protocol state, never
// Tick's actual send.
func New(addr net.Addr, tp transport.Transport, clk clock.Clock, sink *events.Sink, cfg Config) *Endpoint {
	e := &Endpoint{
		addr:         addr,
		transport:    tp,
		clock:        clk,
		extSink:      sink,
		distance:     cfg.RedundancyDistance,
		outputFormat: cfg.OutputFormat,
		gain:         1.0,
	}

	e.meter = jitter.NewMeter(cfg.JitterWindowTicks)
	e.reassembler = reassembly.New(e.meter)

	// These fire synchronously from inside packetizer.Send, which Tick
	// calls while already holding e.mu; they only latch a flag here so
	// Tick can apply the teardown and invoke the external callback
	// itself once it has released the lock.
	internalSink := &events.Sink{
		PendingWatchdog: func() { e.watchdogFired = true },
		PendingTimeout:  func() { e.timedOut = true },
	}
	e.packetizer = packetizer.New(cfg.RedundancyDistance, clk, internalSink)

	for i := range e.inAudio {
		e.inAudio[i] = ringbuffer.New()
		e.inAudio[i].SetJitterLimitMS(cfg.JitterLimitMS)
		e.outBuffer[i] = ringbuffer.New()
		e.outBuffer[i].SetJitterLimitMS(cfg.JitterLimitMS)
	}

	return e
}

// Addr returns the peer's current remote address, or nil once the
// session has been torn down.
func (e *Endpoint) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// Valid reports whether the endpoint is still live: has an address
// and has not timed out.
func (e *Endpoint) Valid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr != nil && !e.lost
}

// Meter exposes the peer's jitter meter, e.g. for a jitter.Source
// implementation aggregating every peer for Prometheus export.
func (e *Endpoint) Meter() *jitter.Meter { return e.meter }

// HighWater reports the receive buffer's current high-water bucket
// (0 under, 1 at, 2 over the configured jitter limit), e.g. for a
// jitter.Source implementation aggregating every peer for Prometheus
// export.
func (e *Endpoint) HighWater() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inAudio[left].HighWater()
}

// Close tears the session down: clears every queue, drops the
// in-flight reliable control packet, and invalidates the address so
// any further Enqueue is silently dropped, per the cancellation
// contract in spec §5.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked()
}

func (e *Endpoint) teardownLocked() {
	e.addr = nil
	e.lost = true
	e.packetizer.Reset(e.distance)
	e.reassembler.Reset()
	for i := range e.inAudio {
		e.inAudio[i].Clear()
		e.outBuffer[i].Clear()
	}
	e.haveLastControlSeq = false
}

// Enqueue schedules a reliable control packet for delivery, the
// "send_single_pkt" collaborator: coalescing against any pending
// packet of the same type happens inside the packetizer. A torn-down
// endpoint drops the packet instead of queueing it.
func (e *Endpoint) Enqueue(pkt wire.InnerPacket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.addr == nil {
		return
	}
	e.packetizer.Enqueue(pkt)
}

// Receive folds one received wire frame into the reassembler, runs
// FEC recovery, and delivers every inner packet that is now ready, in
// order, dispatching each to the audio/control handling below.
func (e *Endpoint) Receive(frame []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.addr == nil {
		return
	}

	e.reassembler.Receive(frame)
	e.reassembler.Recover()

	for {
		packets, ok := e.reassembler.Deliver()
		if !ok {
			break
		}
		for _, pkt := range packets {
			e.handlePacket(pkt)
		}
	}
}

func (e *Endpoint) handlePacket(pkt wire.InnerPacket) {
	switch {
	case pkt.Type.IsAudio():
		e.handleAudio(pkt)
	case pkt.Type == wire.TypeSilence:
		e.handleSilence(pkt)
	case pkt.Type == wire.TypeACK:
		e.packetizer.Ack(pkt.PeerSeq)
	case pkt.Type == wire.TypeMIDI:
		// framed but never interpreted; the spec scopes out MIDI I/O.
	case pkt.Type >= wire.TypeConfigureRequest:
		e.packetizer.RequestAck(pkt.LocalSeq)
		// driveReliable resends the unacknowledged in-flight packet on a
		// fixed cadence with its LocalSeq unchanged; each resend still
		// needs its ACK requested above, but must be dispatched to
		// handleControl at most once to preserve ACK idempotence.
		if !e.haveLastControlSeq || pkt.LocalSeq != e.lastControlSeq {
			e.haveLastControlSeq = true
			e.lastControlSeq = pkt.LocalSeq
			e.handleControl(pkt)
		}
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Endpoint.handlePacket",
			"type":     pkt.Type.String(),
		}).Debug("peer: unrecognized inner packet type, dropped")
	}
}

func (e *Endpoint) handleAudio(pkt wire.InnerPacket) {
	l, r, err := audio.Decode(pkt.Type, pkt.Payload)
	if err != nil {
		return
	}
	if r == nil {
		r = l
	}
	e.inAudio[left].Add(l)
	e.inAudio[right].Add(r)
	e.inLevel[left].Add(l)
	e.inLevel[right].Add(r)
}

func (e *Endpoint) handleSilence(pkt wire.InnerPacket) {
	count, ok := audio.DecodeSilence(pkt.Payload)
	if !ok {
		return
	}
	e.inAudio[left].AddSilence(int(count))
	e.inAudio[right].AddSilence(int(count))
}

// Tick drives one sample block of network I/O: apply the
// grow-on-low-water policy, pop the next block of this peer's
// personalized mix out of the output buffer, encode it, hand it to
// the packetizer, and send whatever frame the packetizer produces
// this tick. Called once per tick from the audio thread; the audio
// codec and the packetizer each allocate the byte slices they return.
func (e *Endpoint) Tick() {
	e.mu.Lock()
	if e.addr == nil {
		e.mu.Unlock()
		return
	}

	e.applyLowWaterPolicy()

	outL := e.scratchOutL[:]
	outR := e.scratchOutR[:]
	e.outBuffer[left].Rem(outL)
	e.outBuffer[right].Rem(outR)

	if payload, err := audio.Encode(e.outputFormat, outL, outR); err == nil {
		pkt := wire.InnerPacket{Type: e.outputFormat, Payload: payload}
		e.packetizer.AppendAudio(&pkt)
	}

	e.meter.Tick()

	frame := e.packetizer.Send()
	if e.transport != nil {
		if err := e.transport.Send(frame, e.addr); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Endpoint.Tick",
				"addr":     e.addr,
			}).WithError(err).Debug("peer: send failed")
		}
	}

	watchdogFired := e.watchdogFired
	timedOut := e.timedOut
	e.watchdogFired = false
	e.timedOut = false
	if timedOut {
		e.teardownLocked()
	}
	e.mu.Unlock()

	if watchdogFired && e.extSink != nil && e.extSink.PendingWatchdog != nil {
		e.extSink.PendingWatchdog()
	}
	if timedOut && e.extSink != nil && e.extSink.PendingTimeout != nil {
		e.extSink.PendingTimeout()
	}
}

// applyLowWaterPolicy implements the Open Question resolution from
// spec §9: Grow is invoked, not just Shrink, when the output buffer
// has reported low-water on two consecutive ticks. Shrink is handled
// internally by ringbuffer.Buffer.Rem and needs no help here.
func (e *Endpoint) applyLowWaterPolicy() {
	if e.outBuffer[left].LowWater() != 0 {
		e.lowWaterStreak = 0
		return
	}
	e.lowWaterStreak++
	if e.lowWaterStreak >= 2 {
		e.outBuffer[left].Grow()
		e.outBuffer[right].Grow()
		e.lowWaterStreak = 0
	}
}

// SoundProcess is the local client integration point: inL/inR are
// freshly captured sound card samples bound for this peer (pushed
// into the output buffer Tick will encode and send), and outL/outR
// are filled from the input buffer (whatever this peer has most
// recently sent) for immediate local playback. Equalizer and monitor
// mix DSP are not this core's concern; a caller applies those to
// inL/inR/outL/outR before and after calling SoundProcess.
func (e *Endpoint) SoundProcess(inL, inR, outL, outR []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.addr == nil {
		return
	}
	e.outBuffer[left].Add(inL)
	e.outBuffer[right].Add(inR)
	e.inAudio[left].Rem(outL)
	e.inAudio[right].Rem(outR)
}

// ReadInput pops len(outL) and len(outR) samples of this peer's
// received audio into outL and outR, for a mixer that reads each peer's input under that
// peer's own lock before moving to the next. Mixer summation itself
// is out of scope for this core.
func (e *Endpoint) ReadInput(outL, outR []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inAudio[left].Rem(outL)
	e.inAudio[right].Rem(outR)
}

// WriteMix pushes a mixer's freshly computed personalized output for
// this peer into the buffer Tick will drain.
func (e *Endpoint) WriteMix(inL, inR []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outBuffer[left].Add(inL)
	e.outBuffer[right].Add(inR)
}

// InputLevel returns the held input peak for channel 0 (left/mono)
// or 1 (right), decaying it per audio.Level.Value's read semantics.
func (e *Endpoint) InputLevel(channel int) float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inLevel[channel].Value()
}

// Name returns the peer's display name.
func (e *Endpoint) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// Icon returns the peer's icon image bytes.
func (e *Endpoint) Icon() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.icon
}

// Bits returns the peer's mute/solo bitmap byte.
func (e *Endpoint) Bits() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bits
}

// SetBits sets the peer's mute/solo bitmap byte.
func (e *Endpoint) SetBits(bits uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bits = bits
}

// GainPan returns the peer's current gain and pan.
func (e *Endpoint) GainPan() (gain, pan float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gain, e.pan
}

// SetGainPan sets the peer's gain and pan.
func (e *Endpoint) SetGainPan(gain, pan float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gain = gain
	e.pan = pan
}

// OutputFormat returns the PCM format currently used to encode audio
// sent to this peer.
func (e *Endpoint) OutputFormat() wire.PacketType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputFormat
}
