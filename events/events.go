// Package events defines the outward callback contract a
// peer.Endpoint uses to notify surrounding orchestration code: watchdog
// and timeout firing, and decoded control messages (chat, lyrics,
// fader state) arriving from a peer.
//
// Sink uses typed callback fields rather than a channel of tagged
// events, so a caller only pays for the notifications it actually
// wants and ordering stays tied to the call stack that produced it.
package events

// Sink collects the callbacks a peer.Endpoint invokes as control
// events arrive or fire. Every field is optional; a nil field is
// simply not invoked. The Received* callbacks are called from
// control-packet handling on the receive path. PendingWatchdog and
// PendingTimeout are called from peer.Endpoint.Tick, on the audio
// tick path, after Tick has released the endpoint's lock.
type Sink struct {
	// PendingWatchdog fires once the in-flight reliable control packet
	// has gone unacknowledged for 1000 payload frames (mask frames do
	// not count).
	PendingWatchdog func()

	// PendingTimeout fires at 2000 payload frames; the caller should
	// treat the session as lost.
	PendingTimeout func()

	// ReceivedChat delivers a decoded chat message.
	ReceivedChat func(text string)

	// ReceivedLyrics delivers decoded lyrics text.
	ReceivedLyrics func(text string)

	// ReceivedFaderLevel reports a peer's input/output level meter.
	ReceivedFaderLevel func(faderIndex uint8, in, out float32)

	// ReceivedFaderName reports a peer's display name change.
	ReceivedFaderName func(faderIndex uint8, name string)

	// ReceivedFaderIcon reports a peer's icon image change.
	ReceivedFaderIcon func(faderIndex uint8, icon []byte)

	// ReceivedFaderGain reports a fader gain change.
	ReceivedFaderGain func(faderIndex uint8, gain float32)

	// ReceivedFaderPan reports a fader pan change.
	ReceivedFaderPan func(faderIndex uint8, pan float32)

	// ReceivedFaderEQ reports an equalizer curve change. The curve
	// itself is opaque here; equalizer DSP is out of scope for this
	// core.
	ReceivedFaderEQ func(faderIndex uint8, curve string)

	// ReceivedFaderDisconnect reports a peer disconnect request.
	ReceivedFaderDisconnect func(faderIndex uint8)

	// ReceivedFaderSelf reports the server telling a client which
	// fader index is its own.
	ReceivedFaderSelf func(faderIndex uint8)
}

func (s *Sink) emitWatchdog() {
	if s != nil && s.PendingWatchdog != nil {
		s.PendingWatchdog()
	}
}

func (s *Sink) emitTimeout() {
	if s != nil && s.PendingTimeout != nil {
		s.PendingTimeout()
	}
}

// PendingWatchdogFired invokes the configured watchdog callback, if any.
// Safe to call on a nil *Sink.
func (s *Sink) PendingWatchdogFired() { s.emitWatchdog() }

// PendingTimeoutFired invokes the configured timeout callback, if
// any. Safe to call on a nil *Sink.
func (s *Sink) PendingTimeoutFired() { s.emitTimeout() }
