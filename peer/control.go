package peer

import (
	"bytes"

	"github.com/rtjam/core/wire"
)

// handleControl decodes and dispatches a reliable control packet
// (inner packet types 64 and above) that has just been delivered in
// order. The caller has already scheduled the ACK that ultimately
// confirms receipt; this only extracts the payload and fans it out to
// the configured event sink or to the endpoint's own mirrored state.
func (e *Endpoint) handleControl(pkt wire.InnerPacket) {
	switch pkt.Type {
	case wire.TypeConfigureRequest:
		if cfg, ok := wire.DecodeConfigure(pkt.Payload); ok {
			e.outputFormat = cfg.OutputFormat
		}
	case wire.TypePingRequest:
		if ping, ok := wire.DecodePing(pkt.Payload); ok {
			reply := wire.PingPayload{Packets: ping.Packets, TimeMS: ping.TimeMS, Password: ping.Password}
			e.packetizer.Enqueue(wire.InnerPacket{Type: wire.TypePingReply, Payload: reply.Encode()})
		}
	case wire.TypePingReply:
		// round-trip timing for pings is carried by the ACK path
		// (packetizer.Ack); the reply payload itself is an echo and
		// needs no further action here.
	case wire.TypeIconRequest:
		e.icon = append([]byte(nil), wire.DecodeRawData(pkt.Payload).Data...)
	case wire.TypeNameRequest:
		e.name = trimPadding(wire.DecodeRawData(pkt.Payload).Data)
	case wire.TypeLyricsRequest, wire.TypeLyricsReply:
		text := trimPadding(wire.DecodeRawData(pkt.Payload).Data)
		if e.extSink != nil && e.extSink.ReceivedLyrics != nil {
			e.extSink.ReceivedLyrics(text)
		}
	case wire.TypeChatRequest, wire.TypeChatReply:
		text := trimPadding(wire.DecodeRawData(pkt.Payload).Data)
		if e.extSink != nil && e.extSink.ReceivedChat != nil {
			e.extSink.ReceivedChat(text)
		}
	case wire.TypeFaderGainRequest, wire.TypeFaderGainReply:
		if v, ok := wire.DecodeFaderValue(pkt.Payload, 1); ok {
			if e.extSink != nil && e.extSink.ReceivedFaderGain != nil {
				e.extSink.ReceivedFaderGain(v.FaderIndex, v.Values[0])
			}
		}
	case wire.TypeFaderPanRequest, wire.TypeFaderPanReply:
		if v, ok := wire.DecodeFaderValue(pkt.Payload, 1); ok {
			if e.extSink != nil && e.extSink.ReceivedFaderPan != nil {
				e.extSink.ReceivedFaderPan(v.FaderIndex, v.Values[0])
			}
		}
	case wire.TypeFaderBitsRequest:
		if d, ok := wire.DecodeFaderData(pkt.Payload); ok && len(d.Data) >= 1 {
			e.bits = d.Data[0]
		}
	case wire.TypeFaderBitsReply:
		if d, ok := wire.DecodeFaderData(pkt.Payload); ok {
			if len(d.Data) >= 1 {
				e.bits = d.Data[0]
			}
			if e.extSink != nil && e.extSink.ReceivedFaderSelf != nil {
				e.extSink.ReceivedFaderSelf(d.FaderIndex)
			}
		}
	case wire.TypeFaderIconReply:
		if d, ok := wire.DecodeFaderData(pkt.Payload); ok {
			if e.extSink != nil && e.extSink.ReceivedFaderIcon != nil {
				e.extSink.ReceivedFaderIcon(d.FaderIndex, d.Data)
			}
		}
	case wire.TypeFaderNameReply:
		if d, ok := wire.DecodeFaderData(pkt.Payload); ok {
			if e.extSink != nil && e.extSink.ReceivedFaderName != nil {
				e.extSink.ReceivedFaderName(d.FaderIndex, trimPadding(d.Data))
			}
		}
	case wire.TypeFaderLevelReply:
		if v, ok := wire.DecodeFaderValue(pkt.Payload, 2); ok {
			if e.extSink != nil && e.extSink.ReceivedFaderLevel != nil {
				e.extSink.ReceivedFaderLevel(v.FaderIndex, v.Values[0], v.Values[1])
			}
		}
	case wire.TypeFaderEQRequest, wire.TypeFaderEQReply:
		if d, ok := wire.DecodeFaderData(pkt.Payload); ok {
			if e.extSink != nil && e.extSink.ReceivedFaderEQ != nil {
				e.extSink.ReceivedFaderEQ(d.FaderIndex, trimPadding(d.Data))
			}
		}
	case wire.TypeFaderDisconnectReply:
		if d, ok := wire.DecodeFaderData(pkt.Payload); ok {
			if e.extSink != nil && e.extSink.ReceivedFaderDisconnect != nil {
				e.extSink.ReceivedFaderDisconnect(d.FaderIndex)
			}
		}
	case wire.TypeLocalGainReply:
		if v, ok := wire.DecodeFaderValue(pkt.Payload, 1); ok {
			e.gain = v.Values[0]
		}
	case wire.TypeLocalPanReply:
		if v, ok := wire.DecodeFaderValue(pkt.Payload, 1); ok {
			e.pan = v.Values[0]
		}
	case wire.TypeLocalEQReply:
		// equalizer DSP is out of scope; the curve is accepted on the
		// wire but not interpreted.
	}
}

// trimPadding strips the trailing zero bytes Encode added to round a
// text payload up to a 4-byte boundary.
func trimPadding(data []byte) string {
	return string(bytes.TrimRight(data, "\x00"))
}

// SendChat enqueues a chat message for reliable delivery.
func (e *Endpoint) SendChat(text string) {
	e.Enqueue(wire.InnerPacket{Type: wire.TypeChatRequest, Payload: wire.RawDataPayload{Data: []byte(text)}.Encode()})
}

// SendLyrics enqueues a lyrics update for reliable delivery.
func (e *Endpoint) SendLyrics(text string) {
	e.Enqueue(wire.InnerPacket{Type: wire.TypeLyricsRequest, Payload: wire.RawDataPayload{Data: []byte(text)}.Encode()})
}

// SendPing enqueues a ping request; the peer's reply arrives as a
// TypePingReply handled automatically, and the surrounding ACK
// round-trip is what packetizer.Ack times.
func (e *Endpoint) SendPing(packets, timeMS uint16, password uint64) {
	payload := wire.PingPayload{Packets: packets, TimeMS: timeMS, Password: password}.Encode()
	e.Enqueue(wire.InnerPacket{Type: wire.TypePingRequest, Payload: payload})
}

// SendConfigure enqueues a request that the peer re-encode its
// outbound audio to format.
func (e *Endpoint) SendConfigure(format wire.PacketType) {
	e.Enqueue(wire.InnerPacket{Type: wire.TypeConfigureRequest, Payload: wire.ConfigurePayload{OutputFormat: format}.Encode()})
}

// SendFaderGain enqueues a fader gain control addressed to
// faderIndex. reply selects FaderGainReply over FaderGainRequest.
func (e *Endpoint) SendFaderGain(faderIndex uint8, gain float32, reply bool) {
	t := wire.TypeFaderGainRequest
	if reply {
		t = wire.TypeFaderGainReply
	}
	payload := wire.FaderValuePayload{FaderIndex: faderIndex, Values: []float32{gain}}.Encode()
	e.Enqueue(wire.InnerPacket{Type: t, Payload: payload})
}

// SendFaderPan enqueues a fader pan control addressed to faderIndex.
// reply selects FaderPanReply over FaderPanRequest.
func (e *Endpoint) SendFaderPan(faderIndex uint8, pan float32, reply bool) {
	t := wire.TypeFaderPanRequest
	if reply {
		t = wire.TypeFaderPanReply
	}
	payload := wire.FaderValuePayload{FaderIndex: faderIndex, Values: []float32{pan}}.Encode()
	e.Enqueue(wire.InnerPacket{Type: t, Payload: payload})
}

// SendFaderName enqueues a fader name reply addressed to faderIndex.
func (e *Endpoint) SendFaderName(faderIndex uint8, name string) {
	payload := wire.FaderDataPayload{FaderIndex: faderIndex, Data: []byte(name)}.Encode()
	e.Enqueue(wire.InnerPacket{Type: wire.TypeFaderNameReply, Payload: payload})
}

// SendFaderLevel enqueues an input/output level report addressed to
// faderIndex.
func (e *Endpoint) SendFaderLevel(faderIndex uint8, in, out float32) {
	payload := wire.FaderValuePayload{FaderIndex: faderIndex, Values: []float32{in, out}}.Encode()
	e.Enqueue(wire.InnerPacket{Type: wire.TypeFaderLevelReply, Payload: payload})
}

// SendFaderDisconnect enqueues a disconnect notice for faderIndex.
func (e *Endpoint) SendFaderDisconnect(faderIndex uint8) {
	payload := wire.FaderDataPayload{FaderIndex: faderIndex}.Encode()
	e.Enqueue(wire.InnerPacket{Type: wire.TypeFaderDisconnectReply, Payload: payload})
}
