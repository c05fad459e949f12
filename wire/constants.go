// Package wire implements the on-wire frame and inner-packet codec: a
// fixed-size UDP payload carrying a one-byte header followed by a
// self-terminating sequence of variable-length inner packets.
//
// The codec never trusts declared lengths; every traversal clamps to
// the frame boundary so a corrupt or truncated datagram can never walk
// off the end of the buffer. Malformed input is always handled by
// stopping traversal early, never by panicking or returning a hard
// error: protocol-malformation is silent dropping.
package wire

// SeqMax is the sequence-number modulus and FEC window size.
const SeqMax = 16

// DefSamples is the nominal block size in samples (~1ms at 48kHz).
const DefSamples = 48

// NomSamples is the nominal sample count substituted for a lost,
// unrecoverable frame during delivery.
const NomSamples = 48

// SampleRate is the default audio sample rate in Hz, used when no
// other rate has been negotiated.
const SampleRate = 48000

// MaxUDP is the fixed maximum size of one on-wire frame in bytes.
// Chosen as 1500 (Ethernet MTU) minus a 20-byte IPv4 header minus an
// 8-byte UDP header, which keeps datagrams under the common
// non-fragmenting path on the public internet. It must be divisible
// by eight; 1472/8 = 184.
const MaxUDP = 1472

// MaxInnerPacketBytes is the largest a single inner packet can be on
// the wire, header included: an 8-bit length field, in 4-byte units,
// caps it at 255*4 bytes. The largest payload that fits is this minus
// innerHeaderSize.
const MaxInnerPacketBytes = 255 * 4

// headerSize is the size of the frame header in bytes.
const headerSize = 1

// innerHeaderSize is the size of one inner packet's fixed header
// (length, type, local_seq, peer_seq) in bytes.
const innerHeaderSize = 4

// PacketType identifies the payload carried by one inner packet.
type PacketType uint8

// Inner packet types. The numeric gap between the audio formats and
// the control types (9..60 reserved) is a deliberate extension range,
// not an arbitrary renumbering.
const (
	TypeEnd PacketType = iota
	TypeAudio8Bit1Ch
	TypeAudio8Bit2Ch
	TypeAudio16Bit1Ch
	TypeAudio16Bit2Ch
	TypeAudio24Bit1Ch
	TypeAudio24Bit2Ch
	TypeAudio32Bit1Ch
	TypeAudio32Bit2Ch
)

const (
	// TypeAudioMax marks the end of the reserved audio-format range.
	TypeAudioMax PacketType = 60
	// TypeMIDI carries a raw MIDI burst. Its payload is round-tripped
	// but never interpreted by this core.
	TypeMIDI PacketType = 61
	// TypeSilence carries a 32-bit sample count; decoding expands it
	// to that many zero samples.
	TypeSilence PacketType = 62
	// TypeACK acknowledges a peer sequence number.
	TypeACK PacketType = 63
)

const (
	TypeConfigureRequest PacketType = iota + 64
	TypePingRequest
	TypePingReply
	TypeIconRequest
	TypeNameRequest
	TypeLyricsRequest
	TypeLyricsReply
	TypeChatRequest
	TypeChatReply
	TypeFaderGainRequest
	TypeFaderGainReply
	TypeFaderPanRequest
	TypeFaderPanReply
	TypeFaderBitsRequest
	TypeFaderBitsReply
	TypeFaderIconReply
	TypeFaderNameReply
	TypeFaderLevelReply
	TypeFaderEQRequest
	TypeFaderEQReply
	TypeFaderDisconnectReply
	TypeLocalGainReply
	TypeLocalPanReply
	TypeLocalEQReply
)

// IsAudio reports whether t is one of the eight fixed-width PCM
// formats (types 1..8).
func (t PacketType) IsAudio() bool {
	return t >= TypeAudio8Bit1Ch && t <= TypeAudio32Bit2Ch
}

var packetTypeNames = map[PacketType]string{
	TypeEnd:                  "End",
	TypeAudio8Bit1Ch:         "Audio8Bit1Ch",
	TypeAudio8Bit2Ch:         "Audio8Bit2Ch",
	TypeAudio16Bit1Ch:        "Audio16Bit1Ch",
	TypeAudio16Bit2Ch:        "Audio16Bit2Ch",
	TypeAudio24Bit1Ch:        "Audio24Bit1Ch",
	TypeAudio24Bit2Ch:        "Audio24Bit2Ch",
	TypeAudio32Bit1Ch:        "Audio32Bit1Ch",
	TypeAudio32Bit2Ch:        "Audio32Bit2Ch",
	TypeMIDI:                 "MIDI",
	TypeSilence:              "Silence",
	TypeACK:                  "ACK",
	TypeConfigureRequest:     "ConfigureRequest",
	TypePingRequest:          "PingRequest",
	TypePingReply:            "PingReply",
	TypeIconRequest:          "IconRequest",
	TypeNameRequest:          "NameRequest",
	TypeLyricsRequest:        "LyricsRequest",
	TypeLyricsReply:          "LyricsReply",
	TypeChatRequest:          "ChatRequest",
	TypeChatReply:            "ChatReply",
	TypeFaderGainRequest:     "FaderGainRequest",
	TypeFaderGainReply:       "FaderGainReply",
	TypeFaderPanRequest:      "FaderPanRequest",
	TypeFaderPanReply:        "FaderPanReply",
	TypeFaderBitsRequest:     "FaderBitsRequest",
	TypeFaderBitsReply:       "FaderBitsReply",
	TypeFaderIconReply:       "FaderIconReply",
	TypeFaderNameReply:       "FaderNameReply",
	TypeFaderLevelReply:      "FaderLevelReply",
	TypeFaderEQRequest:       "FaderEQRequest",
	TypeFaderEQReply:         "FaderEQReply",
	TypeFaderDisconnectReply: "FaderDisconnectReply",
	TypeLocalGainReply:       "LocalGainReply",
	TypeLocalPanReply:        "LocalPanReply",
	TypeLocalEQReply:         "LocalEQReply",
}

// String implements fmt.Stringer so PacketType values read naturally
// in logrus fields and test names.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}
