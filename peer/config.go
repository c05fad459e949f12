package peer

import (
	"github.com/rtjam/core/jitter"
	"github.com/rtjam/core/packetizer"
	"github.com/rtjam/core/wire"
)

// Config holds the per-peer tunables an Endpoint is constructed with:
// the FEC redundancy distance, the PCM format used to encode audio
// sent to this peer, the elastic buffer's target high-water mark, and
// the jitter meter's decay window.
type Config struct {
	RedundancyDistance uint8
	OutputFormat       wire.PacketType
	JitterLimitMS      uint16
	JitterWindowTicks  uint32
}

// DefaultConfig returns the Config a newly accepted peer starts with:
// distance-2 FEC, 16-bit stereo output, no extra jitter headroom
// beyond the buffer's built-in 3ms floor, and the default meter
// decay window.
func DefaultConfig() Config {
	return Config{
		RedundancyDistance: packetizer.DefaultDistance,
		OutputFormat:       wire.TypeAudio16Bit2Ch,
		JitterLimitMS:      0,
		JitterWindowTicks:  jitter.DefaultWindow,
	}
}
