// Package audio implements the PCM ⇆ float sample codecs: signed
// little-endian integers at 8/16/24/32 bits, mono or stereo,
// full-range-scaled to [-1, +1), plus the silence token that expands
// to N zero samples without carrying any sample data at all.
//
// There is deliberately no compressed-codec integration point here;
// bit-rate negotiation is limited to choosing among the enumerated
// fixed-width PCM formats.
package audio

import (
	"fmt"

	"github.com/rtjam/core/wire"
)

// bitsAndChannels maps a wire.PacketType audio format to its bit
// width and channel count.
func bitsAndChannels(format wire.PacketType) (bits int, channels int, ok bool) {
	switch format {
	case wire.TypeAudio8Bit1Ch:
		return 8, 1, true
	case wire.TypeAudio8Bit2Ch:
		return 8, 2, true
	case wire.TypeAudio16Bit1Ch:
		return 16, 1, true
	case wire.TypeAudio16Bit2Ch:
		return 16, 2, true
	case wire.TypeAudio24Bit1Ch:
		return 24, 1, true
	case wire.TypeAudio24Bit2Ch:
		return 24, 2, true
	case wire.TypeAudio32Bit1Ch:
		return 32, 1, true
	case wire.TypeAudio32Bit2Ch:
		return 32, 2, true
	default:
		return 0, 0, false
	}
}

// ErrUnsupportedFormat is returned when asked to encode or decode a
// PacketType that isn't one of the eight fixed-width PCM formats.
var ErrUnsupportedFormat = fmt.Errorf("audio: unsupported sample format")

// QuantizationBound returns 2^-(bits-1), the maximum round-trip error
// a sample can pick up from being packed into the given format and
// back.
func QuantizationBound(format wire.PacketType) (float32, error) {
	bits, _, ok := bitsAndChannels(format)
	if !ok {
		return 0, ErrUnsupportedFormat
	}
	return 1.0 / float32(int64(1)<<uint(bits-1)), nil
}

// Encode packs left (and right, for stereo formats) into the wire
// payload bytes for format. right is ignored for mono formats and
// may be nil. Samples outside [-1, +1) are clamped before packing.
func Encode(format wire.PacketType, left, right []float32) ([]byte, error) {
	bits, channels, ok := bitsAndChannels(format)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	n := len(left)
	bytesPerSample := bits / 8
	frameBytes := bytesPerSample * channels
	payload := make([]byte, n*frameBytes)
	for i := 0; i < n; i++ {
		off := i * frameBytes
		putSample(payload[off:off+bytesPerSample], left[i], bits)
		if channels == 2 {
			r := float32(0)
			if i < len(right) {
				r = right[i]
			}
			putSample(payload[off+bytesPerSample:off+2*bytesPerSample], r, bits)
		}
	}
	return payload, nil
}

// Decode unpacks a wire payload encoded with Encode back into float
// samples. For mono formats right is nil.
func Decode(format wire.PacketType, payload []byte) (left, right []float32, err error) {
	bits, channels, ok := bitsAndChannels(format)
	if !ok {
		return nil, nil, ErrUnsupportedFormat
	}
	bytesPerSample := bits / 8
	frameBytes := bytesPerSample * channels
	n := len(payload) / frameBytes
	left = make([]float32, n)
	if channels == 2 {
		right = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		off := i * frameBytes
		left[i] = getSample(payload[off:off+bytesPerSample], bits)
		if channels == 2 {
			right[i] = getSample(payload[off+bytesPerSample:off+2*bytesPerSample], bits)
		}
	}
	return left, right, nil
}

// putSample packs one float sample in [-1, +1) into a little-endian
// signed integer of the given bit width, clamping out-of-range input.
func putSample(dst []byte, sample float32, bits int) {
	maxVal := int64(1) << uint(bits-1)
	scaled := int64(sample * float32(maxVal))
	if scaled >= maxVal {
		scaled = maxVal - 1
	}
	if scaled < -maxVal {
		scaled = -maxVal
	}
	u := uint32(scaled)
	for i := 0; i < len(dst); i++ {
		dst[i] = byte(u >> (8 * i))
	}
}

// getSample unpacks a little-endian signed integer of the given bit
// width into a float sample in [-1, +1), sign-extending 24-bit values.
func getSample(src []byte, bits int) float32 {
	var u uint32
	for i := 0; i < len(src); i++ {
		u |= uint32(src[i]) << (8 * i)
	}
	maxVal := int64(1) << uint(bits-1)
	v := int64(u)
	if bits < 32 {
		signBit := int64(1) << uint(bits-1)
		if v&signBit != 0 {
			v |= ^(signBit<<1 - 1)
		}
	} else {
		v = int64(int32(u))
	}
	return float32(v) / float32(maxVal)
}

// EncodeSilence returns the 4-byte payload for a TypeSilence packet
// carrying count samples.
func EncodeSilence(count uint32) []byte {
	return []byte{
		byte(count), byte(count >> 8), byte(count >> 16), byte(count >> 24),
	}
}

// DecodeSilence returns the sample count carried by a TypeSilence
// packet's payload.
func DecodeSilence(payload []byte) (uint32, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	return uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24, true
}
