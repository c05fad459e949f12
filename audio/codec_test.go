package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtjam/core/audio"
	"github.com/rtjam/core/wire"
)

var allFormats = []wire.PacketType{
	wire.TypeAudio8Bit1Ch, wire.TypeAudio8Bit2Ch,
	wire.TypeAudio16Bit1Ch, wire.TypeAudio16Bit2Ch,
	wire.TypeAudio24Bit1Ch, wire.TypeAudio24Bit2Ch,
	wire.TypeAudio32Bit1Ch, wire.TypeAudio32Bit2Ch,
}

func TestRoundTripWithinQuantizationBound(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999, -1.0, 0.1234, -0.9999}
	for _, format := range allFormats {
		format := format
		t.Run(format.String(), func(t *testing.T) {
			bound, err := audio.QuantizationBound(format)
			require.NoError(t, err)

			payload, err := audio.Encode(format, samples, samples)
			require.NoError(t, err)

			left, right, err := audio.Decode(format, payload)
			require.NoError(t, err)
			require.Len(t, left, len(samples))

			for i, want := range samples {
				assert.InDeltaf(t, want, left[i], float64(bound), "left[%d]", i)
				if right != nil {
					assert.InDeltaf(t, want, right[i], float64(bound), "right[%d]", i)
				}
			}
		})
	}
}

func TestDecodeMonoHasNoRightChannel(t *testing.T) {
	payload, err := audio.Encode(wire.TypeAudio16Bit1Ch, []float32{0.1, 0.2}, nil)
	require.NoError(t, err)

	_, right, err := audio.Decode(wire.TypeAudio16Bit1Ch, payload)
	require.NoError(t, err)
	assert.Nil(t, right)
}

func TestEncodeClampsOutOfRangeSamples(t *testing.T) {
	payload, err := audio.Encode(wire.TypeAudio16Bit1Ch, []float32{2.0, -2.0}, nil)
	require.NoError(t, err)

	left, _, err := audio.Decode(wire.TypeAudio16Bit1Ch, payload)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, left[0], 1e-3)
	assert.InDelta(t, -1.0, left[1], 1e-3)
}

func TestUnsupportedFormatErrors(t *testing.T) {
	_, _, err := audio.Decode(wire.TypeSilence, []byte{0, 0, 0, 0})
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	_, err = audio.Encode(wire.TypeSilence, nil, nil)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestSilenceRoundTrip(t *testing.T) {
	payload := audio.EncodeSilence(480)
	count, ok := audio.DecodeSilence(payload)
	require.True(t, ok)
	assert.Equal(t, uint32(480), count)
}

func TestDecodeSilenceRejectsShortPayload(t *testing.T) {
	_, ok := audio.DecodeSilence([]byte{1, 2})
	assert.False(t, ok)
}

func TestLevelPeakHoldAndDecay(t *testing.T) {
	var lvl audio.Level
	lvl.Add([]float32{0.1, -0.6, 0.3})
	assert.InDelta(t, 0.6, lvl.Value(), 1e-6)
	assert.InDelta(t, 0.3, lvl.Value(), 1e-6)
	assert.InDelta(t, 0.15, lvl.Value(), 1e-6)
}

func TestLevelClampsToOne(t *testing.T) {
	var lvl audio.Level
	lvl.Add([]float32{5.0})
	assert.Equal(t, float32(1.0), lvl.Value())
}
