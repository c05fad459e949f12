package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtjam/core/wire"
)

func TestFaderValuePayloadRoundTripsOneValue(t *testing.T) {
	payload := wire.FaderValuePayload{FaderIndex: 7, Values: []float32{0.5}}.Encode()
	got, ok := wire.DecodeFaderValue(payload, 1)
	require.True(t, ok)
	assert.Equal(t, uint8(7), got.FaderIndex)
	assert.InDelta(t, 0.5, got.Values[0], 1e-6)
}

func TestFaderValuePayloadRoundTripsMultipleValues(t *testing.T) {
	payload := wire.FaderValuePayload{FaderIndex: 2, SubIndex: 1, Values: []float32{0.1, -0.75}}.Encode()
	got, ok := wire.DecodeFaderValue(payload, 2)
	require.True(t, ok)
	assert.Equal(t, uint8(2), got.FaderIndex)
	assert.Equal(t, uint8(1), got.SubIndex)
	require.Len(t, got.Values, 2)
	assert.InDelta(t, 0.1, got.Values[0], 1e-6)
	assert.InDelta(t, -0.75, got.Values[1], 1e-6)
}

func TestDecodeFaderValueRejectsShortPayload(t *testing.T) {
	_, ok := wire.DecodeFaderValue([]byte{1, 2}, 2)
	assert.False(t, ok)
}

func TestFaderDataPayloadRoundTripsAndPads(t *testing.T) {
	payload := wire.FaderDataPayload{FaderIndex: 3, Data: []byte("hi")}.Encode()
	assert.Zero(t, len(payload)%4, "payload must land on a 4-byte boundary")

	got, ok := wire.DecodeFaderData(payload)
	require.True(t, ok)
	assert.Equal(t, uint8(3), got.FaderIndex)
	assert.Equal(t, "hi", string(got.Data[:2]))
}

func TestFaderDataPayloadEmptyDataStillCarriesIndex(t *testing.T) {
	payload := wire.FaderDataPayload{FaderIndex: 9}.Encode()
	got, ok := wire.DecodeFaderData(payload)
	require.True(t, ok)
	assert.Equal(t, uint8(9), got.FaderIndex)
	// the 2-byte header is padded to 4 bytes and DecodeFaderData keeps
	// the pad, so an empty Data comes back as two zero bytes.
	assert.Equal(t, []byte{0, 0}, got.Data)
}

func TestRawDataPayloadRoundTripsAndPads(t *testing.T) {
	payload := wire.RawDataPayload{Data: []byte("hello")}.Encode()
	assert.Zero(t, len(payload)%4)

	got := wire.DecodeRawData(payload)
	assert.Equal(t, "hello", string(got.Data[:5]))
}

func TestRawDataPayloadRoundTripsThroughAFrame(t *testing.T) {
	enc := wire.NewEncoder()
	pkt := wire.InnerPacket{Type: wire.TypeChatRequest, Payload: wire.RawDataPayload{Data: []byte("gig starts at 9")}.Encode()}
	require.NoError(t, enc.Append(&pkt))

	frame := enc.Finish(wire.NewHeader(0, 0))
	_, packets := wire.Decode(frame)
	require.Len(t, packets, 1)

	got := wire.DecodeRawData(packets[0].Payload)
	require.GreaterOrEqual(t, len(got.Data), 15)
	assert.Equal(t, "gig starts at 9", string(got.Data[:15]))
}
