package reassembly_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtjam/core/jitter"
	"github.com/rtjam/core/reassembly"
	"github.com/rtjam/core/wire"
)

// buildPayloadFrame encodes a single-marker inner packet (a chat
// request carrying one byte) into a full raw frame stamped with seq
// and red == 0.
func buildPayloadFrame(t *testing.T, seq uint8, marker byte) []byte {
	t.Helper()
	enc := wire.NewEncoder()
	require.NoError(t, enc.Append(&wire.InnerPacket{
		Type:    wire.TypeChatRequest,
		Payload: []byte{marker},
	}))
	return enc.Finish(wire.NewHeader(seq, 0))
}

// xorFrames computes the byte-wise XOR of a set of same-length raw
// frames, padding each out to wire.MaxUDP first, matching how the
// sender accumulates its mask before stamping the mask header.
func xorFrames(frames ...[]byte) [wire.MaxUDP]byte {
	var out [wire.MaxUDP]byte
	for _, f := range frames {
		for i, b := range f {
			out[i] ^= b
		}
	}
	return out
}

func TestInOrderDeliveryWithoutLoss(t *testing.T) {
	r := reassembly.New(nil)

	f0 := buildPayloadFrame(t, 0, 10)
	f1 := buildPayloadFrame(t, 1, 11)
	mask := xorFrames(f0, f1)
	// the mask frame is stamped with the sequence number right after
	// the group it covers, since the sender's seqno has already
	// advanced past the last frame in the group by the time it sends
	// the mask.
	maskFrame := append([]byte{byte(wire.NewHeader(2, 2))}, mask[1:]...)

	r.Receive(f0)
	r.Receive(f1)
	r.Receive(maskFrame)
	r.Recover()

	for i, want := range []byte{10, 11} {
		packets, ok := r.Deliver()
		require.Truef(t, ok, "delivery %d", i)
		require.Len(t, packets, 1)
		assert.Equal(t, want, packets[0].Payload[0])
	}
}

func TestFECRecoversOneOfFourMissing(t *testing.T) {
	r := reassembly.New(nil)

	frames := []([]byte){
		buildPayloadFrame(t, 0, 100),
		buildPayloadFrame(t, 1, 101),
		buildPayloadFrame(t, 2, 102),
		buildPayloadFrame(t, 3, 103),
	}
	mask := xorFrames(frames...)
	maskFrame := append([]byte{byte(wire.NewHeader(4, 4))}, mask[1:]...)

	// drop frame 2, the frame that would have carried payload 102
	r.Receive(frames[0])
	r.Receive(frames[1])
	r.Receive(frames[3])
	r.Receive(maskFrame)
	r.Recover()

	got := make([]byte, 0, 4)
	for i := 0; i < 4; i++ {
		packets, ok := r.Deliver()
		require.Truef(t, ok, "delivery %d", i)
		require.Len(t, packets, 1)
		got = append(got, packets[0].Payload[0])
	}
	assert.Equal(t, []byte{100, 101, 102, 103}, got)
}

// TestFECRecoveryCreditsLossNotDamage locks in that a concealed loss
// (recovered via the XOR mask) is counted against the meter's loss
// rate, not its damage rate: the damage rate is reserved for losses
// that couldn't be concealed and had to be covered with silence.
func TestFECRecoveryCreditsLossNotDamage(t *testing.T) {
	m := jitter.NewMeter(0)
	r := reassembly.New(m)

	frames := []([]byte){
		buildPayloadFrame(t, 0, 100),
		buildPayloadFrame(t, 1, 101),
		buildPayloadFrame(t, 2, 102),
		buildPayloadFrame(t, 3, 103),
	}
	mask := xorFrames(frames...)
	maskFrame := append([]byte{byte(wire.NewHeader(4, 4))}, mask[1:]...)

	// drop frame 2; it's the only loss in its group so FEC recovers it
	r.Receive(frames[0])
	r.Receive(frames[1])
	r.Receive(frames[3])
	r.Receive(maskFrame)
	r.Recover()

	assert.Greater(t, m.LossRate(), 0.0, "a concealed loss still counts as a loss")
	assert.Equal(t, 0.0, m.DamageRate(), "a concealed loss must not count as damage")

	for i := 0; i < 4; i++ {
		_, ok := r.Deliver()
		require.Truef(t, ok, "delivery %d", i)
	}
}

func TestTwoOfFourMissingFallsBackToSilence(t *testing.T) {
	r := reassembly.New(nil)

	frames := []([]byte){
		buildPayloadFrame(t, 0, 200),
		buildPayloadFrame(t, 1, 201),
		buildPayloadFrame(t, 2, 202),
		buildPayloadFrame(t, 3, 203),
	}
	mask := xorFrames(frames...)
	maskFrame := append([]byte{byte(wire.NewHeader(4, 4))}, mask[1:]...)

	// drop frames 1 and 2: FEC cannot recover two losses in one group
	r.Receive(frames[0])
	r.Receive(frames[3])
	r.Receive(maskFrame)
	// a frame from the next group must arrive before the reassembler
	// gives up waiting on this one and concedes the loss
	r.Receive(buildPayloadFrame(t, 4, 210))
	r.Recover()

	var types []wire.PacketType
	for i := 0; i < 4; i++ {
		packets, ok := r.Deliver()
		require.Truef(t, ok, "delivery %d", i)
		require.Len(t, packets, 1)
		types = append(types, packets[0].Type)
	}
	assert.Equal(t, []wire.PacketType{
		wire.TypeChatRequest, wire.TypeSilence, wire.TypeSilence, wire.TypeChatRequest,
	}, types)
}

func TestDeliverReturnsFalseWhenNothingPending(t *testing.T) {
	r := reassembly.New(nil)
	_, ok := r.Deliver()
	assert.False(t, ok)
}
