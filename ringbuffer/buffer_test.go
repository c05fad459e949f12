package ringbuffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtjam/core/ringbuffer"
	"github.com/rtjam/core/wire"
)

// exhaustFadeIn runs one block of zeros through a buffer with no
// underrun, leaving it empty with no fade-in countdown active, so a
// subsequent Add/Rem round trip is exact rather than cross-faded.
func exhaustFadeIn(b *ringbuffer.Buffer) {
	zeros := make([]float32, wire.DefSamples)
	b.Add(zeros)
	b.Rem(make([]float32, wire.DefSamples))
}

func TestAddRemRoundTripIsExactAfterFadeIn(t *testing.T) {
	b := ringbuffer.New()
	exhaustFadeIn(b)

	src := make([]float32, wire.DefSamples)
	for i := range src {
		src[i] = float32(i) / float32(len(src))
	}
	b.Add(src)

	dst := make([]float32, wire.DefSamples)
	b.Rem(dst)
	require.Equal(t, src, dst)
}

func TestUnderrunConcealsWithDecayingLastSample(t *testing.T) {
	b := ringbuffer.New()
	exhaustFadeIn(b)

	b.Add([]float32{0.5})
	dst := make([]float32, wire.DefSamples)
	b.Rem(dst) // only 1 sample buffered, rest must be concealed

	assert.InDelta(t, 0.5, dst[0], 1e-6)
	for i := 1; i < len(dst); i++ {
		assert.Less(t, dst[i], dst[i-1], "concealed samples must decay monotonically toward zero")
		assert.GreaterOrEqual(t, dst[i], float32(0))
	}
}

func TestFadeInConvergesTowardSourceAfterResumption(t *testing.T) {
	b := ringbuffer.New()
	exhaustFadeIn(b)

	// force an underrun, which rearms the fade-in countdown and
	// backfills the buffer with concealment samples
	b.Rem(make([]float32, wire.DefSamples))

	src := make([]float32, wire.DefSamples)
	for i := range src {
		src[i] = 1.0
	}
	b.Add(src)

	// drain the concealment backfill first; the faded block we just
	// added is queued right behind it
	b.Rem(make([]float32, wire.DefSamples))

	dst := make([]float32, wire.DefSamples)
	b.Rem(dst)

	// fade-in weight decreases every sample, so the gap to the true
	// source value must shrink monotonically.
	prevGap := float32(2.0)
	for i, v := range dst {
		gap := src[i] - v
		if gap < 0 {
			gap = -gap
		}
		assert.LessOrEqualf(t, gap, prevGap+1e-6, "sample %d: fade-in gap grew", i)
		prevGap = gap
	}
	assert.InDelta(t, src[len(src)-1], dst[len(dst)-1], 0.03)
}

func TestGrowIncreasesLengthByOne(t *testing.T) {
	b := ringbuffer.New()
	exhaustFadeIn(b)
	b.Add(make([]float32, 10))
	before := b.Len()
	b.Grow()
	assert.Equal(t, before+1, b.Len())
}

func TestShrinkRemovesOneMillisecond(t *testing.T) {
	b := ringbuffer.New()
	exhaustFadeIn(b)
	b.Add(make([]float32, wire.DefSamples*2))
	before := b.Len()
	b.Shrink()
	assert.Equal(t, before-wire.DefSamples, b.Len())
}

func TestShrinkIsNoopBelowOneMillisecond(t *testing.T) {
	b := ringbuffer.New()
	exhaustFadeIn(b)
	b.Clear()
	b.Add(make([]float32, wire.DefSamples-1))
	before := b.Len()
	b.Shrink()
	assert.Equal(t, before, b.Len())
}

func TestFreshBufferReportsHighLowAndHighWater(t *testing.T) {
	b := ringbuffer.New()
	assert.Equal(t, uint8(2), b.LowWater())
	assert.Equal(t, uint8(2), b.HighWater())
}
