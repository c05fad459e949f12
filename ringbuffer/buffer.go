// Package ringbuffer implements the jitter-adaptive elastic sample
// ring buffer one direction of one peer's audio flows through between
// network arrival and playback consumption.
//
// Samples are pushed in by the reassembly pipeline as they arrive and
// pulled out at a fixed block size by the audio tick. The buffer
// tracks how full it tends to be just after each pull in a small
// decaying histogram (stats), and exposes that as two tri-state water
// marks a caller can use to decide when to Grow (insert a sample,
// absorbing one packet of slack) or Shrink (cross-fade out one
// millisecond, bleeding off accumulated latency).
package ringbuffer

import "github.com/rtjam/core/wire"

const (
	maxSamples  = wire.SeqMax * 2 * wire.DefSamples
	fadeSamples = wire.DefSamples
)

// Buffer is a fixed-capacity float sample ring buffer with built-in
// jitter tracking, underrun concealment and elastic grow/shrink.
// Not safe for concurrent use.
type Buffer struct {
	samples    []float32
	stats      []float32
	lastSample float32
	consumer   int
	total      int
	limit      uint16
	fadeIn     uint16
}

// New returns an empty Buffer ready for use.
func New() *Buffer {
	b := &Buffer{
		samples: make([]float32, maxSamples),
		stats:   make([]float32, wire.SeqMax*2),
	}
	b.Clear()
	return b
}

// Clear resets the buffer to empty, as at construction.
func (b *Buffer) Clear() {
	for i := range b.samples {
		b.samples[i] = 0
	}
	for i := range b.stats {
		b.stats[i] = 0
	}
	b.lastSample = 0
	b.consumer = 0
	b.total = 0
	b.limit = 3 // minimum value for handling one packet loss
	b.fadeIn = 0
}

// SetJitterLimitMS sets the target high-water mark, in milliseconds
// of buffered audio, that Shrink tries to keep the buffer under.
func (b *Buffer) SetJitterLimitMS(limitMS uint16) {
	b.limit = limitMS + 3
}

// Len returns the number of samples currently buffered.
func (b *Buffer) Len() int { return b.total }

func (b *Buffer) firstHalfFullBucket() int {
	for x := range b.stats {
		if b.stats[x] >= 0.5 {
			return x
		}
	}
	return len(b.stats)
}

// LowWater returns 0, 1 or 2: whether the buffer has been running
// low (0, go slower / grow), normal (1), or comfortably full (2) just
// after recent pulls.
func (b *Buffer) LowWater() uint8 {
	x := b.firstHalfFullBucket()
	switch {
	case x < 2:
		return 0
	case x > 2:
		return 2
	default:
		return 1
	}
}

// HighWater returns 0, 1 or 2: whether the buffer is comfortably
// under its configured limit (0), at it (1), or over it and should
// Shrink (2).
func (b *Buffer) HighWater() uint8 {
	x := b.firstHalfFullBucket()
	switch {
	case x < int(b.limit):
		return 0
	case x > int(b.limit):
		return 2
	default:
		return 1
	}
}

// Rem pops len(dst) samples into dst. If the buffer holds fewer than
// that, the shortfall is filled by decaying the last known sample
// toward zero (underrun concealment) and the fade-in countdown is
// rearmed so the next Add cross-fades back in cleanly. Rem also
// folds the post-pop fill level into the jitter histogram and, once a
// histogram bucket saturates, halves the whole histogram and Shrinks
// the buffer if it's been running persistently over its high-water
// limit.
func (b *Buffer) Rem(dst []float32) {
	num := len(dst)
	fwd := maxSamples - b.consumer
	underrun := num > b.total

	if underrun {
		for x := b.total; x < num; x++ {
			b.lastSample -= b.lastSample / wire.SampleRate
			dst[x] = b.lastSample
		}
		b.fadeIn = fadeSamples
		num = b.total
	}

	index := (b.total - num) / wire.DefSamples
	if index > len(b.stats)-1 {
		index = len(b.stats) - 1
	}
	b.stats[index]++

	if b.stats[index] >= 256 {
		for x := range b.stats {
			b.stats[x] /= 2
		}
		high := b.HighWater()
		if b.total >= num+wire.DefSamples && high > 1 {
			b.Shrink()
			fwd = maxSamples - b.consumer
		}
	}

	for num != 0 {
		if fwd > num {
			fwd = num
		}
		copy(dst[:fwd], b.samples[b.consumer:b.consumer+fwd])
		dst = dst[fwd:]
		num -= fwd
		b.consumer += fwd
		b.total -= fwd
		if b.consumer == maxSamples {
			b.consumer = 0
			fwd = maxSamples
		} else {
			break
		}
	}

	if underrun {
		for b.total < wire.DefSamples {
			producer := (b.consumer + b.total) % maxSamples
			b.lastSample -= b.lastSample / wire.SampleRate
			b.samples[producer] = b.lastSample
			b.total++
		}
	}
}

// Add pushes src into the buffer, cross-fading against the decaying
// last sample while a fade-in countdown (armed by underrun or
// AddSilence) is still active, and dropping whatever doesn't fit.
func (b *Buffer) Add(src []float32) {
	producer := (b.consumer + b.total) % maxSamples
	fwd := maxSamples - producer
	max := maxSamples - b.total

	num := len(src)
	if num > max {
		num = max
	}

	for num != 0 {
		if fwd > num {
			fwd = num
		}
		if fwd != 0 {
			if b.fadeIn != 0 {
				for x := 0; x != fwd; x++ {
					f := float32(b.fadeIn) / float32(fadeSamples)
					b.lastSample -= b.lastSample / wire.SampleRate
					b.samples[producer+x] = src[x] - f*src[x] + b.lastSample*f
					if b.fadeIn != 0 {
						b.fadeIn--
					}
				}
			} else {
				copy(b.samples[producer:producer+fwd], src[:fwd])
			}
			b.lastSample = b.samples[producer+fwd-1]
			src = src[fwd:]
			num -= fwd
			b.total += fwd
			producer += fwd
		}
		if producer == maxSamples {
			producer = 0
			fwd = maxSamples
		} else {
			break
		}
	}
}

// AddSilence pushes num samples of decaying last-sample extrapolation
// and arms the fade-in countdown, for use when a sequence slot is
// known lost and unrecoverable.
func (b *Buffer) AddSilence(num int) {
	producer := (b.consumer + b.total) % maxSamples
	fwd := maxSamples - producer
	max := maxSamples - b.total

	if num > max {
		num = max
	}

	for num != 0 {
		if fwd > num {
			fwd = num
		}
		if fwd != 0 {
			for x := 0; x != fwd; x++ {
				b.lastSample -= b.lastSample / wire.SampleRate
				b.samples[producer+x] = b.lastSample
			}
			b.fadeIn = fadeSamples
			num -= fwd
			b.total += fwd
			producer += fwd
		}
		if producer == maxSamples {
			producer = 0
			fwd = maxSamples
		} else {
			break
		}
	}
}

// Grow inserts one extra sample just before the producer end by
// averaging the last two samples and re-appending the original last
// sample, stretching the buffer by one sample without an audible
// click.
func (b *Buffer) Grow() {
	if b.total <= 1 {
		return
	}
	p0 := (b.consumer + b.total + maxSamples - 1) % maxSamples
	p1 := (b.consumer + b.total + maxSamples - 2) % maxSamples
	appended := b.samples[p0]
	b.samples[p0] = (b.samples[p0] + b.samples[p1]) / 2
	b.Add([]float32{appended})
}

// Shrink removes exactly one millisecond of buffered audio by
// cross-fading the first block into the following block with a
// linearly rising weight, then dropping the first block, and shifts
// the jitter histogram down by one bucket to match.
func (b *Buffer) Shrink() {
	if b.total < wire.DefSamples {
		return
	}
	for x := 0; x != wire.DefSamples; x++ {
		factor := float32(x) * (1.0 / float32(wire.DefSamples))
		p0 := b.consumer
		p1 := (b.consumer + wire.DefSamples) % maxSamples
		b.samples[p1] = b.samples[p0]*(1-factor) + b.samples[p1]*factor
		b.consumer++
		b.total--
		if b.consumer == maxSamples {
			b.consumer = 0
		}
	}
	copy(b.stats, b.stats[1:])
	b.stats[len(b.stats)-1] = 0
}
