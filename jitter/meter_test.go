package jitter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rtjam/core/jitter"
)

func TestMeterDecaysTowardZeroWhenIdle(t *testing.T) {
	m := jitter.NewMeter(100)
	m.RecordPacket()
	first := m.PacketRate()
	assert.Greater(t, first, 0.0)

	for i := 0; i < 1000; i++ {
		m.Tick()
	}
	assert.Less(t, m.PacketRate(), first/100)
}

func TestMeterConvergesUnderSteadyLoad(t *testing.T) {
	m := jitter.NewMeter(100)
	for i := 0; i < 5000; i++ {
		m.RecordPacket()
		m.Tick()
	}
	assert.InDelta(t, 1.0, m.PacketRate(), 0.05)
}

func TestMeterTracksLossAndDamageIndependently(t *testing.T) {
	m := jitter.NewMeter(0)
	m.RecordLoss()
	m.RecordDamage()
	assert.Greater(t, m.LossRate(), 0.0)
	assert.Greater(t, m.DamageRate(), 0.0)
	assert.Equal(t, 0.0, m.PacketRate())
}
