package sim

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veksa/envirosim/internal/twin"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestAdvanceWalksTowardSetpointWithFanOn(t *testing.T) {
	m := NewModel(70, 50, 0, testRNG())
	v := twin.Values{
		Fan:                twin.FanOn,
		DesiredTemperature: 90,
		DesiredHumidity:    50,
		CurrentTemperature: 70,
		CurrentHumidity:    50,
	}

	// expected gain is ~1 per tick while below the setpoint
	for i := 0; i < 100; i++ {
		m.Advance(&v)
	}
	assert.Greater(t, v.CurrentTemperature, 85.0)
}

func TestAdvanceClampsHumidity(t *testing.T) {
	m := NewModel(70, 50, 0, testRNG())
	v := twin.Values{
		Fan:                twin.FanOn,
		DesiredTemperature: 70,
		DesiredHumidity:    150,
		CurrentTemperature: 70,
		CurrentHumidity:    95,
	}

	maxSeen := v.CurrentHumidity
	for i := 0; i < 500; i++ {
		m.Advance(&v)
		require.LessOrEqual(t, v.CurrentHumidity, 100.0)
		maxSeen = math.Max(maxSeen, v.CurrentHumidity)
	}
	// the walk actually reached the clamp at some point
	assert.Equal(t, 100.0, maxSeen)
}

func TestAdvanceDriftsTowardAmbientWhenOff(t *testing.T) {
	m := NewModel(70, 50, 0, testRNG())
	v := twin.Values{
		Fan:                twin.FanOff,
		DesiredTemperature: 90,
		CurrentTemperature: 90,
		DesiredHumidity:    50,
		CurrentHumidity:    50,
	}

	for i := 0; i < 50; i++ {
		before := v.CurrentTemperature
		m.Advance(&v)
		if math.Abs(70-before) > 1 {
			assert.LessOrEqual(t, v.CurrentTemperature, before, "far from ambient the drift is monotonic")
			assert.LessOrEqual(t, before-v.CurrentTemperature, 0.1)
		}
	}
	assert.Less(t, v.CurrentTemperature, 90.0)
}

func TestAdvanceFluctuatesNearAmbient(t *testing.T) {
	m := NewModel(70, 50, 0, testRNG())
	v := twin.Values{
		Fan:                twin.FanOff,
		CurrentTemperature: 70.2,
		CurrentHumidity:    50,
	}

	before := v.CurrentTemperature
	m.Advance(&v)
	assert.LessOrEqual(t, math.Abs(v.CurrentTemperature-before), 0.5)
}

func TestAdvanceFanFailureIsIrreversible(t *testing.T) {
	m := NewModel(70, 50, 1, testRNG()) // fails on the first tick
	v := twin.Values{Fan: twin.FanOn, CurrentTemperature: 70, CurrentHumidity: 50}

	m.Advance(&v)
	require.Equal(t, twin.FanFailed, v.Fan)

	for i := 0; i < 10; i++ {
		m.Advance(&v)
		assert.Equal(t, twin.FanFailed, v.Fan)
	}
}

func TestAdvanceFailureRateConverges(t *testing.T) {
	m := NewModel(70, 50, 0.01, testRNG())

	const ticks = 200000
	failures := 0
	for i := 0; i < ticks; i++ {
		v := twin.Values{Fan: twin.FanOn, CurrentTemperature: 70, CurrentHumidity: 50}
		m.Advance(&v)
		if v.Fan == twin.FanFailed {
			failures++
		}
	}

	rate := float64(failures) / float64(ticks)
	assert.InDelta(t, 0.01, rate, 0.002, "empirical failure rate per tick")
}

func TestSign(t *testing.T) {
	assert.Equal(t, 1.0, sign(3.2))
	assert.Equal(t, -1.0, sign(-0.4))
	assert.Equal(t, 0.0, sign(0))
}
