// Package sim is the synthetic climate: a random walk that replaces real
// sensor hardware.
package sim

import (
	"math"
	"math/rand/v2"

	"github.com/veksa/envirosim/internal/twin"
)

// Model advances the simulated climate by one tick. With the fan running
// the readings walk toward the desired setpoints; otherwise they drift back
// toward ambient. A running fan fails with failureRate probability per tick
// and never recovers.
type Model struct {
	ambientTemperature float64
	ambientHumidity    float64
	failureRate        float64
	rng                *rand.Rand
}

// NewModel builds a model around the given ambient climate. Pass a seeded
// rng for deterministic behavior; nil gets a randomly seeded one.
func NewModel(ambientTemperature, ambientHumidity, failureRate float64, rng *rand.Rand) *Model {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Model{
		ambientTemperature: ambientTemperature,
		ambientHumidity:    ambientHumidity,
		failureRate:        failureRate,
		rng:                rng,
	}
}

// Advance mutates the current readings, and possibly the fan state, in
// place. Callers run it inside twin.State.Update so a tick is atomic with
// respect to inbound patches. Humidity never exceeds 100; values are not
// rounded here to avoid compounding error across ticks.
func (m *Model) Advance(v *twin.Values) {
	switch v.Fan {
	case twin.FanOn:
		v.CurrentTemperature += m.step(v.DesiredTemperature, v.CurrentTemperature)
		v.CurrentHumidity += m.step(v.DesiredHumidity, v.CurrentHumidity)
		// one failure roll per tick, checked after the walk
		if m.rng.Float64() < m.failureRate {
			v.Fan = twin.FanFailed
		}
	default:
		v.CurrentTemperature += m.drift(m.ambientTemperature, v.CurrentTemperature)
		v.CurrentHumidity += m.drift(m.ambientHumidity, v.CurrentHumidity)
	}
	if v.CurrentHumidity > 100 {
		v.CurrentHumidity = 100
	}
}

// step is the fan-driven walk: a unit move biased toward the setpoint plus
// noise.
func (m *Model) step(desired, current float64) float64 {
	return sign(desired-current)*m.rng.Float64() + m.rng.Float64() - 0.5
}

// drift pulls a reading back toward ambient, or lets it wander once within
// a unit of it.
func (m *Model) drift(ambient, current float64) float64 {
	if math.Abs(ambient-current) > 1 {
		return sign(ambient-current) * m.rng.Float64() * 0.1
	}
	return m.rng.Float64() - 0.5
}

func sign(d float64) float64 {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}
