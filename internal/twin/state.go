// Package twin holds the shared device twin record and the handler that
// keeps it in sync with the hub.
package twin

import "sync"

// FanState is the operating state of the fan actuator. Failed is terminal
// for the session; there is no reset.
type FanState string

const (
	FanOff    FanState = "off"
	FanOn     FanState = "on"
	FanFailed FanState = "failed"
)

// Values holds every twin field. Desired setpoints are written by the sync
// handler, current readings by the simulation tick.
type Values struct {
	Fan                FanState
	DesiredTemperature float64
	DesiredHumidity    float64
	CurrentTemperature float64
	CurrentHumidity    float64
}

// State is the shared twin record. One mutex guards all fields; the sync
// handler and the telemetry loop both go through Update or View, so neither
// can observe a half-applied patch.
type State struct {
	mu sync.Mutex
	v  Values
}

// NewState returns a twin seeded with defaults relative to the ambient
// climate: fan off, readings at ambient, setpoints 10 degrees and 20
// percentage points below it.
func NewState(ambientTemperature, ambientHumidity float64) *State {
	return &State{v: Values{
		Fan:                FanOff,
		DesiredTemperature: ambientTemperature - 10,
		DesiredHumidity:    ambientHumidity - 20,
		CurrentTemperature: ambientTemperature,
		CurrentHumidity:    ambientHumidity,
	}}
}

// Update runs fn under the state lock and returns a copy of the values as
// they stand after the mutation.
func (s *State) Update(fn func(*Values)) Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.v)
	return s.v
}

// View returns a copy of the current values.
func (s *State) View() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

// ReportedDocument is the twin report published back to the hub. The
// temperature and humidity keys carry the desired setpoints.
type ReportedDocument struct {
	FanState    string  `json:"fanstate"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
}

// Reported builds the report for a snapshot of the twin.
func (v Values) Reported() ReportedDocument {
	return ReportedDocument{
		FanState:    string(v.Fan),
		Humidity:    v.DesiredHumidity,
		Temperature: v.DesiredTemperature,
	}
}
