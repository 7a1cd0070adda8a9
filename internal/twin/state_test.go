package twin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState(70, 50)
	v := s.View()

	assert.Equal(t, FanOff, v.Fan)
	assert.Equal(t, 60.0, v.DesiredTemperature)
	assert.Equal(t, 30.0, v.DesiredHumidity)
	assert.Equal(t, 70.0, v.CurrentTemperature)
	assert.Equal(t, 50.0, v.CurrentHumidity)
}

func TestUpdateReturnsPostMutationCopy(t *testing.T) {
	s := NewState(70, 50)

	after := s.Update(func(v *Values) {
		v.Fan = FanOn
		v.DesiredTemperature = 72.5
	})

	assert.Equal(t, FanOn, after.Fan)
	assert.Equal(t, 72.5, after.DesiredTemperature)
	assert.Equal(t, after, s.View())
}

func TestReportedCarriesDesiredValues(t *testing.T) {
	v := Values{
		Fan:                FanOn,
		DesiredTemperature: 65,
		DesiredHumidity:    35,
		CurrentTemperature: 71.2,
		CurrentHumidity:    49.8,
	}

	doc := v.Reported()
	assert.Equal(t, "on", doc.FanState)
	assert.Equal(t, 65.0, doc.Temperature)
	assert.Equal(t, 35.0, doc.Humidity)
}
