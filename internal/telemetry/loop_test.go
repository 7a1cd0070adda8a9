package telemetry

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veksa/envirosim/internal/sim"
	"github.com/veksa/envirosim/internal/twin"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *capturePublisher) PublishTelemetry(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *capturePublisher) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func testConfig(interval time.Duration) Config {
	return Config{
		SensorID:              "S1",
		Interval:              interval,
		TemperatureAlertLimit: 5,
		HumidityAlertLimit:    10,
	}
}

func TestBuildEventRoundsPayload(t *testing.T) {
	l := NewLoop(testConfig(time.Second), nil, nil, nil)

	ev := l.buildEvent(twin.Values{
		CurrentTemperature: 72.4567,
		CurrentHumidity:    49.994,
		DesiredTemperature: 72,
		DesiredHumidity:    50,
	})

	assert.Equal(t, 72.46, ev.Payload.Temperature)
	assert.Equal(t, 49.99, ev.Payload.Humidity)
}

func TestBuildEventTemperatureAlertPresence(t *testing.T) {
	l := NewLoop(testConfig(time.Second), nil, nil, nil)

	over := l.buildEvent(twin.Values{DesiredTemperature: 70, CurrentTemperature: 76, DesiredHumidity: 50, CurrentHumidity: 50})
	assert.Equal(t, "true", over.Attributes["temperatureAlert"])

	within := l.buildEvent(twin.Values{DesiredTemperature: 70, CurrentTemperature: 74, DesiredHumidity: 50, CurrentHumidity: 50})
	_, present := within.Attributes["temperatureAlert"]
	assert.False(t, present, "the attribute is absent, not false, inside the threshold")
}

func TestBuildEventHumidityAlertPresence(t *testing.T) {
	l := NewLoop(testConfig(time.Second), nil, nil, nil)

	over := l.buildEvent(twin.Values{DesiredHumidity: 50, CurrentHumidity: 61, DesiredTemperature: 70, CurrentTemperature: 70})
	assert.Equal(t, "true", over.Attributes["humidityAlert"])

	within := l.buildEvent(twin.Values{DesiredHumidity: 50, CurrentHumidity: 59, DesiredTemperature: 70, CurrentTemperature: 70})
	_, present := within.Attributes["humidityAlert"]
	assert.False(t, present)
}

func TestBuildEventFanAlertAlwaysPresent(t *testing.T) {
	l := NewLoop(testConfig(time.Second), nil, nil, nil)

	healthy := l.buildEvent(twin.Values{Fan: twin.FanOn, DesiredTemperature: 70, CurrentTemperature: 70, DesiredHumidity: 50, CurrentHumidity: 50})
	assert.Equal(t, "false", healthy.Attributes["fanAlert"])
	assert.Equal(t, "S1", healthy.Attributes["sensorID"])

	failed := l.buildEvent(twin.Values{Fan: twin.FanFailed, DesiredTemperature: 70, CurrentTemperature: 70, DesiredHumidity: 50, CurrentHumidity: 50})
	assert.Equal(t, "true", failed.Attributes["fanAlert"])
}

func TestRunPublishesEachTickUntilCancelled(t *testing.T) {
	state := twin.NewState(70, 50)
	model := sim.NewModel(70, 50, 0, rand.New(rand.NewPCG(1, 2)))
	publisher := &capturePublisher{}
	l := NewLoop(testConfig(10*time.Millisecond), state, model, publisher)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := l.Run(ctx)
	require.NoError(t, err, "cancellation is a clean exit")

	events := publisher.snapshot()
	require.GreaterOrEqual(t, len(events), 3)
	for _, ev := range events {
		assert.LessOrEqual(t, ev.Payload.Humidity, 100.0)
		assert.Contains(t, ev.Attributes, "sensorID")
		assert.Contains(t, ev.Attributes, "fanAlert")
	}
}

func TestRunStopsOnPublishError(t *testing.T) {
	state := twin.NewState(70, 50)
	model := sim.NewModel(70, 50, 0, rand.New(rand.NewPCG(1, 2)))
	publisher := &capturePublisher{err: errors.New("connection reset")}
	l := NewLoop(testConfig(5*time.Millisecond), state, model, publisher)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := l.Run(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "publish telemetry")
	assert.Len(t, publisher.snapshot(), 1, "no retry after a transport failure")
}

func TestRunAdvancesSharedState(t *testing.T) {
	state := twin.NewState(70, 50)
	state.Update(func(v *twin.Values) { v.Fan = twin.FanOn; v.DesiredTemperature = 90 })
	model := sim.NewModel(70, 50, 0, rand.New(rand.NewPCG(7, 7)))
	publisher := &capturePublisher{}
	l := NewLoop(testConfig(5*time.Millisecond), state, model, publisher)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Run(ctx))

	after := state.View()
	assert.NotEqual(t, 70.0, after.CurrentTemperature, "ticks write results back into the twin")
}
