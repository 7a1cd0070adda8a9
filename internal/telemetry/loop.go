// Package telemetry drives the climate simulation on a fixed cadence and
// publishes one event per tick.
package telemetry

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/veksa/envirosim/internal/logging"
	"github.com/veksa/envirosim/internal/sim"
	"github.com/veksa/envirosim/internal/twin"
)

// Payload is the telemetry message body. Readings are rounded to two
// decimals here, at serialization, not in the simulation.
type Payload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Event is one outbound telemetry message: the JSON payload plus transport
// attributes that ride outside the body.
type Event struct {
	Payload    Payload
	Attributes map[string]string
}

// Publisher sends one telemetry event as one wire message.
type Publisher interface {
	PublishTelemetry(ctx context.Context, ev Event) error
}

type Config struct {
	SensorID string
	Interval time.Duration
	// Alert thresholds: the alert attribute is attached only while the
	// reading is more than the limit away from its setpoint.
	TemperatureAlertLimit float64
	HumidityAlertLimit    float64
}

type Loop struct {
	cfg       Config
	state     *twin.State
	model     *sim.Model
	publisher Publisher
}

func NewLoop(cfg Config, state *twin.State, model *sim.Model, publisher Publisher) *Loop {
	return &Loop{cfg: cfg, state: state, model: model, publisher: publisher}
}

// Run publishes one event per tick until ctx is cancelled. Publish failures
// are not retried; the first one ends the loop.
func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.cfg.Interval)
	defer t.Stop()
	logging.Info("telemetry loop started",
		"sensorID", l.cfg.SensorID,
		"intervalMs", l.cfg.Interval.Milliseconds(),
	)
	for {
		select {
		case <-ctx.Done():
			logging.Info("telemetry loop stopped")
			return nil
		case <-t.C:
		}
		if ctx.Err() != nil { // cancelled while a tick was already pending
			logging.Info("telemetry loop stopped")
			return nil
		}

		after := l.state.Update(func(v *twin.Values) {
			before := v.Fan
			l.model.Advance(v)
			if before != v.Fan {
				logging.Warn("fan failure injected", "fanstate", v.Fan)
			}
		})

		ev := l.buildEvent(after)
		if err := l.publisher.PublishTelemetry(ctx, ev); err != nil {
			return fmt.Errorf("publish telemetry: %w", err)
		}
		logging.Info("published telemetry",
			"temperature", ev.Payload.Temperature,
			"humidity", ev.Payload.Humidity,
			"fanAlert", ev.Attributes["fanAlert"],
		)
	}
}

func (l *Loop) buildEvent(v twin.Values) Event {
	attrs := map[string]string{
		"sensorID": l.cfg.SensorID,
		"fanAlert": strconv.FormatBool(v.Fan == twin.FanFailed),
	}
	if math.Abs(v.CurrentTemperature-v.DesiredTemperature) > l.cfg.TemperatureAlertLimit {
		attrs["temperatureAlert"] = "true"
	}
	if math.Abs(v.CurrentHumidity-v.DesiredHumidity) > l.cfg.HumidityAlertLimit {
		attrs["humidityAlert"] = "true"
	}
	return Event{
		Payload: Payload{
			Temperature: round2(v.CurrentTemperature),
			Humidity:    round2(v.CurrentHumidity),
		},
		Attributes: attrs,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
