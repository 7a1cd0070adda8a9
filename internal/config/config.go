// Package config decodes the device configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config carries everything the device daemon needs. Identity comes either
// from the provisioning service (PROVISIONING_URL plus the thing
// credentials) or directly (HUB_URL plus DEVICE_ID), the latter bypassing
// provisioning for local development.
type Config struct {
	ProvisioningURL string `env:"PROVISIONING_URL"`
	ThingKey        string `env:"THING_KEY"`
	ThingID         string `env:"THING_ID"`

	HubURL   string `env:"HUB_URL"`
	DeviceID string `env:"DEVICE_ID"`
	Token    string `env:"DEVICE_TOKEN"`

	SensorID            string  `env:"SENSOR_ID,default=S1"`
	TelemetryIntervalMs int     `env:"TELEMETRY_INTERVAL_MS,default=5000"`
	AmbientTemperature  float64 `env:"AMBIENT_TEMPERATURE,default=70"`
	AmbientHumidity     float64 `env:"AMBIENT_HUMIDITY,default=50"`

	TemperatureAlertLimit float64 `env:"TEMPERATURE_ALERT_LIMIT,default=5"`
	HumidityAlertLimit    float64 `env:"HUMIDITY_ALERT_LIMIT,default=10"`
	FanFailureRate        float64 `env:"FAN_FAILURE_RATE,default=0.01"`

	ConnectTimeoutMs   int `env:"CONNECT_TIMEOUT_MS,default=10000"`
	PublishTimeoutMs   int `env:"PUBLISH_TIMEOUT_MS,default=5000"`
	SubscribeTimeoutMs int `env:"SUBSCRIBE_TIMEOUT_MS,default=5000"`
	TwinSyncWaitMs     int `env:"TWIN_SYNC_WAIT_MS,default=10000"`
}

/* =========================
   Helpers
   ========================= */

func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.TelemetryIntervalMs) * time.Millisecond
}
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMs) * time.Millisecond
}
func (c *Config) SubscribeTimeout() time.Duration {
	return time.Duration(c.SubscribeTimeoutMs) * time.Millisecond
}
func (c *Config) TwinSyncWait() time.Duration {
	return time.Duration(c.TwinSyncWaitMs) * time.Millisecond
}

/* =========================
   Strict load + validate
   ========================= */

func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs multiErr

	provisioned := strings.TrimSpace(c.ProvisioningURL) != ""
	direct := strings.TrimSpace(c.HubURL) != ""
	switch {
	case provisioned:
		if strings.TrimSpace(c.ThingKey) == "" {
			errs.add("THING_KEY is required with PROVISIONING_URL")
		}
		if strings.TrimSpace(c.ThingID) == "" {
			errs.add("THING_ID is required with PROVISIONING_URL")
		}
	case direct:
		if strings.TrimSpace(c.DeviceID) == "" {
			errs.add("DEVICE_ID is required with HUB_URL")
		}
	default:
		errs.add("either PROVISIONING_URL or HUB_URL must be set")
	}

	if strings.TrimSpace(c.SensorID) == "" {
		errs.add("SENSOR_ID cannot be empty")
	}
	if c.TelemetryIntervalMs <= 0 {
		errs.addf("TELEMETRY_INTERVAL_MS must be > 0, got %d", c.TelemetryIntervalMs)
	}
	if c.FanFailureRate < 0 || c.FanFailureRate > 1 {
		errs.addf("FAN_FAILURE_RATE must be in [0,1], got %g", c.FanFailureRate)
	}
	if c.TemperatureAlertLimit < 0 {
		errs.addf("TEMPERATURE_ALERT_LIMIT cannot be negative, got %g", c.TemperatureAlertLimit)
	}
	if c.HumidityAlertLimit < 0 {
		errs.addf("HUMIDITY_ALERT_LIMIT cannot be negative, got %g", c.HumidityAlertLimit)
	}
	if c.ConnectTimeoutMs <= 0 {
		errs.addf("CONNECT_TIMEOUT_MS must be > 0, got %d", c.ConnectTimeoutMs)
	}
	if c.PublishTimeoutMs <= 0 {
		errs.addf("PUBLISH_TIMEOUT_MS must be > 0, got %d", c.PublishTimeoutMs)
	}
	if c.SubscribeTimeoutMs <= 0 {
		errs.addf("SUBSCRIBE_TIMEOUT_MS must be > 0, got %d", c.SubscribeTimeoutMs)
	}
	if c.TwinSyncWaitMs < 0 {
		errs.addf("TWIN_SYNC_WAIT_MS cannot be negative, got %d", c.TwinSyncWaitMs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
