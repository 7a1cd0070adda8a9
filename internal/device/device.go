// Package device wires provisioning, the hub session, twin sync, and the
// telemetry loop into one runnable device.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/veksa/envirosim/internal/config"
	"github.com/veksa/envirosim/internal/hub"
	"github.com/veksa/envirosim/internal/logging"
	"github.com/veksa/envirosim/internal/provision"
	"github.com/veksa/envirosim/internal/sim"
	"github.com/veksa/envirosim/internal/telemetry"
	"github.com/veksa/envirosim/internal/twin"
)

// session is the slice of hub.Session the device core needs.
type session interface {
	twin.Reporter
	telemetry.Publisher
	SubscribeDesired(ctx context.Context, handler func(ctx context.Context, payload []byte)) error
	RequestTwin(ctx context.Context) error
	Close(ctx context.Context) error
}

// Run provisions the device, opens the hub session, and drives twin sync
// and telemetry until ctx is cancelled. The session is drained and closed
// before it returns.
func Run(ctx context.Context, cfg *config.Config) error {
	brokerURL, deviceID, token := cfg.HubURL, cfg.DeviceID, cfg.Token
	if cfg.ProvisioningURL != "" {
		reg, err := provision.NewClient(cfg.ProvisioningURL, cfg.ThingKey, cfg.ThingID).Register(ctx)
		if err != nil {
			return fmt.Errorf("provisioning: %w", err)
		}
		logging.Info("device registered", "deviceID", reg.DeviceID, "hub", reg.Hub)
		brokerURL, deviceID, token = reg.Hub, reg.DeviceID, reg.Token
	}

	sess, err := hub.Open(ctx, hub.Config{
		BrokerURL:        brokerURL,
		DeviceID:         deviceID,
		SensorID:         cfg.SensorID,
		Token:            token,
		ConnectTimeout:   cfg.ConnectTimeout(),
		PublishTimeout:   cfg.PublishTimeout(),
		SubscribeTimeout: cfg.SubscribeTimeout(),
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			logging.Warn("session close", "error", err)
		}
	}()

	return run(ctx, cfg, sess)
}

func run(ctx context.Context, cfg *config.Config, sess session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := twin.NewState(cfg.AmbientTemperature, cfg.AmbientHumidity)
	model := sim.NewModel(cfg.AmbientTemperature, cfg.AmbientHumidity, cfg.FanFailureRate, nil)
	handler := twin.NewSyncHandler(state, sess)

	// A report failure inside the async handler is fatal for the whole run.
	var fatal struct {
		sync.Mutex
		err error
	}
	setFatal := func(err error) {
		fatal.Lock()
		if fatal.err == nil {
			fatal.err = err
			cancel()
		}
		fatal.Unlock()
	}
	fatalErr := func() error {
		fatal.Lock()
		defer fatal.Unlock()
		return fatal.err
	}

	// The get-response and later desired patches arrive on the same topic,
	// so subscribing before the get keeps per-topic ordering intact: a get
	// answered after a newer patch just re-delivers the newer document.
	firstSync := make(chan struct{})
	var once sync.Once
	err := sess.SubscribeDesired(ctx, func(ctx context.Context, payload []byte) {
		if err := handler.OnDesiredChange(ctx, payload); err != nil {
			// a report cut short by shutdown is not a transport fault
			if errors.Is(err, context.Canceled) {
				return
			}
			logging.Error("desired state sync failed", "error", err)
			setFatal(err)
			return
		}
		once.Do(func() { close(firstSync) })
	})
	if err != nil {
		return fmt.Errorf("subscribe desired state: %w", err)
	}

	if err := sess.RequestTwin(ctx); err != nil {
		return fmt.Errorf("request twin: %w", err)
	}

	// Honor a persisted desired state before the first tick, but don't hang
	// on a hub that has nothing stored for us.
	select {
	case <-firstSync:
		logging.Info("twin synchronized")
	case <-time.After(cfg.TwinSyncWait()):
		logging.Warn("no desired state from hub, starting with defaults", "waitedMs", cfg.TwinSyncWaitMs)
	case <-ctx.Done():
		return fatalErr()
	}

	loop := telemetry.NewLoop(telemetry.Config{
		SensorID:              cfg.SensorID,
		Interval:              cfg.TelemetryInterval(),
		TemperatureAlertLimit: cfg.TemperatureAlertLimit,
		HumidityAlertLimit:    cfg.HumidityAlertLimit,
	}, state, model, sess)

	runErr := loop.Run(ctx)
	if err := fatalErr(); err != nil {
		return err
	}
	return runErr
}
