// Package hub is the device side of the telemetry hub session: one MQTT
// connection carrying twin sync, telemetry, and presence.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/veksa/envirosim/internal/logging"
	"github.com/veksa/envirosim/internal/telemetry"
	"github.com/veksa/envirosim/internal/twin"
)

// twinKey is the single twin document key used by this device class.
const twinKey = "climate"

type Config struct {
	BrokerURL string
	DeviceID  string
	SensorID  string
	// Token is the credential issued by provisioning; empty for open hubs.
	Token            string
	ConnectTimeout   time.Duration
	PublishTimeout   time.Duration
	SubscribeTimeout time.Duration
}

type Session struct {
	cfg    Config
	client mqtt.Client
}

// Open connects to the hub and announces presence. The retained offline
// will is registered before connecting so the hub sees the device go
// offline even on a crash.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{cfg: cfg}

	offline, err := json.Marshal(s.presence("offline"))
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.DeviceID)
	if cfg.Token != "" {
		opts.SetUsername(cfg.DeviceID)
		opts.SetPassword(cfg.Token)
	}
	opts.SetAutoReconnect(true)
	opts.SetBinaryWill(s.topic("presence"), offline, 1, true)
	opts.OnConnect = func(mqtt.Client) {
		s.announce()
	}
	s.client = mqtt.NewClient(opts)

	t := s.client.Connect()
	done := make(chan struct{})
	go func() {
		t.Wait()
		close(done)
	}()

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	select {
	case <-done:
		if err := t.Error(); err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.BrokerURL, err)
		}
	case <-connectCtx.Done():
		s.client.Disconnect(250)
		return nil, connectCtx.Err()
	}
	return s, nil
}

type presenceDocument struct {
	Status   string `json:"status"`
	DeviceID string `json:"deviceId"`
	SensorID string `json:"sensorId"`
}

func (s *Session) presence(status string) presenceDocument {
	return presenceDocument{Status: status, DeviceID: s.cfg.DeviceID, SensorID: s.cfg.SensorID}
}

func (s *Session) announce() {
	online, err := json.Marshal(s.presence("online"))
	if err != nil {
		logging.Error("presence marshal", "error", err)
		return
	}
	if err := s.publish(context.Background(), s.topic("presence"), 1, true, online); err != nil {
		logging.Error("presence publish failed", "deviceID", s.cfg.DeviceID, "error", err)
		return
	}
	logging.Info("announced presence", "deviceID", s.cfg.DeviceID)
}

// desiredQueueSize bounds in-flight desired documents. The hub pushes them
// rarely; on overflow the paho dispatcher blocks instead of dropping.
const desiredQueueSize = 16

// startDesiredWorker returns an enqueue func feeding a single worker that
// invokes handler in arrival order. The paho callback must not block on the
// report publish the handler triggers, but detaching each message to its
// own goroutine would lose the broker's per-topic ordering and an older
// patch could overwrite a newer one. One queue, one consumer.
func startDesiredWorker(ctx context.Context, handler func(ctx context.Context, payload []byte)) func(topic string, payload []byte) {
	ch := make(chan []byte, desiredQueueSize)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-ch:
				func() {
					defer func() {
						if r := recover(); r != nil {
							logging.Error("desired state handler panic", "err", r)
						}
					}()
					handler(ctx, payload)
				}()
			}
		}
	}()
	return func(topic string, payload []byte) {
		select {
		case ch <- payload:
		case <-ctx.Done():
			logging.Warn("desired state dropped, session closing", "topic", topic)
		}
	}
}

// SubscribeDesired registers handler for desired-state documents pushed by
// the hub and waits for the SUBACK. Documents are applied strictly in
// arrival order.
func (s *Session) SubscribeDesired(ctx context.Context, handler func(ctx context.Context, payload []byte)) error {
	deliver := startDesiredWorker(ctx, handler)
	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		deliver(msg.Topic(), msg.Payload())
	}
	token := s.client.Subscribe(s.topic("twin", "requests", twinKey), 1, onMessage)
	if err := s.wait(ctx, token, s.cfg.SubscribeTimeout, "subscribe"); err != nil {
		return err
	}
	logging.Debug("subscribed to desired state", "deviceID", s.cfg.DeviceID)
	return nil
}

// RequestTwin asks the hub to republish the persisted desired document on
// the requests topic. The hub answers {} when nothing is stored.
func (s *Session) RequestTwin(ctx context.Context) error {
	keys, err := json.Marshal([]string{twinKey})
	if err != nil {
		return err
	}
	return s.publish(ctx, s.topic("twin", "get"), 1, false, keys)
}

// ReportState publishes a twin report.
func (s *Session) ReportState(ctx context.Context, doc twin.ReportedDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.publish(ctx, s.topic("twin", "reports", twinKey), 1, false, data)
}

// PublishTelemetry sends one telemetry event. The attributes ride in the
// property bag segment of the topic, never in the body.
func (s *Session) PublishTelemetry(ctx context.Context, ev telemetry.Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	return s.publish(ctx, s.topic("telemetry", propertyBag(ev.Attributes)), 0, false, data)
}

func (s *Session) publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	token := s.client.Publish(topic, qos, retain, payload)
	return s.wait(ctx, token, s.cfg.PublishTimeout, "publish "+topic)
}

func (s *Session) wait(ctx context.Context, token mqtt.Token, timeout time.Duration, op string) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s timeout after %v", op, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close retracts the presence announcement and disconnects with a short
// quiesce period.
func (s *Session) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if offline, err := json.Marshal(s.presence("offline")); err == nil {
		if err := s.publish(ctx, s.topic("presence"), 1, true, offline); err != nil {
			logging.Warn("offline presence publish failed", "error", err)
		}
	}
	done := make(chan struct{})
	go func() {
		// 250 ms quiesce period
		s.client.Disconnect(250)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
