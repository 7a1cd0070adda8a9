package main

import (
	"context"
	"strings"

	"github.com/DrmagicE/gmqtt"
	"github.com/DrmagicE/gmqtt/pkg/packets"
	"github.com/goccy/go-json"

	"github.com/veksa/envirosim/internal/logging"
)

// hubPlugin implements the gmqtt plugin interface: it persists twin
// reports, answers twin/get with the stored desired document, and lets
// everything else (telemetry, presence) pass through to subscribers.
type hubPlugin struct {
	store   *hubStore
	service gmqtt.Server
}

// Load implements plugin interface
func (p *hubPlugin) Load(service gmqtt.Server) error {
	p.service = service
	return nil
}

// Unload implements plugin interface
func (p *hubPlugin) Unload() error { return nil }

// Name implements plugin interface
func (p *hubPlugin) Name() string { return "envirosim hub" }

// HookWrapper implements plugin interface
func (p *hubPlugin) HookWrapper() gmqtt.HookWrapper {
	return gmqtt.HookWrapper{
		OnMsgArrivedWrapper: p.OnMsgArrivedWrapper,
	}
}

// publishQ1 pushes a message to connected subscribers with quality level 1.
func (p *hubPlugin) publishQ1(topic string, payload []byte) {
	p.service.PublishService().Publish(gmqtt.NewMessage(topic, payload, packets.QOS_1))
}

// OnMsgArrivedWrapper intercepts twin traffic from devices.
func (p *hubPlugin) OnMsgArrivedWrapper(arrived gmqtt.OnMsgArrived) gmqtt.OnMsgArrived {
	return func(ctx context.Context, client gmqtt.Client, msg packets.Message) bool {
		deviceID := client.OptionsReader().ClientID()
		topic := msg.Topic()

		reportsPrefix := "envirosim/" + deviceID + "/twin/reports/"
		switch {
		case strings.HasPrefix(topic, reportsPrefix):
			key := strings.TrimPrefix(topic, reportsPrefix)
			body := msg.Payload()
			if strings.Contains(key, "/") || !json.Valid(body) {
				logging.Warn("invalid twin report", "topic", topic)
				return false
			}
			p.store.setReport(deviceID, key, body)
			logging.Info("stored twin report", "deviceID", deviceID, "key", key)

		case topic == "envirosim/"+deviceID+"/twin/get":
			var keys []string
			if err := json.Unmarshal(msg.Payload(), &keys); err != nil {
				logging.Warn("invalid twin get", "topic", topic, "error", err)
				return false
			}
			for _, key := range keys {
				p.publishQ1("envirosim/"+deviceID+"/twin/requests/"+key, p.store.request(deviceID, key))
			}
		}

		return arrived(ctx, client, msg)
	}
}
