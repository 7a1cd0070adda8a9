package twin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/veksa/envirosim/internal/logging"
)

// Reporter publishes a twin report back to the hub.
type Reporter interface {
	ReportState(ctx context.Context, doc ReportedDocument) error
}

// SyncHandler applies desired-state documents pushed by the hub. It is
// invoked once at startup with the persisted desired state and then once
// per change notification.
type SyncHandler struct {
	state    *State
	reporter Reporter
}

func NewSyncHandler(state *State, reporter Reporter) *SyncHandler {
	return &SyncHandler{state: state, reporter: reporter}
}

// OnDesiredChange validates and applies one desired-state document. Fields
// that fail validation are dropped without affecting the rest of the patch.
// Every invocation ends with exactly one published report reflecting the
// twin as it stands after the patch; only a report transport failure is
// returned as an error.
func (h *SyncHandler) OnDesiredChange(ctx context.Context, payload []byte) error {
	var patch map[string]any
	if err := json.Unmarshal(payload, &patch); err != nil {
		logging.Warn("desired state document is not valid JSON", "error", err)
		patch = nil
	}

	after := h.state.Update(func(v *Values) {
		if raw, ok := patch["fanstate"]; ok {
			applyFanState(v, raw)
		}
		if raw, ok := patch["temperature"]; ok {
			if t, err := parseNumber(raw); err != nil {
				logging.Warn("rejected desired temperature", "value", raw, "error", err)
			} else {
				v.DesiredTemperature = t
				logging.Info("accepted desired temperature", "temperature", t)
			}
		}
		if raw, ok := patch["humidity"]; ok {
			if hum, err := parseNumber(raw); err != nil {
				logging.Warn("rejected desired humidity", "value", raw, "error", err)
			} else {
				v.DesiredHumidity = hum
				logging.Info("accepted desired humidity", "humidity", hum)
			}
		}
	})

	doc := after.Reported()
	if err := h.reporter.ReportState(ctx, doc); err != nil {
		return fmt.Errorf("report state: %w", err)
	}
	logging.Info("reported twin state",
		"fanstate", doc.FanState,
		"temperature", doc.Temperature,
		"humidity", doc.Humidity,
	)
	return nil
}

func applyFanState(v *Values, raw any) {
	if v.Fan == FanFailed {
		logging.Warn("desired fan state ignored, fan has failed")
		return
	}
	s, ok := raw.(string)
	if !ok {
		logging.Warn("rejected fan state", "value", raw)
		return
	}
	switch strings.ToLower(s) {
	case "on":
		v.Fan = FanOn
		logging.Info("accepted fan state", "fanstate", FanOn)
	case "off":
		v.Fan = FanOff
		logging.Info("accepted fan state", "fanstate", FanOff)
	default:
		logging.Warn("rejected fan state", "value", s)
	}
}

// parseNumber accepts the wire encoding of a setpoint: a string-encoded
// number, or a plain JSON number.
func parseNumber(raw any) (float64, error) {
	switch t := raw.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}
