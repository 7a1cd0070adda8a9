// Package provision is the device side of the registration service: a
// thing authenticates with a shared key and is assigned a hub, a device
// identity, and a credential.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRegistrationRejected means provisioning answered but did not assign
// the device to a hub. It is fatal; no session is opened.
var ErrRegistrationRejected = errors.New("registration rejected")

const (
	headerThingKey = "Envirosim-Thing-Key"
	headerThingID  = "Envirosim-Thing-Id"
)

// Registration is the provisioning result: where to connect and as whom.
type Registration struct {
	Status      string `json:"status"`
	DeviceID    string `json:"deviceId"`
	Hub         string `json:"hub"`
	Token       string `json:"token"`
	Certificate string `json:"cert,omitempty"`
	Key         string `json:"key,omitempty"`
}

type Client struct {
	baseURL  string
	thingKey string
	thingID  string
	httpc    *http.Client
}

func NewClient(baseURL, thingKey, thingID string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		thingKey: thingKey,
		thingID:  thingID,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Register authenticates as a thing and asks for a hub assignment. Any
// outcome other than an assignment with a usable identity is an error.
func (c *Client) Register(ctx context.Context) (*Registration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerThingKey, c.thingKey)
	req.Header.Set(headerThingID, c.thingID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrRegistrationRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("register: unexpected HTTP %d", resp.StatusCode)
	}

	var reg Registration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("register: decode response: %w", err)
	}
	if reg.Status != "assigned" {
		return nil, fmt.Errorf("%w: status %q", ErrRegistrationRejected, reg.Status)
	}
	if _, err := uuid.Parse(reg.DeviceID); err != nil {
		return nil, fmt.Errorf("register: invalid device id %q: %w", reg.DeviceID, err)
	}
	if reg.Hub == "" {
		return nil, fmt.Errorf("register: assignment is missing the hub address")
	}
	return &reg, nil
}
