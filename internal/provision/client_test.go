package provision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssigned(t *testing.T) {
	deviceID := uuid.NewString()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/register", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Envirosim-Thing-Key"))
		assert.Equal(t, "thing-1", r.Header.Get("Envirosim-Thing-Id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"assigned","deviceId":"` + deviceID + `","hub":"tcp://hub:1883","token":"tok"}`))
	}))
	defer srv.Close()

	reg, err := NewClient(srv.URL, "secret", "thing-1").Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, deviceID, reg.DeviceID)
	assert.Equal(t, "tcp://hub:1883", reg.Hub)
	assert.Equal(t, "tok", reg.Token)
}

func TestRegisterRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"rejected"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", "thing-1").Register(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistrationRejected)
}

func TestRegisterRejectedByHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "wrong", "thing-1").Register(context.Background())
	assert.ErrorIs(t, err, ErrRegistrationRejected)
}

func TestRegisterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", "thing-1").Register(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRegistrationRejected)
}

func TestRegisterInvalidDeviceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"assigned","deviceId":"not-a-uuid","hub":"tcp://hub:1883","token":"tok"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", "thing-1").Register(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid device id")
}
