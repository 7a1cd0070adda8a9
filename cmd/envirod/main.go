package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/veksa/envirosim/internal/config"
	"github.com/veksa/envirosim/internal/device"
	"github.com/veksa/envirosim/internal/logging"
)

func main() {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Device config error", "error", err)
	}
	logging.Info("Loaded config",
		"sensorID", cfg.SensorID,
		"telemetryMs", cfg.TelemetryIntervalMs,
		"ambientTemperature", cfg.AmbientTemperature,
		"ambientHumidity", cfg.AmbientHumidity,
	)

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logging.Info("Shutting down", "signal", s.String())
		cancel()
	}()

	if err := device.Run(ctx, cfg); err != nil {
		logging.Fatal("device run failed", "error", err)
	}
	logging.Info("bye")
}
