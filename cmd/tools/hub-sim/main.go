// hub-sim is a local development hub: an embedded MQTT broker that speaks
// the device twin protocol against an in-memory store, plus an HTTP API for
// provisioning and pushing desired state.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DrmagicE/gmqtt"
	"github.com/gorilla/mux"

	"github.com/veksa/envirosim/internal/logging"
)

func main() {
	mqttAddr := flag.String("mqtt-addr", ":1883", "MQTT listen address")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API listen address")
	hubURL := flag.String("hub-url", "tcp://localhost:1883", "hub address advertised to registered devices")
	thingKey := flag.String("thing-key", "local-dev-key", "shared secret for thing registration")
	flag.Parse()

	logging.Init()

	store := newHubStore()

	ln, err := net.Listen("tcp", *mqttAddr)
	if err != nil {
		logging.Fatal("mqtt listen", "addr", *mqttAddr, "error", err)
	}

	plugin := &hubPlugin{store: store}
	broker := gmqtt.NewServer(
		gmqtt.WithTCPListener(ln),
		gmqtt.WithPlugin(plugin),
	)
	broker.Run()
	logging.Info("hub-sim broker listening", "addr", *mqttAddr)

	router := mux.NewRouter()
	api := &restAPI{store: store, publisher: plugin, thingKey: *thingKey, hubURL: *hubURL}
	api.handleRoutes(router)

	httpSrv := &http.Server{Addr: *httpAddr, Handler: router}
	go func() {
		logging.Info("hub-sim HTTP API listening", "addr", *httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("http listen", "error", err)
		}
	}()

	// Wait for SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	logging.Info("Shutting down", "signal", s.String())

	httpSrv.Shutdown(context.Background())
	broker.Stop(context.Background())
	logging.Info("bye")
}
