// monitor subscribes to the whole envirosim namespace and prints one line
// per message, with telemetry property bags decoded into readable
// attribute pairs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// formatTelemetry rewrites the property-bag segment of a telemetry topic
// into attribute pairs appended after the payload.
func formatTelemetry(topic string, payload []byte) string {
	idx := strings.LastIndex(topic, "/")
	attrs, err := url.ParseQuery(topic[idx+1:])
	if err != nil {
		return fmt.Sprintf("%s %s (property bag error: %v)", topic, payload, err)
	}
	pairs := make([]string, 0, len(attrs))
	for k := range attrs {
		pairs = append(pairs, k+"="+attrs.Get(k))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("%s %s [%s]", topic[:idx], payload, strings.Join(pairs, " "))
}

func main() {
	var broker, topic string
	flag.StringVar(&broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&topic, "topic", "envirosim/#", "MQTT topic filter")
	flag.Parse()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("envirosim-monitor-%d", time.Now().UnixNano()))
	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		if strings.Contains(msg.Topic(), "/telemetry/") {
			fmt.Println(formatTelemetry(msg.Topic(), msg.Payload()))
			return
		}
		fmt.Printf("%s %s\n", msg.Topic(), msg.Payload())
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}
	fmt.Printf("Connected to MQTT broker %s, subscribing to %s...\n", broker, topic)

	if token := client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
		log.Fatal(token.Error())
	}

	// Wait for interrupt
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()
	<-ctx.Done()
	client.Disconnect(200)
}
