// envirctl is the operator CLI: it builds a desired-state patch and pushes
// it to a device through the hub's twin endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  envirctl set --device DEVICE [--fanstate on|off] [--temperature T] [--humidity H]

Required flags for 'set':
  --device      (string)  Device ID (required)
At least one of:
  --fanstate    (string)  Desired fan state: on or off
  --temperature (float)   Desired temperature setpoint
  --humidity    (float)   Desired humidity setpoint

Optional flags:
  --hub         (string)  Hub HTTP API address (default: http://localhost:8080)

`)
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Missing command (e.g. set)\n")
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]

	// Only support "set" for now
	if cmd != "set" {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}

	setFlags := flag.NewFlagSet("set", flag.ExitOnError)
	device := setFlags.String("device", "", "Device ID (required)")
	fanstate := setFlags.String("fanstate", "", "Desired fan state: on or off")
	temperature := setFlags.String("temperature", "", "Desired temperature setpoint")
	humidity := setFlags.String("humidity", "", "Desired humidity setpoint")
	hub := setFlags.String("hub", "http://localhost:8080", "Hub HTTP API address")

	setFlags.Usage = usage

	if err := setFlags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	if *device == "" {
		fmt.Fprintf(os.Stderr, "--device is required\n")
		usage()
		os.Exit(2)
	}

	// Setpoints travel string-encoded on the wire; validate locally so a
	// typo fails here and not as a dropped field on the device.
	patch := map[string]string{}
	if *fanstate != "" {
		state := strings.ToLower(*fanstate)
		if state != "on" && state != "off" {
			fmt.Fprintf(os.Stderr, "--fanstate must be 'on' or 'off'\n")
			os.Exit(2)
		}
		patch["fanstate"] = state
	}
	if *temperature != "" {
		if _, err := strconv.ParseFloat(*temperature, 64); err != nil {
			fmt.Fprintf(os.Stderr, "--temperature is not a number: %v\n", err)
			os.Exit(2)
		}
		patch["temperature"] = *temperature
	}
	if *humidity != "" {
		if _, err := strconv.ParseFloat(*humidity, 64); err != nil {
			fmt.Fprintf(os.Stderr, "--humidity is not a number: %v\n", err)
			os.Exit(2)
		}
		patch["humidity"] = *humidity
	}
	if len(patch) == 0 {
		fmt.Fprintf(os.Stderr, "nothing to set, provide --fanstate, --temperature or --humidity\n")
		usage()
		os.Exit(2)
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON marshal error: %v\n", err)
		os.Exit(1)
	}

	endpoint := fmt.Sprintf("%s/devices/%s/twin/climate/request", strings.TrimRight(*hub, "/"), *device)
	req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "request error: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hub request error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		fmt.Fprintf(os.Stderr, "hub rejected the patch: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Printf("Desired state pushed to device %s: %s\n", *device, payload)
}
