// Package main provides lynx-query, a one-shot CLI for reading an EtherLynx
// inverter without running the bridge daemon. Results go to stdout as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/resident-x/go-lynx/internal/client"
	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/protocol"
	"github.com/resident-x/go-lynx/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type output struct {
	Device   domain.DeviceInfo      `json:"device"`
	Readings map[string]readingJSON `json:"readings,omitempty"`
}

type readingJSON struct {
	Value *float64 `json:"value,omitempty"`
	Text  string   `json:"text,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Error string   `json:"error,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	host := flag.String("host", "", "Inverter host or IP (required)")
	port := flag.Int("port", protocol.Port, "Inverter UDP port")
	mode := flag.String("mode", "realtime", "What to read: discover, realtime, energy, system or all")
	pvStrings := flag.Int("pv-strings", 2, "Number of connected PV strings (1-3)")
	timeout := flag.Duration("timeout", 3*time.Second, "Per-request timeout")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *host == "" {
		fmt.Fprintln(os.Stderr, "missing required -host flag")
		flag.Usage()
		return 2
	}

	reg := registry.NewTLX(*pvStrings)
	inverter, err := client.New(client.Config{
		Host:    *host,
		Port:    *port,
		Timeout: *timeout,
	}, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize client: %v\n", err)
		return 1
	}
	defer inverter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	device, err := inverter.Discover(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		return 1
	}

	result := output{Device: device}
	if *mode != "discover" {
		names, err := namesForMode(reg, *mode)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		result.Readings = toJSON(inverter.ReadAll(ctx, names))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		return 1
	}
	return 0
}

func namesForMode(reg *registry.Registry, mode string) ([]string, error) {
	switch mode {
	case "realtime":
		return registry.RealtimeNames(reg), nil
	case "energy":
		return registry.EnergyNames(reg), nil
	case "system":
		return registry.SystemNames(reg), nil
	case "all":
		return reg.Names(), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func toJSON(readings map[string]domain.Reading) map[string]readingJSON {
	out := make(map[string]readingJSON, len(readings))
	for name, r := range readings {
		entry := readingJSON{Unit: r.Unit}
		switch {
		case r.Err != nil:
			entry.Error = r.Err.Error()
		case r.IsText:
			entry.Text = r.Text
		default:
			v := r.Value
			entry.Value = &v
		}
		out[name] = entry
	}
	return out
}
