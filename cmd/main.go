// Package main provides the entry point for the go-lynx bridge daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/resident-x/go-lynx/internal/client"
	"github.com/resident-x/go-lynx/internal/config"
	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/pubsub"
	"github.com/resident-x/go-lynx/internal/registry"
	"github.com/resident-x/go-lynx/internal/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	Version = "unknown" // Default version, can be overridden by build flags
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("go-lynx bridge %s\n", Version)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	initLogger(cfg.LogLevel)

	log.Info().Str("version", Version).Msg("Starting go-lynx bridge")
	cfg.Print()

	reg := registry.NewTLX(cfg.Inverter.PVStrings)

	inverter, err := client.New(client.Config{
		Host:             cfg.Inverter.Host,
		Port:             cfg.Inverter.Port,
		Serial:           cfg.Inverter.Serial,
		MasterSerial:     cfg.Inverter.MasterSerial,
		Timeout:          cfg.Timeout(),
		DiscoveryTimeout: cfg.DiscoveryTimeout(),
	}, reg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize inverter client")
		return 1
	}

	var publisher domain.MessagePublisher
	if cfg.MQTT.Enabled {
		mqttPublisher := pubsub.NewMQTTPublisher(cfg)
		if err := mqttPublisher.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MQTT broker, using noop publisher")
			publisher = pubsub.NewNoopPublisher()
		} else {
			publisher = mqttPublisher
			log.Info().Msg("MQTT publisher connected successfully")
		}
	} else {
		log.Info().Msg("MQTT disabled, using noop publisher")
		publisher = pubsub.NewNoopPublisher()
	}

	bridge, err := service.NewBridgeService(cfg, inverter, publisher, reg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create bridge service")
		return 1
	}

	if err := bridge.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start bridge service")
		return 1
	}

	log.Info().
		Str("host", cfg.Inverter.Host).
		Int("port", cfg.Inverter.Port).
		Msg("Bridge started successfully")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := bridge.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping bridge")
		return 1
	}

	log.Info().Msg("Bridge stopped")
	return 0
}

// initLogger configures the global zerolog logger.
func initLogger(level string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		fmt.Printf("Invalid log level '%s', defaulting to 'info'\n", level)
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)
	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}
