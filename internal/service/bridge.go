// Package service implements the bridge daemon: it polls the inverter on a
// tiered cadence and publishes decoded readings over MQTT.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/resident-x/go-lynx/internal/api"
	"github.com/resident-x/go-lynx/internal/config"
	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/homeassistant"
	"github.com/resident-x/go-lynx/internal/pubsub"
	"github.com/resident-x/go-lynx/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// BridgeService polls one inverter and publishes its readings. Offline
// detection and re-discovery are handled here, not in the protocol client:
// the client reports individual timeouts, the bridge decides when enough
// of them mean the inverter is gone.
type BridgeService struct {
	config    *config.Config
	reader    domain.ParameterReader
	publisher domain.MessagePublisher
	registry  *registry.Registry
	store     *domain.ReadingStore
	apiServer *api.Server
	discovery *homeassistant.AutoDiscovery

	done   chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger

	// failedCycles counts consecutive realtime poll cycles in which no
	// parameter produced a value. Guarded by the poll loop's single
	// goroutine ownership.
	failedCycles int
	online       bool
}

// NewBridgeService creates the bridge from its collaborators.
func NewBridgeService(cfg *config.Config, reader domain.ParameterReader,
	publisher domain.MessagePublisher, reg *registry.Registry) (*BridgeService, error) {
	logger := log.With().Str("component", "bridge").Logger()

	store := domain.NewReadingStore()

	svc := &BridgeService{
		config:    cfg,
		reader:    reader,
		publisher: publisher,
		registry:  reg,
		store:     store,
		done:      make(chan struct{}),
		logger:    logger,
	}

	if cfg.MQTT.HomeAssistantAutoDiscovery.Enabled {
		haCfg := homeassistant.Config{
			Enabled:            true,
			DiscoveryPrefix:    cfg.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix,
			DeviceName:         cfg.MQTT.HomeAssistantAutoDiscovery.DeviceName,
			DeviceManufacturer: cfg.MQTT.HomeAssistantAutoDiscovery.DeviceManufacturer,
			DeviceModel:        cfg.MQTT.HomeAssistantAutoDiscovery.DeviceModel,
			RetainDiscovery:    cfg.MQTT.HomeAssistantAutoDiscovery.RetainDiscovery,
		}
		discovery, err := homeassistant.New(haCfg, cfg.MQTT.TopicPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize auto-discovery: %w", err)
		}
		svc.discovery = discovery
	}

	if cfg.API.Enabled {
		svc.apiServer = api.NewServer(cfg, store, reg)
	}

	return svc, nil
}

// Start discovers the inverter, announces it and launches the poll loop.
func (s *BridgeService) Start(ctx context.Context) error {
	device, err := s.discoverDevice(ctx)
	if err != nil {
		return err
	}
	s.store.SetDevice(device)
	s.setOnline(ctx, true)

	if s.discovery != nil {
		s.announceDevice(ctx, device)
	}

	if s.apiServer != nil {
		if err := s.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	s.wg.Add(1)
	go s.pollLoop(ctx)

	s.logger.Info().
		Str("serial", device.Serial).
		Int("realtime_seconds", s.config.Polling.RealtimeSeconds).
		Int("energy_seconds", s.config.Polling.EnergySeconds).
		Msg("Bridge started")
	return nil
}

// Stop shuts the bridge down, publishing a final offline status.
func (s *BridgeService) Stop(ctx context.Context) error {
	close(s.done)
	s.wg.Wait()

	var errs []error
	if err := s.publishAvailability(ctx, false); err != nil {
		errs = append(errs, err)
	}
	if s.apiServer != nil {
		if err := s.apiServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.reader.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info().Msg("Bridge stopped")
	return errors.Join(errs...)
}

// Store exposes the snapshot source, mainly for tests.
func (s *BridgeService) Store() *domain.ReadingStore {
	return s.store
}

// discoverDevice resolves the inverter identity, either from configuration
// or via the discovery handshake.
func (s *BridgeService) discoverDevice(ctx context.Context) (domain.DeviceInfo, error) {
	if serial := s.config.Inverter.Serial; serial != "" {
		s.logger.Info().Str("serial", serial).Msg("Using configured serial number, skipping discovery")
		return domain.DeviceInfo{Serial: serial}, nil
	}
	device, err := s.reader.Discover(ctx)
	if err != nil {
		return domain.DeviceInfo{}, fmt.Errorf("inverter discovery failed: %w", err)
	}
	return device, nil
}

// announceDevice publishes the Home Assistant auto-discovery messages.
func (s *BridgeService) announceDevice(ctx context.Context, device domain.DeviceInfo) {
	announcements := s.discovery.Announcements(s.registry, device)
	for _, a := range announcements {
		if err := s.publisher.Publish(ctx, a.Topic, a.Message); err != nil {
			s.logger.Warn().Err(err).Str("topic", a.Topic).Msg("Failed to publish discovery message")
		}
	}
	s.logger.Info().Int("sensors", len(announcements)).Msg("Published Home Assistant auto-discovery")
}

// pollLoop drives the three poll tiers until Stop is called.
func (s *BridgeService) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	realtime := time.NewTicker(time.Duration(s.config.Polling.RealtimeSeconds) * time.Second)
	energy := time.NewTicker(time.Duration(s.config.Polling.EnergySeconds) * time.Second)
	system := time.NewTicker(time.Duration(s.config.Polling.SystemSeconds) * time.Second)
	defer realtime.Stop()
	defer energy.Stop()
	defer system.Stop()

	// Prime every tier once so consumers see data immediately.
	s.pollRealtime(ctx)
	s.poll(ctx, registry.EnergyNames(s.registry))
	s.poll(ctx, registry.SystemNames(s.registry))

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-realtime.C:
			s.pollRealtime(ctx)
		case <-energy.C:
			s.poll(ctx, registry.EnergyNames(s.registry))
		case <-system.C:
			s.poll(ctx, registry.SystemNames(s.registry))
		}
	}
}

// pollRealtime runs the frequent tier and drives the offline policy from
// its outcome.
func (s *BridgeService) pollRealtime(ctx context.Context) {
	succeeded := s.poll(ctx, registry.RealtimeNames(s.registry))
	if succeeded {
		s.failedCycles = 0
		if !s.online {
			s.logger.Info().Msg("Inverter back online")
			s.setOnline(ctx, true)
		}
		return
	}

	s.failedCycles++
	s.logger.Warn().
		Int("failed_cycles", s.failedCycles).
		Int("threshold", s.config.Polling.OfflineThreshold).
		Msg("Realtime poll produced no data")

	if s.failedCycles >= s.config.Polling.OfflineThreshold && s.online {
		s.logger.Warn().Msg("Offline threshold reached, marking inverter offline")
		s.setOnline(ctx, false)
		// Serial numbers survive power cycles but re-discovery doubles as
		// a cheap reachability probe while the inverter is dark.
		if device, err := s.reader.Discover(ctx); err == nil {
			s.store.SetDevice(device)
			s.failedCycles = 0
			s.setOnline(ctx, true)
		}
	}
}

// poll reads one tier of parameters and publishes the results. It reports
// whether at least one parameter produced a value.
func (s *BridgeService) poll(ctx context.Context, names []string) bool {
	if len(names) == 0 {
		return true
	}
	readings := s.reader.ReadAll(ctx, names)
	s.store.Update(readings)

	anyValue := false
	for _, name := range names {
		reading, ok := readings[name]
		if !ok || reading.Err != nil {
			continue
		}
		anyValue = true
		topic := fmt.Sprintf("%s/%s", s.config.MQTT.TopicPrefix, name)
		if err := s.publisher.Publish(ctx, topic, formatReading(reading)); err != nil {
			s.logger.Warn().Err(err).Str("parameter", name).Msg("Failed to publish reading")
		}
		if name == "operation_mode" {
			text := registry.OperationModeText(int(reading.Value))
			textTopic := fmt.Sprintf("%s/operation_mode_text", s.config.MQTT.TopicPrefix)
			if err := s.publisher.Publish(ctx, textTopic, text); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to publish operation mode text")
			}
		}
	}
	return anyValue
}

// setOnline updates the availability state everywhere it is visible.
func (s *BridgeService) setOnline(ctx context.Context, online bool) {
	s.online = online
	s.store.SetOnline(online)
	if err := s.publishAvailability(ctx, online); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish availability")
	}
}

func (s *BridgeService) publishAvailability(ctx context.Context, online bool) error {
	payload := pubsub.PayloadOffline
	if online {
		payload = pubsub.PayloadOnline
	}
	topic := fmt.Sprintf("%s/status", s.config.MQTT.TopicPrefix)
	return s.publisher.Publish(ctx, topic, payload)
}

// formatReading renders a reading as its MQTT state payload. Scaled values
// are rounded to three decimals, matching the resolution of the scale
// factors in the table.
func formatReading(reading domain.Reading) string {
	if reading.IsText {
		return reading.Text
	}
	value := math.Round(reading.Value*1000) / 1000
	return strconv.FormatFloat(value, 'g', -1, 64)
}
