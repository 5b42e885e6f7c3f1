// Package pubsub provides implementations of message publishers.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/resident-x/go-lynx/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Availability payloads published to the status topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// NoopPublisher is a no-operation implementation of the MessagePublisher interface.
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-operation publisher.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Connect is a no-op for the NoopPublisher.
func (p *NoopPublisher) Connect(_ context.Context) error {
	return nil
}

// Publish is a no-op for the NoopPublisher.
func (p *NoopPublisher) Publish(_ context.Context, _ string, _ interface{}) error {
	return nil
}

// Close is a no-op for the NoopPublisher.
func (p *NoopPublisher) Close() error {
	return nil
}

// MQTTPublisher implements the MessagePublisher interface for MQTT.
type MQTTPublisher struct {
	config        *config.Config
	client        mqtt.Client
	connected     bool
	logger        zerolog.Logger
	clientFactory func(*config.Config) mqtt.Client // Factory function for creating MQTT clients (testable)
}

// NewMQTTPublisher creates a new MQTT publisher.
func NewMQTTPublisher(cfg *config.Config) *MQTTPublisher {
	logger := log.With().Str("component", "mqtt").Logger()
	return &MQTTPublisher{
		config:        cfg,
		clientFactory: createMQTTClient,
		logger:        logger,
	}
}

// NewMQTTPublisherWithClient creates a new MQTT publisher with a custom client (for testing).
func NewMQTTPublisherWithClient(cfg *config.Config, client mqtt.Client) *MQTTPublisher {
	logger := log.With().Str("component", "mqtt").Logger()
	return &MQTTPublisher{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// createMQTTClient is the default factory function for creating MQTT clients.
func createMQTTClient(cfg *config.Config) mqtt.Client {
	statusTopic := fmt.Sprintf("%s/status", cfg.MQTT.TopicPrefix)
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)).
		SetClientID(fmt.Sprintf("go-lynx-%s", uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetWriteTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetCleanSession(false).
		// Broker marks the inverter offline if the bridge dies.
		SetWill(statusTopic, PayloadOffline, 0, true)

	// Set credentials if provided
	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}

	return mqtt.NewClient(opts)
}

// Connect establishes a connection to the MQTT broker.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	// If MQTT is disabled, do nothing
	if !p.config.MQTT.Enabled {
		return nil
	}

	// Create client if not already set (for testing)
	if p.client == nil {
		p.client = p.clientFactory(p.config)
	}

	// Connect with context for timeout
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	connToken := p.client.Connect()

	// Wait for connection or context timeout
	select {
	case <-connectCtx.Done():
		return fmt.Errorf("failed to connect to MQTT broker: timeout after 10 seconds")
	case <-connToken.Done():
		if connToken.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", connToken.Error())
		}
	}

	p.connected = true
	p.logger.Info().
		Str("host", p.config.MQTT.Host).
		Int("port", p.config.MQTT.Port).
		Msg("Connected to MQTT broker")
	return nil
}

// Publish sends data to the specified topic. Strings and byte slices go
// out as-is; everything else is marshaled to JSON.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, data interface{}) error {
	if !p.config.MQTT.Enabled || !p.connected {
		return nil
	}

	var payload []byte
	switch v := data.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal data to JSON: %w", err)
		}
		payload = jsonData
	}

	// Publish with context for timeout
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	token := p.client.Publish(topic, 0, p.config.MQTT.Retain, payload)

	// Wait for publication or context timeout
	select {
	case <-publishCtx.Done():
		return fmt.Errorf("publish timeout after 5 seconds")
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to publish message: %w", token.Error())
		}
	}

	return nil
}

// PublishAvailability publishes the online/offline status retained so Home
// Assistant picks the state up on restart.
func (p *MQTTPublisher) PublishAvailability(ctx context.Context, online bool) error {
	payload := PayloadOffline
	if online {
		payload = PayloadOnline
	}
	topic := fmt.Sprintf("%s/status", p.config.MQTT.TopicPrefix)
	return p.Publish(ctx, topic, payload)
}

// Close terminates the connection to the MQTT broker.
func (p *MQTTPublisher) Close() error {
	if p.client != nil && p.connected {
		p.client.Disconnect(250)
		p.connected = false
		p.logger.Info().Msg("Disconnected from MQTT broker")
	}
	return nil
}
