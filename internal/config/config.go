// Package config provides configuration management for the go-lynx application.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// General settings
	LogLevel string `mapstructure:"log_level"`

	// Inverter connection settings
	Inverter struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
		// Serial skips discovery when set.
		Serial                  string `mapstructure:"serial"`
		MasterSerial            string `mapstructure:"master_serial"`
		TimeoutSeconds          int    `mapstructure:"timeout_seconds"`
		DiscoveryTimeoutSeconds int    `mapstructure:"discovery_timeout_seconds"`
		// PVStrings selects the two or three string hardware variant;
		// string-3 parameters are only polled on three string models.
		PVStrings int `mapstructure:"pv_strings"`
	} `mapstructure:"inverter"`

	// Polling cadence and offline policy
	Polling struct {
		RealtimeSeconds int `mapstructure:"realtime_seconds"`
		EnergySeconds   int `mapstructure:"energy_seconds"`
		SystemSeconds   int `mapstructure:"system_seconds"`
		// OfflineThreshold is the number of consecutive failed poll
		// cycles after which the inverter is published as offline.
		OfflineThreshold int `mapstructure:"offline_threshold"`
	} `mapstructure:"polling"`

	// HTTP API settings
	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"api"`

	// MQTT settings
	MQTT struct {
		Enabled     bool   `mapstructure:"enabled"`
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		TopicPrefix string `mapstructure:"topic_prefix"`
		Retain      bool   `mapstructure:"retain"`

		// Home Assistant Auto-Discovery settings
		HomeAssistantAutoDiscovery struct {
			Enabled            bool   `mapstructure:"enabled"`
			DiscoveryPrefix    string `mapstructure:"discovery_prefix"`
			DeviceName         string `mapstructure:"device_name"`
			DeviceManufacturer string `mapstructure:"device_manufacturer"`
			DeviceModel        string `mapstructure:"device_model"`
			RetainDiscovery    bool   `mapstructure:"retain_discovery"`
		} `mapstructure:"homeassistant_autodiscovery"`
	} `mapstructure:"mqtt"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
	}

	// Default inverter settings
	cfg.Inverter.Port = 48004
	cfg.Inverter.TimeoutSeconds = 3
	cfg.Inverter.DiscoveryTimeoutSeconds = 5
	cfg.Inverter.PVStrings = 2

	// Default polling settings
	cfg.Polling.RealtimeSeconds = 15
	cfg.Polling.EnergySeconds = 300
	cfg.Polling.SystemSeconds = 3600
	cfg.Polling.OfflineThreshold = 10

	// Default API settings
	cfg.API.Enabled = true
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080

	// Default MQTT settings
	cfg.MQTT.Enabled = true
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	cfg.MQTT.TopicPrefix = "danfoss_tlx"
	cfg.MQTT.Retain = true

	// Default Home Assistant Auto-Discovery settings
	cfg.MQTT.HomeAssistantAutoDiscovery.Enabled = true
	cfg.MQTT.HomeAssistantAutoDiscovery.DiscoveryPrefix = "homeassistant"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceName = "Danfoss TLX Pro"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceManufacturer = "Danfoss Solar Inverters"
	cfg.MQTT.HomeAssistantAutoDiscovery.DeviceModel = "TLX Pro"
	cfg.MQTT.HomeAssistantAutoDiscovery.RetainDiscovery = true

	return cfg
}

// Timeout returns the response wait bound as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Inverter.TimeoutSeconds) * time.Second
}

// DiscoveryTimeout returns the discovery wait bound as a duration.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.Inverter.DiscoveryTimeoutSeconds) * time.Second
}

// Load reads the configuration from a file and environment variables.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Set up Viper
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Override with specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Println("No configuration file found, using defaults")
		} else {
			// Other errors (like invalid YAML) should be returned
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Bind environment variables
	v.SetEnvPrefix("LYNX")
	v.AutomaticEnv()

	// Unmarshal config
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings the rest of the application depends on.
func (c *Config) Validate() error {
	if c.Inverter.Host == "" {
		return fmt.Errorf("inverter.host must be set")
	}
	if c.Inverter.PVStrings < 1 || c.Inverter.PVStrings > 3 {
		return fmt.Errorf("inverter.pv_strings must be 1, 2 or 3, got %d", c.Inverter.PVStrings)
	}
	if c.Polling.OfflineThreshold < 1 {
		return fmt.Errorf("polling.offline_threshold must be positive, got %d", c.Polling.OfflineThreshold)
	}
	return nil
}

// Print displays the current configuration.
func (c *Config) Print() {
	logger := log.With().Str("component", "config").Logger()
	logger.Info().Msg("go-lynx Bridge Configuration:")
	logger.Info().Msg("-----------------------------")
	logger.Info().Str("log_level", c.LogLevel).Msg("Log Level")

	logger.Info().
		Str("host", c.Inverter.Host).
		Int("port", c.Inverter.Port).
		Str("serial", c.Inverter.Serial).
		Int("pv_strings", c.Inverter.PVStrings).
		Int("timeout_seconds", c.Inverter.TimeoutSeconds).
		Msg("Inverter")

	logger.Info().
		Int("realtime_seconds", c.Polling.RealtimeSeconds).
		Int("energy_seconds", c.Polling.EnergySeconds).
		Int("system_seconds", c.Polling.SystemSeconds).
		Int("offline_threshold", c.Polling.OfflineThreshold).
		Msg("Polling")

	logger.Info().Bool("enabled", c.API.Enabled).Msg("API Enabled")
	if c.API.Enabled {
		logger.Info().
			Str("host", c.API.Host).
			Int("port", c.API.Port).
			Msg("API Server")
	}

	logger.Info().Bool("enabled", c.MQTT.Enabled).Msg("MQTT Enabled")
	if c.MQTT.Enabled {
		logger.Info().
			Str("host", c.MQTT.Host).
			Int("port", c.MQTT.Port).
			Str("topic_prefix", c.MQTT.TopicPrefix).
			Bool("homeassistant_autodiscovery_enabled", c.MQTT.HomeAssistantAutoDiscovery.Enabled).
			Msg("MQTT Configuration")
	}
}
