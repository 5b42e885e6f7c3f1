// Package homeassistant provides MQTT auto-discovery support for Home Assistant integration.
package homeassistant

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/registry"
	"gopkg.in/yaml.v3"
)

//go:embed layouts/sensor_overrides.yaml
var sensorOverridesYAML []byte

// Config holds the Home Assistant auto-discovery configuration.
type Config struct {
	Enabled            bool
	DiscoveryPrefix    string
	DeviceName         string
	DeviceManufacturer string
	DeviceModel        string
	RetainDiscovery    bool
}

// SensorOverride adjusts how one sensor is presented, layered over the
// metadata the parameter registry already carries.
type SensorOverride struct {
	Name string `yaml:"name,omitempty"`
	Icon string `yaml:"icon,omitempty"`
}

// overrideLayout is the embedded YAML document shape.
type overrideLayout struct {
	Version     string                    `yaml:"version"`
	Description string                    `yaml:"description"`
	Sensors     map[string]SensorOverride `yaml:"sensors"`
}

// DiscoveryMessage represents a Home Assistant MQTT discovery message.
type DiscoveryMessage struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	StateTopic          string     `json:"state_topic"`
	DeviceClass         string     `json:"device_class,omitempty"`
	UnitOfMeasurement   string     `json:"unit_of_measurement,omitempty"`
	StateClass          string     `json:"state_class,omitempty"`
	Icon                string     `json:"icon,omitempty"`
	Device              DeviceInfo `json:"device"`
	AvailabilityTopic   string     `json:"availability_topic,omitempty"`
	PayloadAvailable    string     `json:"payload_available,omitempty"`
	PayloadNotAvailable string     `json:"payload_not_available,omitempty"`
}

// DeviceInfo represents device information for Home Assistant.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	SwVersion    string   `json:"sw_version,omitempty"`
}

// Announcement pairs a discovery topic with its message.
type Announcement struct {
	Topic   string
	Message DiscoveryMessage
}

// AutoDiscovery builds Home Assistant MQTT auto-discovery announcements
// from parameter registry metadata.
type AutoDiscovery struct {
	config    Config
	overrides map[string]SensorOverride
	baseTopic string
}

// New creates a new Home Assistant auto-discovery instance. baseTopic is
// the MQTT prefix state values are published under.
func New(config Config, baseTopic string) (*AutoDiscovery, error) {
	var layout overrideLayout
	if err := yaml.Unmarshal(sensorOverridesYAML, &layout); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sensor overrides: %w", err)
	}
	return &AutoDiscovery{
		config:    config,
		overrides: layout.Sensors,
		baseTopic: baseTopic,
	}, nil
}

// Announcements builds one discovery message per registered parameter plus
// the synthesized operation mode text sensor, for the given discovered
// device.
func (ad *AutoDiscovery) Announcements(reg *registry.Registry, dev domain.DeviceInfo) []Announcement {
	device := DeviceInfo{
		Identifiers:  []string{ad.deviceID(dev.Serial)},
		Name:         fmt.Sprintf("%s (%s)", ad.config.DeviceName, dev.Serial),
		Manufacturer: ad.config.DeviceManufacturer,
		Model:        ad.config.DeviceModel,
		SerialNumber: dev.Serial,
		SwVersion:    dev.FirmwareVersion,
	}

	defs := reg.All()
	announcements := make([]Announcement, 0, len(defs)+1)
	for _, def := range defs {
		msg := DiscoveryMessage{
			Name:                ad.displayName(def.Name),
			UniqueID:            fmt.Sprintf("%s_%s", ad.deviceID(dev.Serial), def.Name),
			StateTopic:          fmt.Sprintf("%s/%s", ad.baseTopic, def.Name),
			DeviceClass:         def.Classification,
			UnitOfMeasurement:   def.Unit,
			StateClass:          def.StateClass,
			Icon:                ad.icon(def.Name),
			Device:              device,
			AvailabilityTopic:   fmt.Sprintf("%s/status", ad.baseTopic),
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
		}
		announcements = append(announcements, Announcement{
			Topic:   ad.discoveryTopic(dev.Serial, def.Name),
			Message: msg,
		})
	}

	// Operation mode as readable text, derived by the bridge from the
	// numeric operation_mode parameter.
	announcements = append(announcements, Announcement{
		Topic: ad.discoveryTopic(dev.Serial, "operation_mode_text"),
		Message: DiscoveryMessage{
			Name:                ad.displayName("operation_mode_text"),
			UniqueID:            fmt.Sprintf("%s_operation_mode_text", ad.deviceID(dev.Serial)),
			StateTopic:          fmt.Sprintf("%s/operation_mode_text", ad.baseTopic),
			Icon:                ad.icon("operation_mode_text"),
			Device:              device,
			AvailabilityTopic:   fmt.Sprintf("%s/status", ad.baseTopic),
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
		},
	})

	return announcements
}

// Retain reports whether discovery messages should be published retained.
func (ad *AutoDiscovery) Retain() bool {
	return ad.config.RetainDiscovery
}

func (ad *AutoDiscovery) deviceID(serial string) string {
	return fmt.Sprintf("danfoss_tlx_%s", strings.ToLower(serial))
}

func (ad *AutoDiscovery) discoveryTopic(serial, name string) string {
	return fmt.Sprintf("%s/sensor/%s_%s/config", ad.config.DiscoveryPrefix, ad.deviceID(serial), name)
}

// displayName prefers the override, falling back to a title-cased form of
// the parameter key.
func (ad *AutoDiscovery) displayName(name string) string {
	if o, ok := ad.overrides[name]; ok && o.Name != "" {
		return o.Name
	}
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (ad *AutoDiscovery) icon(name string) string {
	return ad.overrides[name].Icon
}
