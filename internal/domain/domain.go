// Package domain provides core domain models and interfaces for the go-lynx application
package domain

import (
	"context"
	"time"
)

// DeviceInfo is the identity an inverter reports during discovery.
type DeviceInfo struct {
	Serial          string `json:"serial"`
	HardwareType    byte   `json:"hardware_type"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// Reading is one decoded parameter value, or the reason it is unavailable.
// Exactly one of Value/Text is meaningful; Err non-nil means neither is.
type Reading struct {
	Name           string
	Value          float64
	Text           string
	IsText         bool
	Unit           string
	Classification string
	Err            error
}

// ParameterReader is the collaborator-facing interface of the protocol
// core, consumed by the bridge daemon and the CLI tools.
type ParameterReader interface {
	// Discover performs the serial-number handshake with the inverter.
	// It must succeed before any read or write unless a serial number was
	// configured up front.
	Discover(ctx context.Context) (DeviceInfo, error)

	// ReadAll reads the named parameters and returns one entry per name.
	// Per-name failures are carried in the mapping; the call itself does
	// not fail.
	ReadAll(ctx context.Context, names []string) map[string]Reading

	// ReadOne reads a single parameter.
	ReadOne(ctx context.Context, name string) (Reading, error)

	// WriteOne writes an engineering-unit value to a writable parameter.
	WriteOne(ctx context.Context, name string, value float64) error

	// Close releases the underlying socket.
	Close() error
}

// MessagePublisher defines the interface for publishing readings.
type MessagePublisher interface {
	// Connect establishes a connection to the messaging system
	Connect(ctx context.Context) error

	// Publish sends data to the specified topic
	Publish(ctx context.Context, topic string, data interface{}) error

	// Close terminates the connection to the messaging system
	Close() error
}

// SnapshotSource exposes the latest poll results to read-only consumers
// such as the HTTP API.
type SnapshotSource interface {
	// Snapshot returns the most recent reading per parameter name.
	Snapshot() map[string]Reading

	// Device returns the discovered inverter identity, if any.
	Device() (DeviceInfo, bool)

	// Online reports whether the inverter responded recently.
	Online() bool

	// LastContact returns the time of the last successful exchange.
	LastContact() time.Time
}
