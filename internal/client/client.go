// Package client provides the EtherLynx transport client and read/write
// orchestration against a single inverter. One Client owns one UDP socket
// and tracks one in-flight exchange at a time; it is not safe for
// concurrent use without external serialization. Use one Client per
// inverter for concurrent polling of multiple devices.
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/protocol"
	"github.com/resident-x/go-lynx/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default exchange bounds, matching the vendor-recommended response times.
const (
	DefaultTimeout          = 3 * time.Second
	DefaultDiscoveryTimeout = 5 * time.Second

	// maxDatagramSize bounds received datagrams. The largest defined
	// response (a full parameter batch) is well under this.
	maxDatagramSize = 2048
)

// packetConn is the subset of net.Conn the client needs, extracted so
// tests can substitute an in-memory fake for the UDP socket.
type packetConn interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Config holds the per-inverter connection settings.
type Config struct {
	// Host is the inverter's IP address or hostname.
	Host string
	// Port defaults to the fixed EtherLynx port 48004.
	Port int
	// Serial optionally pre-sets the inverter serial number, skipping
	// discovery.
	Serial string
	// MasterSerial identifies this side in packet headers. Defaults to
	// protocol.MasterSerial.
	MasterSerial string
	// Timeout bounds the wait for a parameter or text response.
	Timeout time.Duration
	// DiscoveryTimeout bounds the wait for a ping response.
	DiscoveryTimeout time.Duration
}

// Client exchanges EtherLynx packets with one inverter and decodes
// parameter values using the registry.
type Client struct {
	registry *registry.Registry
	conn     packetConn
	cfg      Config

	serial              string
	transaction         uint8
	consecutiveFailures int
	logger              zerolog.Logger
}

// New creates a client with a UDP socket connected to the inverter's
// address. Connecting the socket lets the kernel filter datagrams from
// other peers.
func New(cfg Config, reg *registry.Registry) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("inverter host cannot be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = protocol.Port
	}
	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return NewWithConn(cfg, reg, conn), nil
}

// NewWithConn creates a client on an existing connection. Exposed for
// tests that substitute a fake socket.
func NewWithConn(cfg Config, reg *registry.Registry, conn packetConn) *Client {
	if cfg.MasterSerial == "" {
		cfg.MasterSerial = protocol.MasterSerial
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	logger := log.With().Str("component", "client").Str("inverter", cfg.Host).Logger()
	return &Client{
		registry: reg,
		conn:     conn,
		cfg:      cfg,
		serial:   cfg.Serial,
		logger:   logger,
	}
}

// Serial returns the inverter serial number, empty until discovered or
// configured.
func (c *Client) Serial() string {
	return c.serial
}

// ConsecutiveFailures returns the number of exchanges that timed out since
// the last successful one. Offline policy built on it belongs to the
// caller.
func (c *Client) ConsecutiveFailures() int {
	return c.consecutiveFailures
}

// Close releases the socket. Safe to call while no exchange is active; an
// active wait fails with a transport error.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Discover sends a broadcast ping and stores the serial number from the
// first valid answer. It must succeed before any parameter read or write
// when no serial number was configured.
func (c *Client) Discover(ctx context.Context) (domain.DeviceInfo, error) {
	tx := c.nextTransaction()
	packet := protocol.BuildPing(c.cfg.MasterSerial, c.serial, tx, c.serial == "")

	resp, err := c.exchange(ctx, packet, tx, protocol.MessagePing, c.cfg.DiscoveryTimeout)
	if err != nil {
		return domain.DeviceInfo{}, err
	}
	info, err := protocol.ParsePingResponse(resp)
	if err != nil {
		return domain.DeviceInfo{}, err
	}
	c.serial = info.Serial
	c.logger.Info().
		Str("serial", info.Serial).
		Uint8("hardware_type", info.HardwareType).
		Str("firmware", info.FirmwareVersion).
		Msg("Inverter discovered")
	return domain.DeviceInfo{
		Serial:          info.Serial,
		HardwareType:    info.HardwareType,
		FirmwareVersion: info.FirmwareVersion,
	}, nil
}

// nextTransaction increments the correlation counter, wrapping at the
// byte maximum.
func (c *Client) nextTransaction() uint8 {
	c.transaction++
	return c.transaction
}

// exchange transmits one packet and waits for the correlated response.
// Datagrams that do not match the transaction number and message type are
// discarded while the deadline allows. A timeout increments the
// consecutive failure count exactly once; a matching response resets it.
// The client never retries internally; retry policy belongs to the caller.
func (c *Client) exchange(ctx context.Context, packet []byte, transaction byte, id protocol.MessageID, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if _, err := c.conn.Write(packet); err != nil {
		c.consecutiveFailures++
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	c.logger.Debug().
		Int("bytes", len(packet)).
		Uint8("transaction", transaction).
		Str("message", id.String()).
		Msg("Packet sent")

	buf := make([]byte, maxDatagramSize)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			c.consecutiveFailures++
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			c.consecutiveFailures++
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, fmt.Errorf("%w: no response within %s", ErrTimeout, timeout)
			}
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}

		resp := make([]byte, n)
		copy(resp, buf[:n])
		hdr, err := protocol.ParseHeader(resp)
		if err != nil || !hdr.Matches(transaction, id) {
			// Stale or unrelated datagram; keep waiting for ours.
			c.logger.Debug().Int("bytes", n).Msg("Discarding uncorrelated datagram")
			continue
		}

		c.consecutiveFailures = 0
		c.logger.Debug().Int("bytes", n).Msg("Response received")
		return resp, nil
	}
}
