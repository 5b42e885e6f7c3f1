// Package simulator implements an in-process EtherLynx inverter: a UDP
// responder answering ping, parameter and text requests from a configurable
// parameter table. It backs the inverter-sim command and the end-to-end
// tests.
package simulator

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sync"

	"github.com/resident-x/go-lynx/internal/protocol"
	"github.com/resident-x/go-lynx/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxDatagramSize = 2048

// Config describes the identity the simulator reports during discovery.
type Config struct {
	Serial          string
	HardwareType    byte
	FirmwareVersion string
}

type paramEntry struct {
	dataType protocol.DataType
	raw      [4]byte
	faulted  bool
}

// Simulator is a single simulated inverter bound to one UDP socket.
type Simulator struct {
	config Config
	conn   net.PacketConn
	logger zerolog.Logger

	mu     sync.RWMutex
	params map[protocol.Address]paramEntry
	texts  map[protocol.Address]string
	// drop makes the simulator swallow the next N requests without
	// answering, to provoke client timeouts in tests.
	drop int

	wg sync.WaitGroup
}

// New creates a simulator with an empty parameter table.
func New(cfg Config) *Simulator {
	if cfg.Serial == "" {
		cfg.Serial = "121000G101"
	}
	if cfg.FirmwareVersion == "" {
		cfg.FirmwareVersion = "2.61"
	}
	return &Simulator{
		config: cfg,
		logger: log.With().Str("component", "simulator").Logger(),
		params: make(map[protocol.Address]paramEntry),
		texts:  make(map[protocol.Address]string),
	}
}

// Start binds the UDP socket and launches the serve loop. Use addr
// "127.0.0.1:0" in tests to get an ephemeral port.
func (s *Simulator) Start(addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind simulator socket: %w", err)
	}
	s.conn = conn
	s.wg.Add(1)
	go s.serve()
	s.logger.Info().Str("addr", conn.LocalAddr().String()).Str("serial", s.config.Serial).Msg("Simulator listening")
	return nil
}

// Addr returns the bound socket address. Valid after Start.
func (s *Simulator) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close shuts the socket down and waits for the serve loop to exit.
func (s *Simulator) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}

// SetParameter stores an engineering value for one address, encoded per the
// data type. The value is multiplied back up by scale, the inverse of what
// the client does when decoding.
func (s *Simulator) SetParameter(addr protocol.Address, dt protocol.DataType, value, scale float64) error {
	raw, err := protocol.EncodeValue(dt, math.Round(value*scale))
	if err != nil {
		return err
	}
	entry := paramEntry{dataType: dt}
	copy(entry.raw[:], raw)
	s.mu.Lock()
	s.params[addr] = entry
	s.mu.Unlock()
	return nil
}

// SetFault marks one address as faulted, so reads of it come back with the
// entry error bit set.
func (s *Simulator) SetFault(addr protocol.Address, faulted bool) {
	s.mu.Lock()
	entry := s.params[addr]
	entry.faulted = faulted
	s.params[addr] = entry
	s.mu.Unlock()
}

// SetText stores a text parameter value.
func (s *Simulator) SetText(addr protocol.Address, text string) {
	s.mu.Lock()
	s.texts[addr] = text
	s.mu.Unlock()
}

// DropRequests makes the simulator ignore the next n requests.
func (s *Simulator) DropRequests(n int) {
	s.mu.Lock()
	s.drop = n
	s.mu.Unlock()
}

// Seed loads engineering values for registry parameters, keyed by parameter
// name. Names absent from the registry are an error.
func (s *Simulator) Seed(reg *registry.Registry, values map[string]float64) error {
	for name, value := range values {
		def, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		if err := s.SetParameter(def.Address(), def.DataType, value, def.Scale); err != nil {
			return fmt.Errorf("failed to seed %s: %w", name, err)
		}
	}
	return nil
}

func (s *Simulator) serve() {
	defer s.wg.Done()
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error().Err(err).Msg("Read failed")
			}
			return
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		s.handle(packet, from)
	}
}

func (s *Simulator) handle(packet []byte, from net.Addr) {
	hdr, err := protocol.ParseHeader(packet)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Ignoring malformed datagram")
		return
	}
	if hdr.IsResponse() {
		return
	}
	// Unicast traffic for another serial is not ours to answer. Full
	// broadcasts always are.
	if hdr.Flags&protocol.FlagFullBroadcast == 0 && hdr.DestSerial != s.config.Serial {
		return
	}

	s.mu.Lock()
	if s.drop > 0 {
		s.drop--
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	var response []byte
	switch hdr.MessageID {
	case protocol.MessagePing:
		response = protocol.BuildPingResponse(s.config.Serial, hdr.SourceSerial,
			hdr.Transaction, s.config.HardwareType, s.config.FirmwareVersion)
	case protocol.MessageGetSetParameter:
		response = s.handleParameters(packet, hdr)
	case protocol.MessageGetSetText:
		response = s.handleText(packet, hdr)
	}
	if response == nil {
		return
	}
	if _, err := s.conn.WriteTo(response, from); err != nil {
		s.logger.Error().Err(err).Msg("Write failed")
	}
}

func (s *Simulator) handleParameters(packet []byte, hdr protocol.Header) []byte {
	_, entries, err := protocol.ParseParameterRequest(packet)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Rejecting parameter request")
		return protocol.BuildErrorResponse(s.config.Serial, hdr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]protocol.RawValue, 0, len(entries))
	for _, req := range entries {
		if req.Set {
			entry := paramEntry{dataType: req.Type, raw: req.Raw}
			s.params[req.Address] = entry
			results = append(results, protocol.RawValue{Address: req.Address, Type: req.Type, Raw: req.Raw})
			continue
		}
		entry, ok := s.params[req.Address]
		if !ok || entry.faulted {
			results = append(results, protocol.RawValue{Address: req.Address, Faulted: true})
			continue
		}
		results = append(results, protocol.RawValue{Address: req.Address, Type: entry.dataType, Raw: entry.raw})
	}
	return protocol.BuildParameterResponse(s.config.Serial, hdr.SourceSerial, hdr.Transaction, results)
}

func (s *Simulator) handleText(packet []byte, hdr protocol.Header) []byte {
	_, addr, set, text, err := protocol.ParseTextRequest(packet)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Rejecting text request")
		return protocol.BuildErrorResponse(s.config.Serial, hdr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if set {
		s.texts[addr] = text
		return protocol.BuildTextResponse(s.config.Serial, hdr.SourceSerial, hdr.Transaction, addr, text)
	}
	stored, ok := s.texts[addr]
	if !ok {
		return protocol.BuildErrorResponse(s.config.Serial, hdr)
	}
	return protocol.BuildTextResponse(s.config.Serial, hdr.SourceSerial, hdr.Transaction, addr, stored)
}
