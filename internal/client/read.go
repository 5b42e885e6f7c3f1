package client

import (
	"context"
	"fmt"
	"math"

	"github.com/resident-x/go-lynx/internal/domain"
	"github.com/resident-x/go-lynx/internal/protocol"
	"github.com/resident-x/go-lynx/internal/registry"
)

// MaxParamsPerRequest bounds how many parameter addresses go into one
// datagram. Ten keeps the request and response comfortably inside a single
// unfragmented UDP packet.
const MaxParamsPerRequest = 10

// ReadAll reads the named parameters and returns one Reading per requested
// name. Unknown names come back with registry.ErrNotFound without causing
// any wire traffic; resolved names are partitioned into registry-order
// batches of at most MaxParamsPerRequest addresses, one datagram each.
// A batch that times out or fails to parse marks every parameter in it
// with that failure, so a caller can always tell "unavailable this cycle"
// from "unknown name".
func (c *Client) ReadAll(ctx context.Context, names []string) map[string]domain.Reading {
	results := make(map[string]domain.Reading, len(names))

	requested := make(map[string]bool, len(names))
	for _, name := range names {
		requested[name] = true
		if _, err := c.registry.Lookup(name); err != nil {
			results[name] = domain.Reading{Name: name, Err: err}
		}
	}

	// Registry order keeps batch composition deterministic regardless of
	// the order names were requested in.
	var resolved []string
	for _, name := range c.registry.Names() {
		if requested[name] {
			resolved = append(resolved, name)
		}
	}

	if len(resolved) == 0 {
		return results
	}
	if c.serial == "" {
		for _, name := range resolved {
			results[name] = domain.Reading{Name: name, Err: ErrNotDiscovered}
		}
		return results
	}

	for start := 0; start < len(resolved); start += MaxParamsPerRequest {
		end := start + MaxParamsPerRequest
		if end > len(resolved) {
			end = len(resolved)
		}
		c.readBatch(ctx, resolved[start:end], results)
	}
	return results
}

// ReadOne reads a single parameter. It is ReadAll of one name with the
// result unwrapped, so decoding behavior is identical by construction.
func (c *Client) ReadOne(ctx context.Context, name string) (domain.Reading, error) {
	reading := c.ReadAll(ctx, []string{name})[name]
	return reading, reading.Err
}

// WriteOne writes an engineering-unit value to the named parameter. The
// value is scaled back to the raw representation and encoded per the
// parameter's data type.
func (c *Client) WriteOne(ctx context.Context, name string, value float64) error {
	def, err := c.registry.Lookup(name)
	if err != nil {
		return err
	}
	if c.serial == "" {
		return ErrNotDiscovered
	}

	raw, err := protocol.EncodeValue(def.DataType, math.Round(value*def.Scale))
	if err != nil {
		return err
	}
	addr := def.Address()
	tx := c.nextTransaction()
	packet := protocol.BuildSetParameter(c.cfg.MasterSerial, c.serial, tx, addr, def.DataType, raw)

	resp, err := c.exchange(ctx, packet, tx, protocol.MessageGetSetParameter, c.cfg.Timeout)
	if err != nil {
		return err
	}
	values, err := protocol.ParseParameterResponse(resp, []protocol.Address{addr})
	if err != nil {
		return err
	}
	if values[0].Faulted {
		return fmt.Errorf("%w: %s rejected write", ErrUnavailable, name)
	}
	return nil
}

// ReadText reads a text parameter by wire address. Text parameters are not
// part of the named registry; callers supply the address from the vendor
// guide directly.
func (c *Client) ReadText(ctx context.Context, addr protocol.Address) (string, error) {
	if c.serial == "" {
		return "", ErrNotDiscovered
	}
	tx := c.nextTransaction()
	packet := protocol.BuildGetText(c.cfg.MasterSerial, c.serial, tx, addr)
	resp, err := c.exchange(ctx, packet, tx, protocol.MessageGetSetText, c.cfg.Timeout)
	if err != nil {
		return "", err
	}
	return protocol.ParseTextResponse(resp, addr)
}

// WriteText writes a text parameter by wire address.
func (c *Client) WriteText(ctx context.Context, addr protocol.Address, text string) error {
	if c.serial == "" {
		return ErrNotDiscovered
	}
	tx := c.nextTransaction()
	packet := protocol.BuildSetText(c.cfg.MasterSerial, c.serial, tx, addr, text)
	resp, err := c.exchange(ctx, packet, tx, protocol.MessageGetSetText, c.cfg.Timeout)
	if err != nil {
		return err
	}
	_, err = protocol.ParseTextResponse(resp, addr)
	return err
}

// readBatch issues one GetParameters exchange for the given names and
// fills results, attributing a batch-level failure to every name in it.
func (c *Client) readBatch(ctx context.Context, names []string, results map[string]domain.Reading) {
	addrs := make([]protocol.Address, len(names))
	for i, name := range names {
		def, _ := c.registry.Lookup(name)
		addrs[i] = def.Address()
	}

	fail := func(err error) {
		for _, name := range names {
			results[name] = domain.Reading{Name: name, Err: err}
		}
	}

	tx := c.nextTransaction()
	packet := protocol.BuildGetParameters(c.cfg.MasterSerial, c.serial, tx, addrs)
	resp, err := c.exchange(ctx, packet, tx, protocol.MessageGetSetParameter, c.cfg.Timeout)
	if err != nil {
		c.logger.Warn().Err(err).Int("batch_size", len(names)).Msg("Batch read failed")
		fail(err)
		return
	}

	values, err := protocol.ParseParameterResponse(resp, addrs)
	if err != nil {
		c.logger.Warn().Err(err).Int("batch_size", len(names)).Msg("Batch response unparseable")
		fail(err)
		return
	}

	for i, name := range names {
		def, _ := c.registry.Lookup(name)
		results[name] = decode(def, values[i])
	}
}

// decode turns one raw response entry into a Reading using the registry
// definition's data type and scale.
func decode(def registry.ParameterDefinition, rv protocol.RawValue) domain.Reading {
	reading := domain.Reading{
		Name:           def.Name,
		Unit:           def.Unit,
		Classification: def.Classification,
	}
	if rv.Faulted {
		reading.Err = fmt.Errorf("%w: %s (%v)", ErrUnavailable, def.Name, rv.Address)
		return reading
	}

	// The inverter declares the actual data type in the response; prefer
	// it over the table when present.
	dt := def.DataType
	if rv.Type.Valid() {
		dt = rv.Type
	}

	if dt.IsText() {
		reading.Text = protocol.DecodeText(rv.Raw[:])
		reading.IsText = true
		return reading
	}

	value, err := protocol.DecodeValue(dt, rv.Raw[:])
	if err != nil {
		reading.Err = err
		return reading
	}
	reading.Value = value / def.Scale
	return reading
}
