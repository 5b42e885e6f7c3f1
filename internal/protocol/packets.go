package protocol

import (
	"encoding/binary"
	"fmt"
)

// Address identifies one parameter on the wire: the owning hardware module
// and the vendor-assigned index/subindex pair.
type Address struct {
	ModuleID byte
	Index    byte
	Subindex byte
}

// String returns the string representation of the address.
func (a Address) String() string {
	return fmt.Sprintf("module %d index 0x%02x subindex 0x%02x", a.ModuleID, a.Index, a.Subindex)
}

// RawValue is one undecoded parameter entry extracted from a response
// payload. The four value bytes are returned as received; interpreting them
// per data type and scale is the caller's job.
type RawValue struct {
	Address Address
	// Type is the data type declared by the inverter in the response
	// attribute byte. Zero when the inverter did not declare one.
	Type DataType
	Raw  [4]byte
	// Faulted is set when the inverter flagged this single entry as
	// unavailable via the attribute error bit.
	Faulted bool
}

// PingInfo is the decoded result of a ping response: the identity the
// inverter reports during discovery.
type PingInfo struct {
	Serial          string
	HardwareType    byte
	FirmwareVersion string
}

// BuildPing constructs a ping packet. When discovery is set the packet is a
// full broadcast with an empty destination so any listening inverter
// answers with its serial number; otherwise it is addressed to destSerial.
func BuildPing(sourceSerial, destSerial string, transaction byte, discovery bool) []byte {
	flags := byte(FlagSingleBroadcast | FlagResponseNeeded)
	if discovery {
		flags = FlagFullBroadcast | FlagResponseNeeded
		destSerial = ""
	}
	return buildHeader(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        flags,
		Transaction:  transaction,
		MessageID:    MessagePing,
	})
}

// ParsePingResponse validates a ping response and extracts the inverter
// identity. The serial number comes from the header source field; an
// optional payload carries the hardware type code followed by a
// zero-terminated firmware version string. Any length or format mismatch
// yields an error wrapping ErrParse, never a partial result.
func ParsePingResponse(buf []byte) (PingInfo, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return PingInfo{}, err
	}
	if hdr.MessageID != MessagePing {
		return PingInfo{}, fmt.Errorf("%w: expected ping response, got %s", ErrParse, hdr.MessageID)
	}
	if !hdr.IsResponse() {
		return PingInfo{}, fmt.Errorf("%w: response flag not set", ErrParse)
	}
	if hdr.IsError() {
		return PingInfo{}, fmt.Errorf("%w: inverter reported error in ping response", ErrParse)
	}
	payload, err := payloadOf(hdr, buf)
	if err != nil {
		return PingInfo{}, err
	}
	if hdr.SourceSerial == "" {
		return PingInfo{}, fmt.Errorf("%w: empty source serial in ping response", ErrParse)
	}
	info := PingInfo{Serial: hdr.SourceSerial}
	if len(payload) > 0 {
		info.HardwareType = payload[0]
		if len(payload) > 1 {
			info.FirmwareVersion = trimSerial(payload[1:])
		}
	}
	return info, nil
}

// BuildGetParameters constructs a read request for the given addresses in
// order. The payload is a little-endian uint32 entry count followed by one
// eight byte entry per address with a zeroed value field. The codec does
// not bound the address count; keeping batches under the datagram size
// limit is the caller's responsibility.
func BuildGetParameters(sourceSerial, destSerial string, transaction byte, addrs []Address) []byte {
	payload := make([]byte, 4+len(addrs)*paramEntrySize)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(len(addrs)))
	for i, addr := range addrs {
		putParamEntry(payload[4+i*paramEntrySize:], 0, addr, nil)
	}
	return appendPayload(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        FlagSingleBroadcast | FlagResponseNeeded,
		Transaction:  transaction,
		MessageID:    MessageGetSetParameter,
	}, payload)
}

// BuildSetParameter constructs a write request for one address. The raw
// value must already be encoded per the parameter's data type (see
// EncodeValue).
func BuildSetParameter(sourceSerial, destSerial string, transaction byte, addr Address, dt DataType, raw []byte) []byte {
	payload := make([]byte, 4+paramEntrySize)
	binary.LittleEndian.PutUint32(payload[0:4], 1)
	putParamEntry(payload[4:], attrSetBit|byte(dt)<<1, addr, raw)
	return appendPayload(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        FlagSingleBroadcast | FlagResponseNeeded,
		Transaction:  transaction,
		MessageID:    MessageGetSetParameter,
	}, payload)
}

// ParseParameterResponse validates a GetSetParameter response and extracts
// one raw value per requested address, in request order. A response that is
// shorter than its declared payload length, declares a different entry
// count than was requested, or fails any header check yields an error
// wrapping ErrParse. Entries the inverter individually flagged as failed
// come back with Faulted set rather than aborting the batch.
func ParseParameterResponse(buf []byte, requested []Address) ([]RawValue, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if hdr.MessageID != MessageGetSetParameter {
		return nil, fmt.Errorf("%w: expected parameter response, got %s", ErrParse, hdr.MessageID)
	}
	if !hdr.IsResponse() {
		return nil, fmt.Errorf("%w: response flag not set", ErrParse)
	}
	if hdr.IsError() {
		return nil, fmt.Errorf("%w: inverter reported error in parameter response", ErrParse)
	}
	payload, err := payloadOf(hdr, buf)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: payload too short for entry count", ErrParse)
	}
	count := binary.LittleEndian.Uint32(payload[0:4])
	if int(count) != len(requested) {
		return nil, fmt.Errorf("%w: response declares %d entries, requested %d", ErrParse, count, len(requested))
	}
	if want := 4 + int(count)*paramEntrySize; len(payload) != want {
		return nil, fmt.Errorf("%w: payload is %d bytes, want %d for %d entries", ErrParse, len(payload), want, count)
	}

	values := make([]RawValue, 0, len(requested))
	for i := range requested {
		entry := payload[4+i*paramEntrySize:]
		attr := entry[0]
		rv := RawValue{
			Address: Address{
				ModuleID: entry[1] & 0x0F,
				Index:    entry[2],
				Subindex: entry[3],
			},
			Type:    DataType(attr >> 1 & attrTypeMask),
			Faulted: attr&attrErrorBit != 0,
		}
		copy(rv.Raw[:], entry[4:8])
		values = append(values, rv)
	}
	return values, nil
}

// BuildGetText constructs a read request for a text parameter. The payload
// is a single address entry without a value field.
func BuildGetText(sourceSerial, destSerial string, transaction byte, addr Address) []byte {
	payload := make([]byte, 4)
	putAddr(payload, 0, addr)
	return appendPayload(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        FlagSingleBroadcast | FlagResponseNeeded,
		Transaction:  transaction,
		MessageID:    MessageGetSetText,
	}, payload)
}

// BuildSetText constructs a write request for a text parameter: the address
// entry followed by a zero-terminated ASCII blob.
func BuildSetText(sourceSerial, destSerial string, transaction byte, addr Address, text string) []byte {
	payload := make([]byte, 4+len(text)+1)
	putAddr(payload, attrSetBit, addr)
	copy(payload[4:], text)
	return appendPayload(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        FlagSingleBroadcast | FlagResponseNeeded,
		Transaction:  transaction,
		MessageID:    MessageGetSetText,
	}, payload)
}

// ParseTextResponse validates a GetSetText response and returns the text
// blob that follows the echoed address entry.
func ParseTextResponse(buf []byte, addr Address) (string, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return "", err
	}
	if hdr.MessageID != MessageGetSetText {
		return "", fmt.Errorf("%w: expected text response, got %s", ErrParse, hdr.MessageID)
	}
	if !hdr.IsResponse() {
		return "", fmt.Errorf("%w: response flag not set", ErrParse)
	}
	if hdr.IsError() {
		return "", fmt.Errorf("%w: inverter reported error in text response", ErrParse)
	}
	payload, err := payloadOf(hdr, buf)
	if err != nil {
		return "", err
	}
	if len(payload) < 4 {
		return "", fmt.Errorf("%w: payload too short for text address", ErrParse)
	}
	if payload[0]&attrErrorBit != 0 {
		return "", fmt.Errorf("%w: inverter flagged text entry %v as failed", ErrParse, addr)
	}
	got := Address{ModuleID: payload[1] & 0x0F, Index: payload[2], Subindex: payload[3]}
	if got != addr {
		return "", fmt.Errorf("%w: text response for %v, requested %v", ErrParse, got, addr)
	}
	return trimSerial(payload[4:]), nil
}

// payloadOf returns the payload slice after checking that the declared
// payload length agrees with the actual byte count.
func payloadOf(hdr Header, buf []byte) ([]byte, error) {
	if int(hdr.PayloadLen) != len(buf)-HeaderSize {
		return nil, fmt.Errorf("%w: declared payload %d bytes, got %d", ErrParse, hdr.PayloadLen, len(buf)-HeaderSize)
	}
	return buf[HeaderSize:], nil
}

// putAddr writes the four byte address prefix of a payload entry.
func putAddr(dst []byte, attr byte, addr Address) {
	dst[0] = attr
	// Source and destination module nibbles; both sides are the same module
	// for comm board traffic, matching the vendor guide example.
	dst[1] = addr.ModuleID&0x0F<<4 | addr.ModuleID&0x0F
	dst[2] = addr.Index
	dst[3] = addr.Subindex
}

// putParamEntry writes one eight byte parameter entry. A nil raw value
// leaves the value field zeroed, as required for read requests.
func putParamEntry(dst []byte, attr byte, addr Address, raw []byte) {
	putAddr(dst, attr, addr)
	copy(dst[4:8], raw)
}

// appendPayload serializes the header with the payload length filled in and
// appends the payload.
func appendPayload(hdr Header, payload []byte) []byte {
	hdr.PayloadLen = uint32(len(payload))
	return append(buildHeader(hdr), payload...)
}
