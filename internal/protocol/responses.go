package protocol

import (
	"encoding/binary"
	"fmt"
)

// This file holds the inverter side of the codec: parsing incoming requests
// and building the responses an inverter would send. The bridge itself never
// uses it; it exists for the simulator and for exercising both directions of
// the wire format in tests.

// RequestEntry is one parsed entry of a GetSetParameter request.
type RequestEntry struct {
	Address Address
	// Set is true for write requests; Raw then holds the encoded value.
	Set  bool
	Type DataType
	Raw  [4]byte
}

// ParseParameterRequest decodes a GetSetParameter request into its entries.
func ParseParameterRequest(buf []byte) (Header, []RequestEntry, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}
	if hdr.MessageID != MessageGetSetParameter {
		return Header{}, nil, fmt.Errorf("%w: expected parameter request, got %s", ErrParse, hdr.MessageID)
	}
	payload, err := payloadOf(hdr, buf)
	if err != nil {
		return Header{}, nil, err
	}
	if len(payload) < 4 {
		return Header{}, nil, fmt.Errorf("%w: payload too short for entry count", ErrParse)
	}
	count := int(binary.LittleEndian.Uint32(payload[0:4]))
	if want := 4 + count*paramEntrySize; len(payload) != want {
		return Header{}, nil, fmt.Errorf("%w: payload is %d bytes, want %d for %d entries", ErrParse, len(payload), want, count)
	}

	entries := make([]RequestEntry, 0, count)
	for i := 0; i < count; i++ {
		raw := payload[4+i*paramEntrySize:]
		attr := raw[0]
		entry := RequestEntry{
			Address: Address{ModuleID: raw[1] & 0x0F, Index: raw[2], Subindex: raw[3]},
			Set:     attr&attrSetBit != 0,
			Type:    DataType(attr >> 1 & attrTypeMask),
		}
		copy(entry.Raw[:], raw[4:8])
		entries = append(entries, entry)
	}
	return hdr, entries, nil
}

// ParseTextRequest decodes a GetSetText request: the target address and, for
// writes, the zero-terminated text that follows it.
func ParseTextRequest(buf []byte) (Header, Address, bool, string, error) {
	hdr, err := ParseHeader(buf)
	if err != nil {
		return Header{}, Address{}, false, "", err
	}
	if hdr.MessageID != MessageGetSetText {
		return Header{}, Address{}, false, "", fmt.Errorf("%w: expected text request, got %s", ErrParse, hdr.MessageID)
	}
	payload, err := payloadOf(hdr, buf)
	if err != nil {
		return Header{}, Address{}, false, "", err
	}
	if len(payload) < 4 {
		return Header{}, Address{}, false, "", fmt.Errorf("%w: payload too short for text address", ErrParse)
	}
	addr := Address{ModuleID: payload[1] & 0x0F, Index: payload[2], Subindex: payload[3]}
	set := payload[0]&attrSetBit != 0
	return hdr, addr, set, trimSerial(payload[4:]), nil
}

// BuildPingResponse constructs the reply to a ping: the responding serial in
// the source field, hardware type code and zero-terminated firmware version
// in the payload.
func BuildPingResponse(sourceSerial, destSerial string, transaction byte, hardwareType byte, firmware string) []byte {
	payload := make([]byte, 1+len(firmware)+1)
	payload[0] = hardwareType
	copy(payload[1:], firmware)
	return appendPayload(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        FlagResponse | FlagSingleBroadcast,
		Transaction:  transaction,
		MessageID:    MessagePing,
	}, payload)
}

// BuildParameterResponse constructs the reply to a GetSetParameter request,
// echoing the entries in request order. Faulted entries get the attribute
// error bit and keep a zeroed value field.
func BuildParameterResponse(sourceSerial, destSerial string, transaction byte, entries []RawValue) []byte {
	payload := make([]byte, 4+len(entries)*paramEntrySize)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(len(entries)))
	for i, entry := range entries {
		attr := byte(entry.Type) << 1
		raw := entry.Raw[:]
		if entry.Faulted {
			attr |= attrErrorBit
			raw = nil
		}
		putParamEntry(payload[4+i*paramEntrySize:], attr, entry.Address, raw)
	}
	return appendPayload(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        FlagResponse | FlagSingleBroadcast,
		Transaction:  transaction,
		MessageID:    MessageGetSetParameter,
	}, payload)
}

// BuildTextResponse constructs the reply to a GetSetText request: the echoed
// address entry followed by the zero-terminated text.
func BuildTextResponse(sourceSerial, destSerial string, transaction byte, addr Address, text string) []byte {
	payload := make([]byte, 4+len(text)+1)
	putAddr(payload, 0, addr)
	copy(payload[4:], text)
	return appendPayload(Header{
		SourceSerial: sourceSerial,
		DestSerial:   destSerial,
		Flags:        FlagResponse | FlagSingleBroadcast,
		Transaction:  transaction,
		MessageID:    MessageGetSetText,
	}, payload)
}

// BuildErrorResponse constructs a reply with the error flag set and no
// payload, correlating with the given request header.
func BuildErrorResponse(sourceSerial string, request Header) []byte {
	return buildHeader(Header{
		SourceSerial: sourceSerial,
		DestSerial:   request.SourceSerial,
		Flags:        FlagResponse | FlagSingleBroadcast | FlagError,
		Transaction:  request.Transaction,
		MessageID:    request.MessageID,
	})
}
