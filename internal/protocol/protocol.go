// Package protocol implements the EtherLynx wire format used by Danfoss TLX
// inverters: 52-byte headers, ping/parameter/text packets and the scalar
// value codec. The package is transport-agnostic and operates on raw byte
// slices only.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire-level constants for the EtherLynx protocol (UDP port 48004).
const (
	// Port is the fixed UDP port the inverter listens on.
	Port = 48004

	// HeaderSize is the fixed header length: 13 32-bit words.
	HeaderSize = 52

	// dataOffsetWords is the payload offset in 32-bit words, carried in the
	// top five bits of header byte 36. Always 13 for this protocol revision.
	dataOffsetWords = 0x0D

	// sourceSerialLen and destSerialLen are the zero-padded serial number
	// field sizes at the start of every header.
	sourceSerialLen = 12
	destSerialLen   = 24

	// paramEntrySize is the size of one parameter entry in a
	// GetSetParameter payload: attribute, module byte, index, subindex and
	// a four byte value field.
	paramEntrySize = 8

	// MasterSerial is the dummy serial number identifying this side of the
	// exchange. The vendor guide requires a serial not present in the
	// inverter network when the source is a PC rather than an inverter.
	MasterSerial = "LYNXMASTER"
)

// MessageID identifies the packet type carried in header byte 39.
type MessageID byte

const (
	MessagePing            MessageID = 0x01
	MessageGetSetParameter MessageID = 0x02
	MessageGetSetText      MessageID = 0x03
)

// Valid reports whether the message ID is one of the defined packet types.
func (m MessageID) Valid() bool {
	return m >= MessagePing && m <= MessageGetSetText
}

// String returns the string representation of the message ID.
func (m MessageID) String() string {
	switch m {
	case MessagePing:
		return "ping"
	case MessageGetSetParameter:
		return "get_set_parameter"
	case MessageGetSetText:
		return "get_set_text"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(m))
	}
}

// Header flag bits (header byte 37).
const (
	FlagResponse        = 0x40 // set on replies
	FlagResponseNeeded  = 0x20 // request expects a reply
	FlagSyn             = 0x10 // reserved
	FlagFullBroadcast   = 0x08 // addressed to every device, used for discovery
	FlagGroupBroadcast  = 0x04
	FlagSingleBroadcast = 0x02 // addressed to one serial number
	FlagError           = 0x01 // replying device reports a failure
)

// Attribute byte bits for parameter payload entries.
const (
	attrErrorBit = 0x01 // entry-level failure reported by the inverter
	attrSetBit   = 0x20 // write request; clear means read
	attrTypeMask = 0x0F // data type occupies bits 1-4
)

// ErrParse is the sentinel wrapped by every malformed-packet error returned
// from this package.
var ErrParse = errors.New("malformed packet")

// ErrUnsupportedDataType is returned when a value codec operation is
// requested for a data type it does not implement.
var ErrUnsupportedDataType = errors.New("unsupported data type")

// Header is the decoded form of the fixed 52-byte packet header.
type Header struct {
	SourceSerial string
	DestSerial   string
	Flags        byte
	Transaction  byte
	MessageID    MessageID
	PayloadLen   uint32
}

// IsResponse reports whether the header carries the response flag.
func (h Header) IsResponse() bool {
	return h.Flags&FlagResponse != 0
}

// IsError reports whether the replying device flagged the whole packet as
// failed.
func (h Header) IsError() bool {
	return h.Flags&FlagError != 0
}

// Matches reports whether the header is a response correlating with the
// given transaction number and message type. Used by the transport to
// discard unrelated datagrams while waiting.
func (h Header) Matches(transaction byte, id MessageID) bool {
	return h.IsResponse() && h.Transaction == transaction && h.MessageID == id
}

// buildHeader serializes a 52-byte header. All multi-byte integer fields are
// little-endian.
func buildHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	padSerial(buf[0:sourceSerialLen], h.SourceSerial)
	padSerial(buf[sourceSerialLen:sourceSerialLen+destSerialLen], h.DestSerial)
	buf[36] = dataOffsetWords << 3
	buf[37] = h.Flags
	buf[38] = h.Transaction
	buf[39] = byte(h.MessageID)
	binary.LittleEndian.PutUint32(buf[40:44], h.PayloadLen)
	// Sequence and acknowledge numbers are only used for file transfer
	// messages and stay zero here.
	binary.LittleEndian.PutUint32(buf[44:48], 0)
	binary.LittleEndian.PutUint32(buf[48:52], 0)
	return buf
}

// ParseHeader decodes and validates the fixed header of a received datagram.
// A short buffer, wrong payload offset marker or unknown message ID yields
// an error wrapping ErrParse.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrParse, len(buf), HeaderSize)
	}
	if offset := buf[36] >> 3; offset != dataOffsetWords {
		return Header{}, fmt.Errorf("%w: unexpected data offset %d", ErrParse, offset)
	}
	id := MessageID(buf[39])
	if !id.Valid() {
		return Header{}, fmt.Errorf("%w: unknown message id 0x%02x", ErrParse, buf[39])
	}
	return Header{
		SourceSerial: trimSerial(buf[0:sourceSerialLen]),
		DestSerial:   trimSerial(buf[sourceSerialLen : sourceSerialLen+destSerialLen]),
		Flags:        buf[37],
		Transaction:  buf[38],
		MessageID:    id,
		PayloadLen:   binary.LittleEndian.Uint32(buf[40:44]),
	}, nil
}

// padSerial writes a zero-terminated, zero-padded serial number into dst.
// Serials longer than the field are truncated to leave room for the
// terminator, as the vendor format requires unused bytes to stay zero.
func padSerial(dst []byte, serial string) {
	n := len(dst) - 1
	if len(serial) < n {
		n = len(serial)
	}
	copy(dst, serial[:n])
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// trimSerial extracts a zero-terminated ASCII serial number from a header
// field.
func trimSerial(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
