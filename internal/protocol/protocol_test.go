package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPingDiscovery(t *testing.T) {
	packet := BuildPing(MasterSerial, "", 7, true)
	require.Len(t, packet, HeaderSize)

	// Source serial zero-padded to 12 bytes.
	assert.Equal(t, []byte("LYNXMASTER\x00\x00"), packet[0:12])
	// Destination stays empty for a full broadcast.
	assert.Equal(t, make([]byte, 24), packet[12:36])
	// Data offset marker: 13 words in the top five bits.
	assert.Equal(t, byte(0x0D<<3), packet[36])
	assert.Equal(t, byte(FlagFullBroadcast|FlagResponseNeeded), packet[37])
	assert.Equal(t, byte(7), packet[38])
	assert.Equal(t, byte(MessagePing), packet[39])
	// Payload length, sequence and ack all zero.
	assert.Equal(t, make([]byte, 12), packet[40:52])
}

func TestBuildPingUnicast(t *testing.T) {
	packet := BuildPing(MasterSerial, "121000G101", 3, false)
	require.Len(t, packet, HeaderSize)
	assert.Equal(t, byte(FlagSingleBroadcast|FlagResponseNeeded), packet[37])

	hdr, err := ParseHeader(packet)
	require.NoError(t, err)
	assert.Equal(t, "121000G101", hdr.DestSerial)
}

func TestHeaderRoundTrip(t *testing.T) {
	in := Header{
		SourceSerial: "121000G101",
		DestSerial:   MasterSerial,
		Flags:        FlagResponse | FlagSingleBroadcast,
		Transaction:  0xAB,
		MessageID:    MessageGetSetParameter,
		PayloadLen:   84,
	}
	out, err := ParseHeader(buildHeader(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseHeaderErrors(t *testing.T) {
	valid := buildHeader(Header{SourceSerial: "A", MessageID: MessagePing})

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{
			name:   "short buffer",
			mutate: func(b []byte) []byte { return b[:HeaderSize-1] },
		},
		{
			name: "wrong data offset",
			mutate: func(b []byte) []byte {
				b[36] = 0x0C << 3
				return b
			},
		},
		{
			name: "unknown message id",
			mutate: func(b []byte) []byte {
				b[39] = 0x7F
				return b
			},
		},
		{
			name: "zero message id",
			mutate: func(b []byte) []byte {
				b[39] = 0
				return b
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, len(valid))
			copy(buf, valid)
			_, err := ParseHeader(tt.mutate(buf))
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestSerialPadding(t *testing.T) {
	// A serial filling the whole field is truncated to keep the terminator.
	buf := make([]byte, 12)
	padSerial(buf, "123456789012345")
	assert.Equal(t, []byte("12345678901\x00"), buf)
	assert.Equal(t, "12345678901", trimSerial(buf))

	// A field with no terminator is taken whole.
	assert.Equal(t, "ABCD", trimSerial([]byte("ABCD")))
}

func TestPingResponseRoundTrip(t *testing.T) {
	packet := BuildPingResponse("121000G101", MasterSerial, 9, 0x17, "2.61")

	info, err := ParsePingResponse(packet)
	require.NoError(t, err)
	assert.Equal(t, "121000G101", info.Serial)
	assert.Equal(t, byte(0x17), info.HardwareType)
	assert.Equal(t, "2.61", info.FirmwareVersion)
}

func TestParsePingResponseBarePayload(t *testing.T) {
	// A response with no payload still yields the serial number.
	packet := buildHeader(Header{
		SourceSerial: "121000G101",
		DestSerial:   MasterSerial,
		Flags:        FlagResponse | FlagSingleBroadcast,
		Transaction:  1,
		MessageID:    MessagePing,
	})
	info, err := ParsePingResponse(packet)
	require.NoError(t, err)
	assert.Equal(t, "121000G101", info.Serial)
	assert.Empty(t, info.FirmwareVersion)
}

func TestParsePingResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
	}{
		{
			name: "response flag not set",
			packet: buildHeader(Header{
				SourceSerial: "121000G101",
				Flags:        FlagSingleBroadcast,
				MessageID:    MessagePing,
			}),
		},
		{
			name: "error flag set",
			packet: buildHeader(Header{
				SourceSerial: "121000G101",
				Flags:        FlagResponse | FlagError,
				MessageID:    MessagePing,
			}),
		},
		{
			name: "empty source serial",
			packet: buildHeader(Header{
				Flags:     FlagResponse,
				MessageID: MessagePing,
			}),
		},
		{
			name:   "wrong message type",
			packet: BuildParameterResponse("121000G101", MasterSerial, 1, nil),
		},
		{
			name: "declared payload length disagrees with actual",
			packet: append(buildHeader(Header{
				SourceSerial: "121000G101",
				Flags:        FlagResponse,
				MessageID:    MessagePing,
				PayloadLen:   10,
			}), 0x17),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePingResponse(tt.packet)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestBuildGetParameters(t *testing.T) {
	addrs := []Address{
		{ModuleID: 8, Index: 0x02, Subindex: 0x28},
		{ModuleID: 8, Index: 0x02, Subindex: 0x29},
	}
	packet := BuildGetParameters(MasterSerial, "121000G101", 5, addrs)
	require.Len(t, packet, HeaderSize+4+2*8)

	payload := packet[HeaderSize:]
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(payload[0:4]))
	// First entry: read attribute, module nibbles 8|8, address, zero value.
	assert.Equal(t, []byte{0x00, 0x88, 0x02, 0x28, 0, 0, 0, 0}, payload[4:12])
	assert.Equal(t, []byte{0x00, 0x88, 0x02, 0x29, 0, 0, 0, 0}, payload[12:20])

	hdr, err := ParseHeader(packet)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), hdr.PayloadLen)
	assert.Equal(t, MessageGetSetParameter, hdr.MessageID)
	assert.False(t, hdr.IsResponse())
}

func TestParameterRoundTrip(t *testing.T) {
	addrs := []Address{
		{ModuleID: 8, Index: 0x02, Subindex: 0x28},
		{ModuleID: 8, Index: 0x0A, Subindex: 0x02},
	}
	sent := []RawValue{
		{Address: addrs[0], Type: DataTypeUnsigned16, Raw: [4]byte{0x7F, 0x0D, 0, 0}},
		{Address: addrs[1], Faulted: true},
	}
	packet := BuildParameterResponse("121000G101", MasterSerial, 5, sent)

	got, err := ParseParameterResponse(packet, addrs)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sent[0], got[0])
	assert.True(t, got[1].Faulted)
	assert.Equal(t, addrs[1], got[1].Address)
}

func TestParseParameterResponseErrors(t *testing.T) {
	addrs := []Address{{ModuleID: 8, Index: 0x02, Subindex: 0x28}}
	valid := BuildParameterResponse("121000G101", MasterSerial, 5,
		[]RawValue{{Address: addrs[0], Type: DataTypeUnsigned16}})

	tests := []struct {
		name      string
		packet    []byte
		requested []Address
	}{
		{
			name:      "count differs from requested",
			packet:    valid,
			requested: append(addrs, Address{ModuleID: 8, Index: 1, Subindex: 1}),
		},
		{
			name: "payload truncated below declared length",
			packet: func() []byte {
				buf := make([]byte, len(valid)-4)
				copy(buf, valid)
				return buf
			}(),
			requested: addrs,
		},
		{
			name:      "error flag set",
			packet:    BuildErrorResponse("121000G101", Header{SourceSerial: MasterSerial, Transaction: 5, MessageID: MessageGetSetParameter}),
			requested: addrs,
		},
		{
			name:      "wrong message type",
			packet:    BuildPingResponse("121000G101", MasterSerial, 5, 0, ""),
			requested: addrs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParameterResponse(tt.packet, tt.requested)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestBuildSetParameter(t *testing.T) {
	addr := Address{ModuleID: 8, Index: 0x0A, Subindex: 0x02}
	raw, err := EncodeValue(DataTypeUnsigned16, 2)
	require.NoError(t, err)

	packet := BuildSetParameter(MasterSerial, "121000G101", 6, addr, DataTypeUnsigned16, raw)
	payload := packet[HeaderSize:]
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(payload[0:4]))
	// Attribute: set bit plus type in bits 1-4.
	assert.Equal(t, byte(0x20|byte(DataTypeUnsigned16)<<1), payload[4])
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00}, payload[8:12])

	hdr, entries, err := ParseParameterRequest(packet)
	require.NoError(t, err)
	assert.Equal(t, byte(6), hdr.Transaction)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Set)
	assert.Equal(t, addr, entries[0].Address)
	assert.Equal(t, DataTypeUnsigned16, entries[0].Type)
}

func TestParseParameterRequestReads(t *testing.T) {
	addrs := []Address{
		{ModuleID: 8, Index: 0x02, Subindex: 0x28},
		{ModuleID: 8, Index: 0x02, Subindex: 0x32},
	}
	_, entries, err := ParseParameterRequest(BuildGetParameters(MasterSerial, "121000G101", 1, addrs))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for i, entry := range entries {
		assert.False(t, entry.Set)
		assert.Equal(t, addrs[i], entry.Address)
	}
}

func TestTextRoundTrip(t *testing.T) {
	addr := Address{ModuleID: 8, Index: 0x1E, Subindex: 0x01}

	request := BuildGetText(MasterSerial, "121000G101", 4, addr)
	_, gotAddr, set, _, err := ParseTextRequest(request)
	require.NoError(t, err)
	assert.Equal(t, addr, gotAddr)
	assert.False(t, set)

	response := BuildTextResponse("121000G101", MasterSerial, 4, addr, "TLX Pro 12.5k")
	text, err := ParseTextResponse(response, addr)
	require.NoError(t, err)
	assert.Equal(t, "TLX Pro 12.5k", text)
}

func TestSetTextRoundTrip(t *testing.T) {
	addr := Address{ModuleID: 8, Index: 0x1E, Subindex: 0x02}
	request := BuildSetText(MasterSerial, "121000G101", 8, addr, "garage roof")

	_, gotAddr, set, text, err := ParseTextRequest(request)
	require.NoError(t, err)
	assert.Equal(t, addr, gotAddr)
	assert.True(t, set)
	assert.Equal(t, "garage roof", text)
}

func TestParseTextResponseAddressMismatch(t *testing.T) {
	addr := Address{ModuleID: 8, Index: 0x1E, Subindex: 0x01}
	other := Address{ModuleID: 8, Index: 0x1E, Subindex: 0x02}
	response := BuildTextResponse("121000G101", MasterSerial, 4, other, "x")

	_, err := ParseTextResponse(response, addr)
	assert.ErrorIs(t, err, ErrParse)
}

func TestHeaderMatches(t *testing.T) {
	hdr := Header{Flags: FlagResponse, Transaction: 9, MessageID: MessagePing}
	assert.True(t, hdr.Matches(9, MessagePing))
	assert.False(t, hdr.Matches(8, MessagePing))
	assert.False(t, hdr.Matches(9, MessageGetSetParameter))

	request := Header{Flags: FlagResponseNeeded, Transaction: 9, MessageID: MessagePing}
	assert.False(t, request.Matches(9, MessagePing))
}
