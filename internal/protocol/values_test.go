package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name     string
		dataType DataType
		raw      []byte
		expected float64
	}{
		{
			name:     "boolean false",
			dataType: DataTypeBoolean,
			raw:      []byte{0x00, 0x00, 0x00, 0x00},
			expected: 0,
		},
		{
			name:     "boolean nonzero is true",
			dataType: DataTypeBoolean,
			raw:      []byte{0x02, 0x00, 0x00, 0x00},
			expected: 1,
		},
		{
			name:     "signed8 negative",
			dataType: DataTypeSigned8,
			raw:      []byte{0xFE, 0x00, 0x00, 0x00},
			expected: -2,
		},
		{
			name:     "signed16 negative",
			dataType: DataTypeSigned16,
			raw:      []byte{0x18, 0xFC, 0x00, 0x00},
			expected: -1000,
		},
		{
			name:     "signed16 ignores upper bytes",
			dataType: DataTypeSigned16,
			raw:      []byte{0x7F, 0x0D, 0xFF, 0xFF},
			expected: 3455,
		},
		{
			name:     "signed32 negative",
			dataType: DataTypeSigned32,
			raw:      []byte{0xFF, 0xFF, 0xFF, 0xFF},
			expected: -1,
		},
		{
			name:     "unsigned8",
			dataType: DataTypeUnsigned8,
			raw:      []byte{0xFE, 0x00, 0x00, 0x00},
			expected: 254,
		},
		{
			name:     "unsigned16 grid voltage in tenths",
			dataType: DataTypeUnsigned16,
			raw:      []byte{0x7E, 0x3B, 0x00, 0x00},
			expected: 15230,
		},
		{
			name:     "unsigned32 full range",
			dataType: DataTypeUnsigned32,
			raw:      []byte{0xFF, 0xFF, 0xFF, 0xFF},
			expected: 4294967295,
		},
		{
			name:     "fixed point decodes as signed32",
			dataType: DataTypeFixedPoint,
			raw:      []byte{0x18, 0xFC, 0xFF, 0xFF},
			expected: -1000,
		},
		{
			name:     "packed bytes decode as unsigned",
			dataType: DataTypePackedBytes,
			raw:      []byte{0x01, 0x02, 0x03, 0x04},
			expected: 0x04030201,
		},
		{
			name:     "packed words decode as unsigned",
			dataType: DataTypePackedWords,
			raw:      []byte{0x01, 0x02, 0x03, 0x04},
			expected: 0x04030201,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(tt.dataType, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeValueFloat32(t *testing.T) {
	// 49.98 as IEEE-754 little-endian.
	got, err := DecodeValue(DataTypeFloat32, []byte{0xEC, 0xEB, 0x47, 0x42})
	require.NoError(t, err)
	assert.InDelta(t, 49.98, got, 0.001)
}

func TestDecodeValueErrors(t *testing.T) {
	_, err := DecodeValue(DataTypeUnsigned16, []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrParse)

	_, err = DecodeValue(DataTypeVisibleString, []byte{0x41, 0x42, 0x43, 0x00})
	assert.ErrorIs(t, err, ErrUnsupportedDataType)

	_, err = DecodeValue(DataTypeReserved, []byte{0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrUnsupportedDataType)
}

func TestEncodeValueRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		dataType DataType
		value    float64
	}{
		{name: "boolean", dataType: DataTypeBoolean, value: 1},
		{name: "signed8", dataType: DataTypeSigned8, value: -100},
		{name: "signed16", dataType: DataTypeSigned16, value: -1000},
		{name: "signed32", dataType: DataTypeSigned32, value: -2000000},
		{name: "unsigned8", dataType: DataTypeUnsigned8, value: 200},
		{name: "unsigned16", dataType: DataTypeUnsigned16, value: 3455},
		{name: "unsigned32", dataType: DataTypeUnsigned32, value: 18234560},
		{name: "fixed point", dataType: DataTypeFixedPoint, value: -42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeValue(tt.dataType, tt.value)
			require.NoError(t, err)
			require.Len(t, raw, 4)
			got, err := DecodeValue(tt.dataType, raw)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestEncodeValueFloat32(t *testing.T) {
	raw, err := EncodeValue(DataTypeFloat32, 49.98)
	require.NoError(t, err)
	got, err := DecodeValue(DataTypeFloat32, raw)
	require.NoError(t, err)
	assert.InDelta(t, 49.98, got, 0.001)
}

func TestEncodeValueUnsupported(t *testing.T) {
	_, err := EncodeValue(DataTypeVisibleString, 1)
	assert.ErrorIs(t, err, ErrUnsupportedDataType)
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "TLX 12.5k", DecodeText([]byte("TLX 12.5k\x00\x00\x00")))
	assert.Equal(t, "", DecodeText([]byte{0x00}))
}

func TestDataTypeProperties(t *testing.T) {
	assert.False(t, DataTypeReserved.Valid())
	assert.True(t, DataTypeBoolean.Valid())
	assert.True(t, DataTypeFixedPoint.Valid())
	assert.False(t, DataType(0x0D).Valid())

	assert.True(t, DataTypeVisibleString.IsText())
	assert.False(t, DataTypeUnsigned32.IsText())

	assert.Equal(t, "unsigned16", DataTypeUnsigned16.String())
	assert.Contains(t, DataType(0x1F).String(), "unknown")
}
