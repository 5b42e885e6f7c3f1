package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is the wire-level parameter data type carried in the attribute
// byte of a parameter entry (vendor guide appendix C).
type DataType byte

const (
	DataTypeReserved DataType = iota
	DataTypeBoolean
	DataTypeSigned8
	DataTypeSigned16
	DataTypeSigned32
	DataTypeUnsigned8
	DataTypeUnsigned16
	DataTypeUnsigned32
	DataTypeFloat32
	DataTypeVisibleString
	DataTypePackedBytes
	DataTypePackedWords
	DataTypeFixedPoint
)

// Valid reports whether the value decodes to a defined, non-reserved data
// type.
func (d DataType) Valid() bool {
	return d > DataTypeReserved && d <= DataTypeFixedPoint
}

// IsText reports whether values of this type are character data rather than
// scalars.
func (d DataType) IsText() bool {
	return d == DataTypeVisibleString
}

// String returns the string representation of the data type.
func (d DataType) String() string {
	switch d {
	case DataTypeReserved:
		return "reserved"
	case DataTypeBoolean:
		return "boolean"
	case DataTypeSigned8:
		return "signed8"
	case DataTypeSigned16:
		return "signed16"
	case DataTypeSigned32:
		return "signed32"
	case DataTypeUnsigned8:
		return "unsigned8"
	case DataTypeUnsigned16:
		return "unsigned16"
	case DataTypeUnsigned32:
		return "unsigned32"
	case DataTypeFloat32:
		return "float32"
	case DataTypeVisibleString:
		return "visible_string"
	case DataTypePackedBytes:
		return "packed_bytes"
	case DataTypePackedWords:
		return "packed_words"
	case DataTypeFixedPoint:
		return "fixed_point"
	default:
		return fmt.Sprintf("unknown(0x%x)", byte(d))
	}
}

// DecodeValue interprets a four byte little-endian value field as the given
// data type and returns it as a float64. Signed types use two's complement,
// Float32 is IEEE-754 and Boolean is nonzero-is-true. Text types cannot be
// decoded to a scalar and yield ErrUnsupportedDataType, as does any
// unrecognized type.
func DecodeValue(dt DataType, raw []byte) (float64, error) {
	if len(raw) != 4 {
		return 0, fmt.Errorf("%w: value field is %d bytes, want 4", ErrParse, len(raw))
	}
	u32 := binary.LittleEndian.Uint32(raw)
	switch dt {
	case DataTypeBoolean:
		if u32 != 0 {
			return 1, nil
		}
		return 0, nil
	case DataTypeSigned8:
		return float64(int8(raw[0])), nil
	case DataTypeSigned16:
		return float64(int16(binary.LittleEndian.Uint16(raw[:2]))), nil
	case DataTypeSigned32, DataTypeFixedPoint:
		return float64(int32(u32)), nil
	case DataTypeUnsigned8:
		return float64(raw[0]), nil
	case DataTypeUnsigned16:
		return float64(binary.LittleEndian.Uint16(raw[:2])), nil
	case DataTypeUnsigned32, DataTypePackedBytes, DataTypePackedWords:
		return float64(u32), nil
	case DataTypeFloat32:
		return float64(math.Float32frombits(u32)), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedDataType, dt)
	}
}

// DecodeText extracts zero-terminated character data from a value field or
// text blob.
func DecodeText(raw []byte) string {
	return trimSerial(raw)
}

// EncodeValue serializes a scalar into the four byte little-endian value
// field of a parameter entry, sized per the data type with the remaining
// bytes zero.
func EncodeValue(dt DataType, v float64) ([]byte, error) {
	raw := make([]byte, 4)
	switch dt {
	case DataTypeBoolean:
		if v != 0 {
			raw[0] = 1
		}
	case DataTypeSigned8:
		raw[0] = byte(int8(v))
	case DataTypeSigned16:
		binary.LittleEndian.PutUint16(raw[:2], uint16(int16(v)))
	case DataTypeSigned32, DataTypeFixedPoint:
		binary.LittleEndian.PutUint32(raw, uint32(int32(v)))
	case DataTypeUnsigned8:
		raw[0] = byte(uint8(v))
	case DataTypeUnsigned16:
		binary.LittleEndian.PutUint16(raw[:2], uint16(v))
	case DataTypeUnsigned32, DataTypePackedBytes, DataTypePackedWords:
		binary.LittleEndian.PutUint32(raw, uint32(v))
	case DataTypeFloat32:
		binary.LittleEndian.PutUint32(raw, math.Float32bits(float32(v)))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDataType, dt)
	}
	return raw, nil
}
