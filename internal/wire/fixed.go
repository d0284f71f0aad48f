// Package wire provides fixed-width little-endian encode/decode helpers
// used by the cbuf codec. Every cbuf scalar is a bit-exact little-endian
// image of its Go value: unlike a general-purpose wire format, there is no
// NaN or negative-zero canonicalization here, since cbuf's round-trip
// invariant requires decode(encode(v)) to reproduce v's exact bit pattern.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrTruncated is returned by the Decode* helpers when the input is
// shorter than the value being decoded.
var ErrTruncated = errors.New("wire: truncated value")

// AppendFixed16 appends a 16-bit value in little-endian format.
func AppendFixed16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

// AppendFixed32 appends a 32-bit value in little-endian format.
func AppendFixed32(buf []byte, v uint32) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
	)
}

// AppendFixed64 appends a 64-bit value in little-endian format.
func AppendFixed64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// DecodeFixed16 decodes a little-endian 16-bit value.
func DecodeFixed16(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint16(data), nil
}

// DecodeFixed32 decodes a little-endian 32-bit value.
func DecodeFixed32(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(data), nil
}

// DecodeFixed64 decodes a little-endian 64-bit value.
func DecodeFixed64(data []byte) (uint64, error) {
	if len(data) < 8 {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint64(data), nil
}

// PutFixed16 writes a 16-bit value to buf in little-endian format. The
// buffer must have at least 2 bytes available.
func PutFixed16(buf []byte, v uint16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

// PutFixed32 writes a 32-bit value to buf in little-endian format. The
// buffer must have at least 4 bytes available.
func PutFixed32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

// PutFixed64 writes a 64-bit value to buf in little-endian format. The
// buffer must have at least 8 bytes available.
func PutFixed64(buf []byte, v uint64) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	buf[4] = byte(v >> 32)
	buf[5] = byte(v >> 40)
	buf[6] = byte(v >> 48)
	buf[7] = byte(v >> 56)
}

// AppendFloat32 appends a float32's exact bit pattern in little-endian
// format, NaN payload and sign of zero preserved.
func AppendFloat32(buf []byte, v float32) []byte {
	return AppendFixed32(buf, math.Float32bits(v))
}

// DecodeFloat32 decodes a float32 from its exact little-endian bit
// pattern.
func DecodeFloat32(data []byte) (float32, error) {
	bits, err := DecodeFixed32(data)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// PutFloat32 writes a float32's exact bit pattern to buf.
func PutFloat32(buf []byte, v float32) {
	PutFixed32(buf, math.Float32bits(v))
}

// AppendFloat64 appends a float64's exact bit pattern in little-endian
// format, NaN payload and sign of zero preserved.
func AppendFloat64(buf []byte, v float64) []byte {
	return AppendFixed64(buf, math.Float64bits(v))
}

// DecodeFloat64 decodes a float64 from its exact little-endian bit
// pattern.
func DecodeFloat64(data []byte) (float64, error) {
	bits, err := DecodeFixed64(data)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// PutFloat64 writes a float64's exact bit pattern to buf.
func PutFloat64(buf []byte, v float64) {
	PutFixed64(buf, math.Float64bits(v))
}

// Size constants for fixed-width types.
const (
	Fixed16Size = 2
	Fixed32Size = 4
	Fixed64Size = 8
	Float32Size = 4
	Float64Size = 8
)
