package cbuf

import "github.com/blockberries/cbuf/internal/wire"

// MessageCodec is the contract every generated struct type satisfies. It
// mirrors the emitted codec obligations: a type is self-describing (hash,
// name, schema text) and knows how to size and frame itself.
type MessageCodec interface {
	TypeHash() uint64
	TypeName() string
	SchemaText() string

	// EncodedSize returns the body length in bytes, not including the
	// 24-byte preamble.
	EncodedSize() int

	// Encode writes the body (no preamble) into buf, which must be at
	// least EncodedSize() bytes, and returns the number of bytes written.
	Encode(buf []byte) (int, error)

	// Decode reads the body (no preamble) from buf and returns the number
	// of bytes consumed.
	Decode(buf []byte) (int, error)

	// Init resets the receiver to its schema-declared default values.
	Init()
}

// NakedCodec is satisfied by structs declared with @naked: the same
// obligations as MessageCodec, minus TypeHash/SchemaText, since naked
// structs carry neither a preamble nor a hash on the wire.
type NakedCodec interface {
	EncodedSize() int
	Encode(buf []byte) (int, error)
	Decode(buf []byte) (int, error)
	Init()
}

// ShortStringWireSize is the fixed on-wire footprint of a short_string
// field: 15 payload bytes plus a NUL terminator.
const ShortStringWireSize = 16

// PutShortString writes s into a fixed 16-byte field, truncating to 15
// bytes and always terminating with a NUL.
func PutShortString(buf []byte, s string) {
	n := len(s)
	if n > ShortStringWireSize-1 {
		n = ShortStringWireSize - 1
	}
	copy(buf[:n], s[:n])
	for i := n; i < ShortStringWireSize; i++ {
		buf[i] = 0
	}
}

// GetShortString reads a fixed 16-byte short_string field, stopping at the
// first NUL.
func GetShortString(buf []byte) string {
	n := 0
	for n < ShortStringWireSize && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// PutString appends a u32 length prefix followed by the string's bytes,
// returning the new buffer tail.
func PutString(buf []byte, s string) []byte {
	buf = wire.AppendFixed32(buf, uint32(len(s)))
	return append(buf, s...)
}

// GetString reads a u32-length-prefixed string starting at buf[0],
// returning the decoded value and the number of bytes consumed.
func GetString(buf []byte) (string, int, error) {
	if len(buf) < 4 {
		return "", 0, ErrTruncated
	}
	n, _ := wire.DecodeFixed32(buf[0:4])
	end := 4 + int(n)
	if len(buf) < end {
		return "", 0, ErrTruncated
	}
	return string(buf[4:end]), end, nil
}

// PutArrayCount appends a u32 element count, used by dynamic and compact
// arrays ahead of their elements.
func PutArrayCount(buf []byte, n int) []byte {
	return wire.AppendFixed32(buf, uint32(n))
}

// GetArrayCount reads a u32 element count, returning the decoded count and
// bytes consumed.
func GetArrayCount(buf []byte) (int, int, error) {
	if len(buf) < 4 {
		return 0, 0, ErrTruncated
	}
	n, _ := wire.DecodeFixed32(buf[0:4])
	return int(n), 4, nil
}

// CheckCompactCapacity returns ErrCompactOverflow if count exceeds the
// array's declared capacity.
func CheckCompactCapacity(count, capacity int) error {
	if count > capacity {
		return ErrCompactOverflow
	}
	return nil
}
