package cbuf

import "github.com/blockberries/cbuf/internal/wire"

// Metadata is the body of a self-describing metadata frame: the hash,
// name, and canonical schema text of a struct a writer is about to emit
// for the first time in the current file.
type Metadata struct {
	MsgHash    uint64
	Name       string
	SchemaText string
}

// EncodedSize returns the body length of the metadata frame, not
// including its 24-byte preamble.
func (m Metadata) EncodedSize() int {
	return 8 + 4 + len(m.Name) + 4 + len(m.SchemaText)
}

// Encode writes the metadata body: {u64 msg_hash, u32 name_len, bytes
// name, u32 schema_len, bytes schema}.
func (m Metadata) Encode(buf []byte) (int, error) {
	if len(buf) < m.EncodedSize() {
		return 0, ErrBufferTooSmall
	}
	out := buf[:0]
	out = wire.AppendFixed64(out, m.MsgHash)
	out = PutString(out, m.Name)
	out = PutString(out, m.SchemaText)
	return len(out), nil
}

// DecodeMetadata reads a metadata body, returning the decoded value and
// the number of bytes consumed.
func DecodeMetadata(buf []byte) (Metadata, int, error) {
	if len(buf) < 8 {
		return Metadata{}, 0, ErrTruncated
	}
	hash, _ := wire.DecodeFixed64(buf[0:8])
	off := 8

	name, n, err := GetString(buf[off:])
	if err != nil {
		return Metadata{}, 0, err
	}
	off += n

	schemaText, n, err := GetString(buf[off:])
	if err != nil {
		return Metadata{}, 0, err
	}
	off += n

	return Metadata{MsgHash: hash, Name: name, SchemaText: schemaText}, off, nil
}
