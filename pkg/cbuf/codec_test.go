package cbuf

import "github.com/blockberries/cbuf/internal/wire"

// fakeMessage is a hand-written MessageCodec used across this package's
// tests, standing in for a generated type.
type fakeMessage struct {
	A uint32
	B uint32
}

func (m *fakeMessage) TypeHash() uint64    { return 0xAAAABBBBCCCCDDDD }
func (m *fakeMessage) TypeName() string    { return "m::p" }
func (m *fakeMessage) SchemaText() string  { return "namespace m { struct p { u32 a; u32 b; } }" }
func (m *fakeMessage) EncodedSize() int    { return 8 }
func (m *fakeMessage) Init()               { m.A, m.B = 0, 0 }

func (m *fakeMessage) Encode(buf []byte) (int, error) {
	if len(buf) < 8 {
		return 0, ErrBufferTooSmall
	}
	wire.PutFixed32(buf[0:4], m.A)
	wire.PutFixed32(buf[4:8], m.B)
	return 8, nil
}

func (m *fakeMessage) Decode(buf []byte) (int, error) {
	if len(buf) < 8 {
		return 0, ErrTruncated
	}
	m.A, _ = wire.DecodeFixed32(buf[0:4])
	m.B, _ = wire.DecodeFixed32(buf[4:8])
	return 8, nil
}

// fakeOther is a second, distinct type used to exercise multi-type
// dictionary and merge behavior.
type fakeOther struct {
	Count uint16
}

func (m *fakeOther) TypeHash() uint64   { return 0x1111222233334444 }
func (m *fakeOther) TypeName() string   { return "q" }
func (m *fakeOther) SchemaText() string { return "struct q { u16 count; }" }
func (m *fakeOther) EncodedSize() int   { return 2 }
func (m *fakeOther) Init()              { m.Count = 0 }

func (m *fakeOther) Encode(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, ErrBufferTooSmall
	}
	wire.PutFixed16(buf[0:2], m.Count)
	return 2, nil
}

func (m *fakeOther) Decode(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, ErrTruncated
	}
	m.Count, _ = wire.DecodeFixed16(buf[0:2])
	return 2, nil
}
