package cbuf

import "github.com/blockberries/cbuf/internal/wire"

// The Put*/Get* functions below re-export internal/wire's fixed-width
// little-endian codec for generated code: a generated type's package lives
// outside this module's internal/ visibility boundary, so it reaches the
// wire primitives through this public surface instead.

// PutUint16 writes v to buf[0:2] in little-endian format.
func PutUint16(buf []byte, v uint16) { wire.PutFixed16(buf, v) }

// GetUint16 reads a little-endian uint16 from buf[0:2].
func GetUint16(buf []byte) (uint16, error) { return wire.DecodeFixed16(buf) }

// PutUint32 writes v to buf[0:4] in little-endian format.
func PutUint32(buf []byte, v uint32) { wire.PutFixed32(buf, v) }

// GetUint32 reads a little-endian uint32 from buf[0:4].
func GetUint32(buf []byte) (uint32, error) { return wire.DecodeFixed32(buf) }

// PutUint64 writes v to buf[0:8] in little-endian format.
func PutUint64(buf []byte, v uint64) { wire.PutFixed64(buf, v) }

// GetUint64 reads a little-endian uint64 from buf[0:8].
func GetUint64(buf []byte) (uint64, error) { return wire.DecodeFixed64(buf) }

// PutFloat32 writes v's exact bit pattern to buf[0:4].
func PutFloat32(buf []byte, v float32) { wire.PutFloat32(buf, v) }

// GetFloat32 reads a float32 from its exact little-endian bit pattern.
func GetFloat32(buf []byte) (float32, error) { return wire.DecodeFloat32(buf) }

// PutFloat64 writes v's exact bit pattern to buf[0:8].
func PutFloat64(buf []byte, v float64) { wire.PutFloat64(buf, v) }

// GetFloat64 reads a float64 from its exact little-endian bit pattern.
func GetFloat64(buf []byte) (float64, error) { return wire.DecodeFloat64(buf) }

// AppendUint16 appends v to buf in little-endian format, returning the
// grown slice. Generated Encode methods build a frame by repeated append,
// the same way Metadata.Encode does.
func AppendUint16(buf []byte, v uint16) []byte { return wire.AppendFixed16(buf, v) }

// AppendUint32 appends v to buf in little-endian format.
func AppendUint32(buf []byte, v uint32) []byte { return wire.AppendFixed32(buf, v) }

// AppendUint64 appends v to buf in little-endian format.
func AppendUint64(buf []byte, v uint64) []byte { return wire.AppendFixed64(buf, v) }

// AppendFloat32 appends v's exact bit pattern to buf.
func AppendFloat32(buf []byte, v float32) []byte { return wire.AppendFloat32(buf, v) }

// AppendFloat64 appends v's exact bit pattern to buf.
func AppendFloat64(buf []byte, v float64) []byte { return wire.AppendFloat64(buf, v) }
