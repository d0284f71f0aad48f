package cbuf

import (
	"math"

	"github.com/blockberries/cbuf/internal/wire"
)

// Magic is the 4-byte little-endian marker ("VDNT" in ASCII order) that
// opens every non-naked frame, including metadata frames.
const Magic uint32 = 0x56444E54

// PreambleSize is the fixed byte length of a frame preamble.
const PreambleSize = 24

// sizeLengthMask isolates the 28-bit length field; the remaining 4 high
// bits carry the variant tag.
const sizeLengthMask = 1<<28 - 1

// MetadataHash is the fixed type hash reserved for self-describing
// metadata frames; no user schema may collide with it in practice since
// it is not derived from any struct's canonical text.
const MetadataHash uint64 = 0xBE6738D544AB72C6

// Preamble is the 24-byte header that precedes every non-naked frame's
// body: magic, a packed size+variant field, the struct's hash_value, and
// the capture timestamp.
type Preamble struct {
	Size         uint32 // total framed length, preamble included: PreambleSize + len(body)
	Variant      uint8  // 4-bit per (type,topic) discriminator, 0 = unspecified
	Hash         uint64
	PacketTimest float64
}

// packSize combines a total framed length and a variant tag into the wire
// size field. It returns ErrSizeOverflow if the length does not fit in 28
// bits.
func packSize(total int, variant uint8) (uint32, error) {
	if total < 0 || total > sizeLengthMask {
		return 0, ErrSizeOverflow
	}
	return uint32(total)&sizeLengthMask | uint32(variant&0x0F)<<28, nil
}

func unpackSize(field uint32) (total int, variant uint8) {
	return int(field & sizeLengthMask), uint8(field >> 28)
}

// EncodePreamble writes the 24-byte preamble for a frame whose body is
// bodyLen bytes long. The wire size field carries the total framed length
// (PreambleSize+bodyLen), matching encode_net_size's convention; it
// returns ErrSizeOverflow if that total does not fit the 28-bit length
// field.
func EncodePreamble(buf []byte, hash uint64, bodyLen int, variant uint8, packetTimest float64) error {
	if len(buf) < PreambleSize {
		return ErrBufferTooSmall
	}
	sizeField, err := packSize(PreambleSize+bodyLen, variant)
	if err != nil {
		return err
	}
	wire.PutFixed32(buf[0:4], Magic)
	wire.PutFixed32(buf[4:8], sizeField)
	wire.PutFixed64(buf[8:16], hash)
	wire.PutFixed64(buf[16:24], math.Float64bits(packetTimest))
	return nil
}

// DecodePreamble reads and validates a 24-byte preamble, returning
// ErrBadMagic or ErrTruncated on malformed input. It does not validate the
// hash against any dictionary; callers do that. Preamble.Size is the total
// framed length; callers needing the body length subtract PreambleSize.
func DecodePreamble(buf []byte) (Preamble, error) {
	if len(buf) < PreambleSize {
		return Preamble{}, ErrTruncated
	}
	magic, _ := wire.DecodeFixed32(buf[0:4])
	if magic != Magic {
		return Preamble{}, ErrBadMagic
	}
	sizeField, _ := wire.DecodeFixed32(buf[4:8])
	total, variant := unpackSize(sizeField)
	hash, _ := wire.DecodeFixed64(buf[8:16])
	tsBits, _ := wire.DecodeFixed64(buf[16:24])
	return Preamble{
		Size:         uint32(total),
		Variant:      variant,
		Hash:         hash,
		PacketTimest: math.Float64frombits(tsBits),
	}, nil
}
