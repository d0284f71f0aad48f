package cbuf

import (
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// RecoveryMode selects how a LogReader responds to a frame that violates
// the basic framing invariants.
type RecoveryMode int

const (
	// Strict returns the violation as a fatal error.
	Strict RecoveryMode = iota
	// Lenient scans forward byte by byte for the next plausible frame,
	// counting each skipped byte range as one corruption event. A truncated
	// tail frame is dropped without being counted.
	Lenient
)

// LogReader provides read-only, mmap-backed iteration over one .cb file.
type LogReader struct {
	path string
	data []byte
	mode RecoveryMode
	log  *logrus.Entry

	cursor int64

	dictionary     *Dictionary
	corruptionCount int
}

// OpenLogReader mmaps path read-only and positions the cursor at the
// start of the file.
func OpenLogReader(path string, mode RecoveryMode) (*LogReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, &IOError{Path: path, Op: "stat", Err: err}
	}
	size := fi.Size()
	if size == 0 {
		return &LogReader{path: path, data: nil, mode: mode, log: logrus.WithField("component", "cbuf.reader"), dictionary: NewDictionary()}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, &IOError{Path: path, Op: "mmap", Err: err}
	}

	return &LogReader{
		path:       path,
		data:       data,
		mode:       mode,
		log:        logrus.WithField("component", "cbuf.reader").WithField("path", path),
		dictionary: NewDictionary(),
	}, nil
}

// Close unmaps the file.
func (r *LogReader) Close() error {
	if r.data == nil {
		return nil
	}
	if err := unix.Munmap(r.data); err != nil {
		return &IOError{Path: r.path, Op: "munmap", Err: err}
	}
	r.data = nil
	return nil
}

// CorruptionCount reports how many corrupt byte ranges have been skipped
// in lenient mode so far.
func (r *LogReader) CorruptionCount() int { return r.corruptionCount }

// Dictionary returns the metadata dictionary accumulated from metadata
// frames encountered so far.
func (r *LogReader) Dictionary() *Dictionary { return r.dictionary }

// Reset rewinds the cursor to the start of the file so a fresh Next pass
// sees every frame again. Metadata already recorded in Dictionary is left
// intact.
func (r *LogReader) Reset() { r.cursor = 0 }

// remaining returns the unread tail of the mapped file.
func (r *LogReader) remaining() []byte {
	if r.cursor >= int64(len(r.data)) {
		return nil
	}
	return r.data[r.cursor:]
}

// Frame is one decoded, framed message: its preamble and body bytes
// (body excludes the preamble).
type Frame struct {
	Preamble Preamble
	Body     []byte
	Offset   int64
}

// Next advances the cursor and returns the next frame, transparently
// consuming and recording any metadata frames it encounters, and applying
// strict/lenient recovery on invariant violations. ok is false at EOF.
func (r *LogReader) Next() (frame Frame, ok bool, err error) {
	for {
		buf := r.remaining()
		if len(buf) == 0 {
			return Frame{}, false, nil
		}

		offset := r.cursor
		pre, total, verr := r.validateFrame(buf)
		if verr != nil {
			if r.mode == Strict {
				return Frame{}, false, &CorruptionError{Offset: offset, Reason: verr}
			}
			if verr == ErrTruncated {
				// A tail whose declared size runs past the end of the file
				// is dropped without counting it as corruption.
				if pre, perr := DecodePreamble(buf); len(buf) < PreambleSize || (perr == nil && int(pre.Size) > len(buf)) {
					r.cursor = int64(len(r.data))
					return Frame{}, false, nil
				}
			}
			skipped := r.resync(buf)
			r.corruptionCount++
			r.cursor += int64(skipped)
			r.log.WithField("offset", offset).WithError(verr).Warn("skipped corrupt frame")
			continue
		}

		body := buf[PreambleSize:total]
		r.cursor += int64(total)

		if pre.Hash == MetadataHash {
			md, _, derr := DecodeMetadata(body)
			if derr != nil {
				if r.mode == Strict {
					return Frame{}, false, &CorruptionError{Offset: offset, Reason: derr}
				}
				r.corruptionCount++
				continue
			}
			if err := r.dictionary.Record(md); err != nil {
				if r.mode == Strict {
					return Frame{}, false, err
				}
				r.log.WithError(err).Warn("metadata conflict")
			}
			continue
		}

		return Frame{Preamble: pre, Body: body, Offset: offset}, true, nil
	}
}

// validateFrame checks the per-frame invariants of §4.6 against buf, which
// starts at a candidate preamble: size() must lie in [PreambleSize,
// len(buf)]. It returns the decoded preamble and its total framed length
// (preamble included).
func (r *LogReader) validateFrame(buf []byte) (Preamble, int, error) {
	if len(buf) < PreambleSize {
		return Preamble{}, 0, ErrTruncated
	}
	pre, err := DecodePreamble(buf)
	if err != nil {
		return Preamble{}, 0, err
	}
	total := int(pre.Size)
	if total < PreambleSize || total > len(buf) {
		return Preamble{}, 0, ErrTruncated
	}
	if pre.Hash == 0 {
		return Preamble{}, 0, ErrBadMagic
	}
	return pre, total, nil
}

// resync scans forward one byte at a time from buf[1:] looking for a
// plausible magic+size+hash(known) triple, returning the number of bytes
// to skip to reach it (at least 1, to guarantee forward progress).
func (r *LogReader) resync(buf []byte) int {
	for i := 1; i+PreambleSize <= len(buf); i++ {
		candidate := buf[i:]
		pre, err := DecodePreamble(candidate)
		if err != nil {
			continue
		}
		total := int(pre.Size)
		if total < PreambleSize || total > len(candidate) {
			continue
		}
		if pre.Hash == MetadataHash {
			return i
		}
		if _, known := r.dictionary.Lookup(pre.Hash); known {
			return i
		}
	}
	return len(buf) // no plausible resync point; drop the rest of the file
}

// PeekHash returns the type hash of the next frame without consuming it.
func (r *LogReader) PeekHash() (uint64, bool) {
	buf := r.remaining()
	if len(buf) < PreambleSize {
		return 0, false
	}
	pre, err := DecodePreamble(buf)
	if err != nil {
		return 0, false
	}
	return pre.Hash, true
}

// PeekSize returns the total framed length (size()) of the next frame
// without consuming it.
func (r *LogReader) PeekSize() (uint32, bool) {
	buf := r.remaining()
	if len(buf) < PreambleSize {
		return 0, false
	}
	pre, err := DecodePreamble(buf)
	if err != nil {
		return 0, false
	}
	return pre.Size, true
}

// PeekTimestamp returns the packet_timest of the next frame without
// consuming it.
func (r *LogReader) PeekTimestamp() (float64, bool) {
	buf := r.remaining()
	if len(buf) < PreambleSize {
		return 0, false
	}
	pre, err := DecodePreamble(buf)
	if err != nil {
		return 0, false
	}
	return pre.PacketTimest, true
}

// Skip advances past the next frame without decoding its body.
func (r *LogReader) Skip() bool {
	_, ok, err := r.Next()
	return ok && err == nil
}

// DecodeDynamic reflectively decodes body against the schema text this
// reader's dictionary has recorded for hash, without requiring a generated
// Go type for it. It returns ErrMetadataMissing if no metadata frame for
// hash has been seen yet, e.g. via Frame.Preamble.Hash/Frame.Body from Next.
func (r *LogReader) DecodeDynamic(hash uint64, body []byte) (*Value, error) {
	md, ok := r.dictionary.Lookup(hash)
	if !ok {
		return nil, ErrMetadataMissing
	}
	return Reflect(md.SchemaText, md.Name, body)
}

// Deserialize reads the next frame and decodes its body directly into
// *dst, a concrete message type satisfying MessageCodec, skipping the
// reflective decoder for callers who already have a generated type.
func Deserialize[T any, PT interface {
	*T
	MessageCodec
}](r *LogReader, dst PT) (Frame, error) {
	frame, ok, err := r.Next()
	if err != nil {
		return Frame{}, err
	}
	if !ok {
		return Frame{}, ErrTruncated
	}
	if _, err := dst.Decode(frame.Body); err != nil {
		return Frame{}, err
	}
	return frame, nil
}
