package cbuf

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Handler is invoked by Merger for each matched frame. name is the
// resolved type name (from the dictionary); reflected is populated lazily
// only when a registered handler or OnAny callback needs it.
type Handler func(name string, frame Frame, reflected func() (*Value, error))

// Filter selects which type names a merger should deliver. Exactly one of
// Include/Exclude should be set; an empty Filter matches everything.
type Filter struct {
	Include map[string]bool
	Exclude map[string]bool
}

func (f Filter) allows(name string) bool {
	if len(f.Include) > 0 {
		return f.Include[name]
	}
	if len(f.Exclude) > 0 {
		return !f.Exclude[name]
	}
	return true
}

// TimeWindow optionally bounds delivered frames to [Start, End] inclusive
// on packet_timest. A zero-value window matches everything.
type TimeWindow struct {
	Start, End float64
	Enabled    bool
}

func (w TimeWindow) allows(ts float64) bool {
	if !w.Enabled {
		return true
	}
	return ts >= w.Start && ts <= w.End
}

// mergerInput pairs a reader with its next peeked frame, so Merger can
// always advance the globally-earliest stream.
type mergerInput struct {
	reader *LogReader
	index  int
	next   *Frame
}

// Merger performs a timestamp-ordered merge across N log readers,
// transparently skipping corrupt frames, and dispatches matched frames to
// registered handlers by type name.
type Merger struct {
	inputs     []*mergerInput
	dictionary *Dictionary
	filter     Filter
	window     TimeWindow
	handlers   map[string]Handler
	anyHandler Handler
	log        *logrus.Entry

	messageCount  int64
	conflictCount int64
}

// NewMerger builds a merger over the given readers. Readers remain owned
// by the caller; Merger does not close them.
func NewMerger(readers []*LogReader) (*Merger, error) {
	m := &Merger{
		dictionary: NewDictionary(),
		handlers:   make(map[string]Handler),
		log:        logrus.WithField("component", "cbuf.merger"),
	}
	for i, r := range readers {
		if err := m.dictionary.Merge(r.Dictionary()); err != nil {
			return nil, err
		}
		m.inputs = append(m.inputs, &mergerInput{reader: r, index: i})
	}
	return m, nil
}

// SetFilter installs a type-name filter.
func (m *Merger) SetFilter(f Filter) { m.filter = f }

// SetTimeWindow installs a packet-timestamp window.
func (m *Merger) SetTimeWindow(w TimeWindow) { m.window = w }

// OnType registers handler for frames whose resolved type name is name.
func (m *Merger) OnType(name string, h Handler) { m.handlers[name] = h }

// OnAny registers a catch-all handler invoked for frames with no
// registered type-name handler, mirroring the original reader base's
// fan-in dispatch used by generic tooling like a pretty-printer.
func (m *Merger) OnAny(h Handler) { m.anyHandler = h }

// Delivered reports how many messages have passed the filter and time
// window so far: those ProcessMessage dispatched (whether or not a handler
// was registered for them) plus those Merge wrote to its output.
func (m *Merger) Delivered() int64 { return m.messageCount }

// CountMessages resets every input reader to the start of its file,
// iterates every frame across all inputs (ignoring any installed filter or
// time window, and independent of any in-progress ProcessMessage/Merge
// pass), tallies a name -> count map, and resets every reader again so the
// merger is left ready for a fresh pass.
func (m *Merger) CountMessages() (map[string]int64, error) {
	for _, in := range m.inputs {
		in.reader.Reset()
		in.next = nil
	}

	counts := make(map[string]int64)
	for {
		if err := m.fill(); err != nil {
			return nil, err
		}
		in := m.nextInput()
		if in == nil {
			break
		}
		frame := *in.next
		in.next = nil

		name := "unknown"
		if md, ok := m.dictionary.Lookup(frame.Preamble.Hash); ok {
			name = md.Name
		}
		counts[name]++
	}

	for _, in := range m.inputs {
		in.reader.Reset()
		in.next = nil
	}

	return counts, nil
}

// fill ensures every input has a peeked next frame (skipping frames that
// fail the filter/window at the peek stage would require decoding the
// dictionary name first, so filtering happens in ProcessMessage instead).
func (m *Merger) fill() error {
	for _, in := range m.inputs {
		if in.next != nil {
			continue
		}
		frame, ok, err := in.reader.Next()
		if err != nil {
			return err
		}
		if err := m.dictionary.Merge(in.reader.Dictionary()); err != nil {
			m.conflictCount++
			m.log.WithError(err).Warn("metadata conflict while merging streams")
		}
		if ok {
			in.next = &frame
		}
	}
	return nil
}

// nextInput returns the input whose peeked frame has the smallest
// packet_timest, ties broken by input index, or nil if all inputs are
// exhausted.
func (m *Merger) nextInput() *mergerInput {
	var best *mergerInput
	for _, in := range m.inputs {
		if in.next == nil {
			continue
		}
		if best == nil || in.next.Preamble.PacketTimest < best.next.Preamble.PacketTimest ||
			(in.next.Preamble.PacketTimest == best.next.Preamble.PacketTimest && in.index < best.index) {
			best = in
		}
	}
	return best
}

// ProcessMessage advances the merge by exactly one message, dispatching it
// to the matching handler (or the catch-all), and returns false once every
// input is exhausted.
func (m *Merger) ProcessMessage() (bool, error) {
	if err := m.fill(); err != nil {
		return false, err
	}
	in := m.nextInput()
	if in == nil {
		return false, nil
	}
	frame := *in.next
	in.next = nil

	name := "unknown"
	if md, ok := m.dictionary.Lookup(frame.Preamble.Hash); ok {
		name = md.Name
	}

	if !m.filter.allows(name) || !m.window.allows(frame.Preamble.PacketTimest) {
		return true, nil
	}

	m.messageCount++
	reflected := func() (*Value, error) {
		md, ok := m.dictionary.Lookup(frame.Preamble.Hash)
		if !ok {
			return nil, ErrMetadataMissing
		}
		return Reflect(md.SchemaText, md.Name, frame.Body)
	}

	if h, ok := m.handlers[name]; ok {
		h(name, frame, reflected)
	} else if m.anyHandler != nil {
		m.anyHandler(name, frame, reflected)
	}

	return true, nil
}

// Run drains the merge to completion, calling ProcessMessage until all
// inputs are exhausted.
func (m *Merger) Run() error {
	for {
		more, err := m.ProcessMessage()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// Merge drains the full timestamp-ordered merge to output, restricted by
// filter (its polarity is Filter.Include vs Filter.Exclude), writing a
// self-describing stream where each type's metadata frame precedes its
// first data frame in the output. Metadata is unioned across every input's
// dictionary as frames are written; it returns ErrMetadataConflict if two
// inputs disagree on the schema text for the same hash. Merge ignores any
// filter previously installed with SetFilter, applying only the filter
// argument, but honors any time window from SetTimeWindow.
func (m *Merger) Merge(output io.Writer, filter Filter) error {
	written := NewDictionary()
	conflicts := m.conflictCount

	for {
		if err := m.fill(); err != nil {
			return err
		}
		if m.conflictCount != conflicts {
			return ErrMetadataConflict
		}
		in := m.nextInput()
		if in == nil {
			return nil
		}
		frame := *in.next
		in.next = nil

		md, known := m.dictionary.Lookup(frame.Preamble.Hash)
		name := "unknown"
		if known {
			name = md.Name
		}
		if !filter.allows(name) || !m.window.allows(frame.Preamble.PacketTimest) {
			continue
		}

		if known && !written.Known(frame.Preamble.Hash) {
			mdBody := make([]byte, md.EncodedSize())
			if _, err := md.Encode(mdBody); err != nil {
				return err
			}
			mdFrame := make([]byte, PreambleSize+len(mdBody))
			if err := EncodePreamble(mdFrame, MetadataHash, len(mdBody), 0, frame.Preamble.PacketTimest); err != nil {
				return err
			}
			copy(mdFrame[PreambleSize:], mdBody)
			if _, err := output.Write(mdFrame); err != nil {
				return err
			}
			if err := written.Record(md); err != nil {
				return err
			}
		}

		out := make([]byte, PreambleSize+len(frame.Body))
		if err := EncodePreamble(out, frame.Preamble.Hash, len(frame.Body), frame.Preamble.Variant, frame.Preamble.PacketTimest); err != nil {
			return err
		}
		copy(out[PreambleSize:], frame.Body)
		if _, err := output.Write(out); err != nil {
			return err
		}

		m.messageCount++
	}
}

// DiscoverFiles returns the .cb files directly inside dir whose base name
// contains substr (an empty substr matches every file), sorted so that a
// timestamp-prefixed naming scheme yields chronological order.
func DiscoverFiles(dir, substr string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.cb"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if substr == "" || strings.Contains(filepath.Base(e), substr) {
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Watch live-tails dir for newly created .cb files matching substr,
// invoking onNew with each new path as it appears. Watch blocks until stop
// is closed.
func Watch(dir, substr string, stop <-chan struct{}, onNew func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".cb") {
				continue
			}
			if substr != "" && !strings.Contains(filepath.Base(ev.Name), substr) {
				continue
			}
			onNew(ev.Name)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(werr).Warn("fsnotify watch error")
		}
	}
}
