package cbuf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// WriterOptions configures a LogWriter.
type WriterOptions struct {
	// Dir is the ulog directory new files are created in.
	Dir string

	// RotateBytes is the file size threshold that triggers rotation. Zero
	// disables rotation. Accepts human-readable sizes like "128MB" via
	// ParseRotateBytes.
	RotateBytes int64

	// RingCapacity sizes the internal publish ring, in bytes.
	RingCapacity int

	// Logger receives structured diagnostics. Defaults to logrus.StandardLogger().
	Logger *logrus.Logger

	// Registry, if non-nil, receives Prometheus metrics for this writer.
	Registry *prometheus.Registry

	// Clock returns the current time; overridable for tests. Defaults to time.Now.
	Clock func() time.Time
}

// ParseRotateBytes parses a human-readable size like "128MB" using the
// pack's established humanize idiom, for CLI flag wiring.
func ParseRotateBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	return int64(n), err
}

// WriterStats mirrors the original ring buffer's operational counters,
// reported for diagnostics. These fields are not exported as Prometheus
// metrics; a supplied Registry receives the separate writerMetrics set.
type WriterStats struct {
	Ring         RingStats
	FilesWritten int64
	BytesOnDisk  int64
}

// LogWriter owns one ulog directory: it stamps, dictionary-tracks, and
// frames outgoing messages, publishing them through a Ring to a single
// background drain goroutine that performs all file I/O and rotation.
type LogWriter struct {
	opts WriterOptions
	ring *Ring
	log  *logrus.Entry

	mu          sync.Mutex
	file        *os.File
	currentPath string
	bytesInFile int64
	known       *Dictionary

	onOpen  func(path string)
	onClose func(path string)
	onError func(error)

	filesWritten int64

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	metrics *writerMetrics
}

type writerMetrics struct {
	queueDepth      prometheus.Gauge
	bytesWritten    prometheus.Counter
	rotations       prometheus.Counter
	errors          prometheus.Counter
}

func newWriterMetrics(reg *prometheus.Registry) *writerMetrics {
	if reg == nil {
		return nil
	}
	m := &writerMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cbuf_writer_queue_depth_bytes",
			Help: "Bytes currently queued in the writer's publish ring.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbuf_writer_bytes_written_total",
			Help: "Total bytes written to the current ulog directory.",
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbuf_writer_rotations_total",
			Help: "Total number of file rotations performed.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cbuf_writer_errors_total",
			Help: "Total number of errors encountered by the drain goroutine.",
		}),
	}
	reg.MustRegister(m.queueDepth, m.bytesWritten, m.rotations, m.errors)
	return m
}

// NewLogWriter creates a writer and starts its drain goroutine. Callers
// must call Close to flush and release the open file.
func NewLogWriter(opts WriterOptions) (*LogWriter, error) {
	if opts.RingCapacity <= 0 {
		opts.RingCapacity = 4 * 1024 * 1024
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, &IOError{Path: opts.Dir, Op: "mkdir", Err: err}
	}

	w := &LogWriter{
		opts:    opts,
		ring:    NewRing(opts.RingCapacity),
		log:     opts.Logger.WithField("component", "cbuf.writer"),
		known:   NewDictionary(),
		stopCh:  make(chan struct{}),
		metrics: newWriterMetrics(opts.Registry),
	}

	if err := w.rotate(); err != nil {
		return nil, err
	}

	w.wg.Add(1)
	go w.drain()

	return w, nil
}

// OnOpen registers a callback fired on the drain goroutine each time
// rotation opens a new file. The initial file, opened by NewLogWriter
// before any callback can be registered, is not reported.
func (w *LogWriter) OnOpen(f func(path string)) { w.onOpen = f }

// OnClose registers a callback fired right after a file is closed: on the
// drain goroutine when rotation closes it, and on the goroutine calling
// Close for the last file.
func (w *LogWriter) OnClose(f func(path string)) { w.onClose = f }

// OnError registers a callback for errors encountered by the drain
// goroutine; the goroutine always continues with the next queued message.
func (w *LogWriter) OnError(f func(error)) { w.onError = f }

// Publish stamps msg with the current time, writes variant 0 into its
// preamble (no per-topic variant is assigned), records its metadata if
// this is the first time this type hash has been seen in the current file,
// and enqueues it for the drain goroutine. Publish blocks while the ring
// is full.
func (w *LogWriter) Publish(ctx context.Context, msg MessageCodec) error {
	frame, err := w.frame(msg)
	if err != nil {
		return err
	}
	return w.ring.Push(ctx, frame)
}

// frame produces the bytes the drain goroutine will append verbatim:
// metadata frame (if new), then the message's own preamble + body.
func (w *LogWriter) frame(msg MessageCodec) ([]byte, error) {
	hash := msg.TypeHash()
	ts := float64(w.opts.Clock().UnixNano()) / 1e9

	var out []byte
	if !w.known.Known(hash) {
		md := Metadata{MsgHash: hash, Name: msg.TypeName(), SchemaText: msg.SchemaText()}
		mdBody := make([]byte, md.EncodedSize())
		if _, err := md.Encode(mdBody); err != nil {
			return nil, err
		}
		mdFrame := make([]byte, PreambleSize+len(mdBody))
		if err := EncodePreamble(mdFrame, MetadataHash, len(mdBody), 0, ts); err != nil {
			return nil, err
		}
		copy(mdFrame[PreambleSize:], mdBody)
		out = append(out, mdFrame...)
		if err := w.known.Record(md); err != nil {
			return nil, err
		}
	}

	bodyLen := msg.EncodedSize()
	body := make([]byte, bodyLen)
	if _, err := msg.Encode(body); err != nil {
		return nil, err
	}

	frame := make([]byte, PreambleSize+bodyLen)
	if err := EncodePreamble(frame, hash, bodyLen, 0, ts); err != nil {
		return nil, err
	}
	copy(frame[PreambleSize:], body)

	return append(out, frame...), nil
}

// drain is the single goroutine that owns file I/O, running until Close
// signals stopCh and the ring is empty.
func (w *LogWriter) drain() {
	defer w.wg.Done()
	for {
		data, ok := w.ring.Pop()
		if !ok {
			select {
			case <-w.stopCh:
				return
			case <-time.After(ringPollInterval):
				continue
			}
		}

		if w.metrics != nil {
			w.metrics.queueDepth.Set(float64(w.ring.Len()))
		}

		if err := w.writeAndMaybeRotate(data); err != nil {
			w.log.WithError(err).Warn("failed writing frame")
			if w.metrics != nil {
				w.metrics.errors.Inc()
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *LogWriter) writeAndMaybeRotate(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(data); err != nil {
		return &IOError{Path: w.currentPath, Op: "write", Err: err}
	}
	w.bytesInFile += int64(len(data))
	if w.metrics != nil {
		w.metrics.bytesWritten.Add(float64(len(data)))
	}

	if w.opts.RotateBytes > 0 && w.bytesInFile >= w.opts.RotateBytes {
		return w.rotateLocked()
	}
	return nil
}

// rotate closes the current file (if any) and opens a new, deterministically
// named file, resetting the known-types dictionary.
func (w *LogWriter) rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotateLocked()
}

func (w *LogWriter) rotateLocked() error {
	if w.file != nil {
		path := w.currentPath
		if err := w.file.Close(); err != nil {
			return &IOError{Path: path, Op: "close", Err: err}
		}
		if w.onClose != nil {
			w.onClose(path)
		}
		if w.metrics != nil {
			w.metrics.rotations.Inc()
		}
	}

	path := w.nextFileName()
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Path: path, Op: "create", Err: err}
	}

	w.file = f
	w.currentPath = path
	w.bytesInFile = 0
	w.known.Reset()
	atomic.AddInt64(&w.filesWritten, 1)

	if w.onOpen != nil {
		w.onOpen(path)
	}
	w.log.WithField("path", path).Info("opened log file")
	return nil
}

// nextFileName builds a deterministic timestamped name, appending a
// short uuid-derived suffix on collision with an existing file.
func (w *LogWriter) nextFileName() string {
	base := w.opts.Clock().UTC().Format("20060102_150405")
	name := fmt.Sprintf("%s.cb", base)
	path := filepath.Join(w.opts.Dir, name)

	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		suffix := uuid.NewString()[:8]
		name = fmt.Sprintf("%s_%s.cb", base, suffix)
		path = filepath.Join(w.opts.Dir, name)
	}
}

// Stats returns a snapshot of writer operational counters.
func (w *LogWriter) Stats() WriterStats {
	w.mu.Lock()
	bytesOnDisk := w.bytesInFile
	w.mu.Unlock()
	return WriterStats{
		Ring:         w.ring.Stats(),
		FilesWritten: atomic.LoadInt64(&w.filesWritten),
		BytesOnDisk:  bytesOnDisk,
	}
}

// Close signals the drain goroutine to finish the queue and close the
// file, blocking until it exits or ctx is done.
func (w *LogWriter) Close(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		path := w.currentPath
		err := w.file.Close()
		w.file = nil
		if w.onClose != nil {
			w.onClose(path)
		}
		if err != nil {
			return &IOError{Path: path, Op: "close", Err: err}
		}
	}
	return nil
}
