package cbuf

import (
	"context"
	"testing"
	"time"

	"github.com/blockberries/cbuf/internal/wire"
)

func TestLogWriterPublishAndClose(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w, err := NewLogWriter(WriterOptions{
		Dir:   dir,
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := w.Publish(ctx, &fakeMessage{A: 1, B: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Publish(ctx, &fakeMessage{A: 3, B: 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(closeCtx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	files, err := DiscoverFiles(dir, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}

	r, err := OpenLogReader(files[0], Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	frame, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("expected a frame, got ok=%v err=%v", ok, err)
	}
	if frame.Preamble.Hash != (&fakeMessage{}).TypeHash() {
		t.Errorf("first frame hash = 0x%x, want message hash (metadata should be transparent)", frame.Preamble.Hash)
	}
	a, _ := wire.DecodeFixed32(frame.Body[0:4])
	b, _ := wire.DecodeFixed32(frame.Body[4:8])
	if a != 1 || b != 2 {
		t.Errorf("first frame body = (%d,%d), want (1,2)", a, b)
	}

	frame2, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("expected a second frame, got ok=%v err=%v", ok, err)
	}
	a2, _ := wire.DecodeFixed32(frame2.Body[0:4])
	b2, _ := wire.DecodeFixed32(frame2.Body[4:8])
	if a2 != 3 || b2 != 4 {
		t.Errorf("second frame body = (%d,%d), want (3,4)", a2, b2)
	}

	if r.Dictionary().Len() != 1 {
		t.Errorf("reader dictionary Len() = %d, want 1 (metadata announced once)", r.Dictionary().Len())
	}

	if _, ok, _ := r.Next(); ok {
		t.Error("expected EOF after two messages")
	}
}

func TestLogWriterRotationResetsDictionary(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w, err := NewLogWriter(WriterOptions{
		Dir:         dir,
		RotateBytes: 1, // rotate after every write
		Clock:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := w.Publish(ctx, &fakeMessage{A: 1, B: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the drain goroutine catch up and rotate
	if err := w.Publish(ctx, &fakeMessage{A: 5, B: 6}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(closeCtx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	files, err := DiscoverFiles(dir, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("got %d files, want at least 2 (same clock forces a dedup suffix)", len(files))
	}

	for _, path := range files {
		r, err := OpenLogReader(path, Strict)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		frame, ok, err := r.Next()
		if err != nil || !ok {
			t.Fatalf("expected a frame in %s, got ok=%v err=%v", path, ok, err)
		}
		if frame.Preamble.Hash != (&fakeMessage{}).TypeHash() {
			t.Errorf("%s: metadata frame should be transparent to Next, got hash 0x%x", path, frame.Preamble.Hash)
		}
		r.Close()
	}

	if w.Stats().FilesWritten < 2 {
		t.Errorf("FilesWritten = %d, want at least 2", w.Stats().FilesWritten)
	}
}

func TestParseRotateBytes(t *testing.T) {
	n, err := ParseRotateBytes("128MB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 128*1000*1000 && n != 128*1024*1024 {
		t.Errorf("ParseRotateBytes(128MB) = %d, unexpected value", n)
	}
}
