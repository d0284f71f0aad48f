package cbuf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blockberries/cbuf/internal/wire"
)

func writeWriterFile(t *testing.T, dir string, ts time.Time, msgs ...MessageCodec) string {
	t.Helper()
	w, err := NewLogWriter(WriterOptions{Dir: dir, Clock: func() time.Time { return ts }})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	for _, m := range msgs {
		if err := w.Publish(ctx, m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(closeCtx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files, err := DiscoverFiles(dir, "")
	if err != nil || len(files) == 0 {
		t.Fatalf("expected at least one file, got %v, err %v", files, err)
	}
	return files[len(files)-1]
}

func TestMergerOrdersByTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	dirA := t.TempDir()
	pathA := writeWriterFile(t, dirA, base, &fakeMessage{A: 1, B: 1})

	dirB := t.TempDir()
	pathB := writeWriterFile(t, dirB, base.Add(time.Hour), &fakeOther{Count: 9})

	rA, err := OpenLogReader(pathA, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rA.Close()
	rB, err := OpenLogReader(pathB, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rB.Close()

	m, err := NewMerger([]*LogReader{rA, rB})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var order []string
	m.OnAny(func(name string, frame Frame, reflected func() (*Value, error)) {
		order = append(order, name)
	})

	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 2 {
		t.Fatalf("got %d messages, want 2", len(order))
	}
	if order[0] != "m::p" || order[1] != "q" {
		t.Errorf("order = %v, want [m::p q] (earlier timestamp first)", order)
	}
	if m.Delivered() != 2 {
		t.Errorf("Delivered() = %d, want 2", m.Delivered())
	}

	counts, err := m.CountMessages()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["m::p"] != 1 || counts["q"] != 1 {
		t.Errorf("CountMessages() = %v, want {m::p:1 q:1}", counts)
	}

	// CountMessages resets both readers; a fresh Run must see both
	// messages again.
	var replay []string
	m.OnAny(func(name string, frame Frame, reflected func() (*Value, error)) {
		replay = append(replay, name)
	})
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replay) != 2 {
		t.Errorf("got %d messages after CountMessages reset, want 2", len(replay))
	}
}

func TestMergerFilterExcludesType(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	path := writeWriterFile(t, dir, base, &fakeMessage{A: 1, B: 2}, &fakeOther{Count: 3})

	r, err := OpenLogReader(path, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	m, err := NewMerger([]*LogReader{r})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.SetFilter(Filter{Include: map[string]bool{"q": true}})

	var seen []string
	m.OnAny(func(name string, frame Frame, reflected func() (*Value, error)) {
		seen = append(seen, name)
	})
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 || seen[0] != "q" {
		t.Errorf("seen = %v, want [q]", seen)
	}
}

func TestMergerOnTypeDispatch(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	path := writeWriterFile(t, dir, base, &fakeMessage{A: 7, B: 8})

	r, err := OpenLogReader(path, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	m, err := NewMerger([]*LogReader{r})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotA, gotB uint32
	m.OnType("m::p", func(name string, frame Frame, reflected func() (*Value, error)) {
		gotA, _ = wire.DecodeFixed32(frame.Body[0:4])
		gotB, _ = wire.DecodeFixed32(frame.Body[4:8])
	})
	if err := m.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotA != 7 || gotB != 8 {
		t.Errorf("got (%d,%d), want (7,8)", gotA, gotB)
	}
}

// writeWriterFileVariedTimes publishes msgs in order, stamping each with
// the corresponding entry of times rather than one fixed clock value.
func writeWriterFileVariedTimes(t *testing.T, dir string, times []time.Time, msgs ...MessageCodec) string {
	t.Helper()
	idx := 0
	w, err := NewLogWriter(WriterOptions{Dir: dir, Clock: func() time.Time {
		ts := times[idx]
		idx++
		return ts
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	for _, m := range msgs {
		if err := w.Publish(ctx, m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Close(closeCtx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files, err := DiscoverFiles(dir, "")
	if err != nil || len(files) == 0 {
		t.Fatalf("expected at least one file, got %v, err %v", files, err)
	}
	return files[len(files)-1]
}

// TestMergerMergeToOutput reproduces the merger's filtered-merge-to-output
// scenario: inputs A={m::p@0.1, q@0.2} and B={m::p@0.15}, filtered to
// m::p, merge to exactly m::p@0.1 then m::p@0.15.
func TestMergerMergeToOutput(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	dirA := t.TempDir()
	pathA := writeWriterFileVariedTimes(t, dirA,
		[]time.Time{base.Add(100 * time.Millisecond), base.Add(200 * time.Millisecond)},
		&fakeMessage{A: 1, B: 1}, &fakeOther{Count: 1})

	dirB := t.TempDir()
	pathB := writeWriterFileVariedTimes(t, dirB,
		[]time.Time{base.Add(150 * time.Millisecond)},
		&fakeMessage{A: 2, B: 2})

	rA, err := OpenLogReader(pathA, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rA.Close()
	rB, err := OpenLogReader(pathB, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rB.Close()

	m, err := NewMerger([]*LogReader{rA, rB})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "merged.cb")
	out, err := os.Create(outPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Merge(out, Filter{Include: map[string]bool{"m::p": true}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	merged, err := OpenLogReader(outPath, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer merged.Close()

	var got []float64
	for {
		frame, ok, err := merged.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, frame.Preamble.PacketTimest)
	}

	if len(got) != 2 || got[0] >= got[1] {
		t.Fatalf("got timestamps %v, want exactly two in ascending order", got)
	}
}

func TestDiscoverFilesSubstringFilter(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	writeWriterFile(t, dir, base, &fakeMessage{A: 1, B: 1})

	files, err := DiscoverFiles(dir, "nomatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files matching a nonexistent substring, want 0", len(files))
	}

	files, err = DiscoverFiles(dir, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("got %d files, want 1", len(files))
	}
}
