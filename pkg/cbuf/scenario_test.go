package cbuf

import (
	"testing"

	"github.com/blockberries/cbuf/internal/wire"
	"github.com/blockberries/cbuf/pkg/schema"
)

// TestScenarioS1 reproduces the literal wire layout named by the module's
// testable properties for namespace m { struct p { u32 a; u32 b; } } with
// a=1, b=2: encoded length 32, magic at bytes 0-4, hash at bytes 8-16, and
// field values at bytes 24-28 / 28-32.
func TestScenarioS1(t *testing.T) {
	s, errs := schema.ParseFile("s1.cbuf", "namespace m { struct p { u32 a; u32 b; } }")
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if errs := schema.Resolve(s); len(errs) > 0 {
		t.Fatalf("unexpected resolve errors: %v", errs)
	}
	namespaces := append([]*schema.Namespace{s.Global}, s.Namespaces...)
	schema.ComputeAttributes(namespaces)

	st := s.Namespaces[0].Structs[0]
	if !st.Simple {
		t.Fatal("expected struct p to be simple")
	}

	body := make([]byte, 8)
	wire.PutFixed32(body[0:4], 1)
	wire.PutFixed32(body[4:8], 2)

	frame := make([]byte, PreambleSize+len(body))
	if err := EncodePreamble(frame, st.HashValue, len(body), 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copy(frame[PreambleSize:], body)

	if len(frame) != 32 {
		t.Errorf("frame length = %d, want 32", len(frame))
	}

	wantSize := []byte{0x20, 0x00, 0x00, 0x00}
	for i, b := range wantSize {
		if frame[4+i] != b {
			t.Errorf("size byte %d = 0x%x, want 0x%x", i, frame[4+i], b)
		}
	}

	wantMagic := []byte{0x54, 0x4E, 0x44, 0x56}
	for i, b := range wantMagic {
		if frame[i] != b {
			t.Errorf("magic byte %d = 0x%x, want 0x%x", i, frame[i], b)
		}
	}

	gotHash, _ := wire.DecodeFixed64(frame[8:16])
	if gotHash != st.HashValue {
		t.Errorf("hash bytes = 0x%x, want 0x%x", gotHash, st.HashValue)
	}

	wantFieldA := []byte{0x01, 0x00, 0x00, 0x00}
	wantFieldB := []byte{0x02, 0x00, 0x00, 0x00}
	for i, b := range wantFieldA {
		if frame[24+i] != b {
			t.Errorf("field a byte %d = 0x%x, want 0x%x", i, frame[24+i], b)
		}
	}
	for i, b := range wantFieldB {
		if frame[28+i] != b {
			t.Errorf("field b byte %d = 0x%x, want 0x%x", i, frame[28+i], b)
		}
	}
}

// TestScenarioS3 reproduces a non-simple struct's framed size: struct
// { string name; } with name="abc" has a 7-byte body (u32 count + 3
// bytes), so the wire size() field is 24+7=31, not the body length alone.
func TestScenarioS3(t *testing.T) {
	s, errs := schema.ParseFile("s3.cbuf", "struct named { string name; }")
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if errs := schema.Resolve(s); len(errs) > 0 {
		t.Fatalf("unexpected resolve errors: %v", errs)
	}
	schema.ComputeAttributes([]*schema.Namespace{s.Global})
	st := s.Global.Structs[0]
	if st.Simple {
		t.Fatal("expected struct named to be non-simple")
	}

	body := PutString(nil, "abc")
	if len(body) != 7 {
		t.Fatalf("body length = %d, want 7", len(body))
	}

	frame := make([]byte, PreambleSize+len(body))
	if err := EncodePreamble(frame, st.HashValue, len(body), 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copy(frame[PreambleSize:], body)

	if len(frame) != 31 {
		t.Errorf("frame length = %d, want 31", len(frame))
	}

	pre, err := DecodePreamble(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pre.Size != 31 {
		t.Errorf("size() = %d, want 31", pre.Size)
	}
}

// TestScenarioDecodePreambleRoundTrip exercises the reader's preamble
// decode against the same frame construction.
func TestScenarioDecodePreambleRoundTrip(t *testing.T) {
	s, _ := schema.ParseFile("s1.cbuf", "struct P { u32 a; }")
	schema.Resolve(s)
	schema.ComputeAttributes([]*schema.Namespace{s.Global})
	st := s.Global.Structs[0]

	body := make([]byte, 4)
	wire.PutFixed32(body, 42)
	frame := make([]byte, PreambleSize+len(body))
	if err := EncodePreamble(frame, st.HashValue, len(body), 0, 99.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copy(frame[PreambleSize:], body)

	pre, err := DecodePreamble(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pre.Hash != st.HashValue {
		t.Errorf("Hash = 0x%x, want 0x%x", pre.Hash, st.HashValue)
	}
	if pre.PacketTimest != 99.5 {
		t.Errorf("PacketTimest = %v, want 99.5", pre.PacketTimest)
	}
}
