package cbuf

import "testing"

func TestDictionaryRecordAndLookup(t *testing.T) {
	d := NewDictionary()
	m := Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p { u32 a; }"}

	if d.Known(1) {
		t.Fatal("expected hash 1 to be unknown before Record")
	}
	if err := d.Record(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Known(1) {
		t.Fatal("expected hash 1 to be known after Record")
	}

	got, ok := d.Lookup(1)
	if !ok {
		t.Fatal("expected Lookup to find hash 1")
	}
	if got != m {
		t.Errorf("got %+v, want %+v", got, m)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestDictionaryRecordIdempotent(t *testing.T) {
	d := NewDictionary()
	m := Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p { u32 a; }"}
	if err := d.Record(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Record(m); err != nil {
		t.Errorf("expected idempotent Record to succeed, got %v", err)
	}
}

func TestDictionaryRecordConflict(t *testing.T) {
	d := NewDictionary()
	a := Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p { u32 a; }"}
	b := Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p { u64 a; }"}
	if err := d.Record(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Record(b); err != ErrMetadataConflict {
		t.Errorf("expected ErrMetadataConflict, got %v", err)
	}
}

func TestDictionaryReset(t *testing.T) {
	d := NewDictionary()
	d.Record(Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p {}"})
	d.Reset()
	if d.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", d.Len())
	}
	if d.Known(1) {
		t.Error("expected hash 1 to be forgotten after Reset")
	}
}

func TestDictionaryMerge(t *testing.T) {
	a := NewDictionary()
	a.Record(Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p {}"})

	b := NewDictionary()
	b.Record(Metadata{MsgHash: 2, Name: "q", SchemaText: "struct q {}"})

	if err := a.Merge(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Len() != 2 {
		t.Errorf("Len() after Merge = %d, want 2", a.Len())
	}
	if !a.Known(2) {
		t.Error("expected hash 2 to be known after Merge")
	}
}

func TestDictionaryMergeConflict(t *testing.T) {
	a := NewDictionary()
	a.Record(Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p { u32 a; }"})

	b := NewDictionary()
	b.Record(Metadata{MsgHash: 1, Name: "p", SchemaText: "struct p { u64 a; }"})

	if err := a.Merge(b); err != ErrMetadataConflict {
		t.Errorf("expected ErrMetadataConflict, got %v", err)
	}
}
