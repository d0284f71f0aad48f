package cbuf

import "sync"

// Dictionary tracks the set of (hash -> name, schema text) pairs a writer
// has announced, or a reader/merger has learned, via metadata frames.
// Concurrency-safe: a writer's drain goroutine and readers each own one
// Dictionary, but the merger (C9) may consult several readers' dictionaries
// from one goroutine, so reads take the lock too.
type Dictionary struct {
	mu      sync.RWMutex
	entries map[uint64]Metadata
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{entries: make(map[uint64]Metadata)}
}

// Known reports whether hash has already been recorded.
func (d *Dictionary) Known(hash uint64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[hash]
	return ok
}

// Lookup returns the metadata recorded for hash, if any.
func (d *Dictionary) Lookup(hash uint64) (Metadata, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.entries[hash]
	return m, ok
}

// Record adds hash's metadata. Record is idempotent for identical schema
// text; it returns ErrMetadataConflict if hash is already known with
// different schema text (the dictionary is not allowed to silently prefer
// one of two conflicting definitions).
func (d *Dictionary) Record(m Metadata) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.entries[m.MsgHash]; ok {
		if existing.SchemaText != m.SchemaText {
			return ErrMetadataConflict
		}
		return nil
	}
	d.entries[m.MsgHash] = m
	return nil
}

// Reset clears all entries. Used by the log writer on file rotation: a new
// file carries no assumption about what a reader opening it cold already
// knows.
func (d *Dictionary) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[uint64]Metadata)
}

// Merge copies every entry of other into d, returning ErrMetadataConflict
// on the first hash present in both with differing schema text. Used by
// the multi-stream merger (C9) to build a union dictionary across inputs.
func (d *Dictionary) Merge(other *Dictionary) error {
	other.mu.RLock()
	entries := make([]Metadata, 0, len(other.entries))
	for _, m := range other.entries {
		entries = append(entries, m)
	}
	other.mu.RUnlock()

	for _, m := range entries {
		if err := d.Record(m); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of known types.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
