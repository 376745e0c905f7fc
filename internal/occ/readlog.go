package occ

import (
	"github.com/roach88/occgraph/internal/pattern"
)

// ReadEntry is one logged read.
type ReadEntry struct {
	// Pattern is the evaluated graph pattern with caller bindings already
	// substituted.
	Pattern pattern.GraphPattern

	// Inferred records whether the caller asked for inferred statements.
	Inferred bool

	// Hash is the content hash of Pattern, for diagnostics.
	Hash string
}

// ReadLog is the ordered list of reads a transaction performed. Only
// consulted at commit time.
type ReadLog struct {
	entries []ReadEntry
	seen    map[string]bool
}

func newReadLog() *ReadLog {
	return &ReadLog{seen: map[string]bool{}}
}

// Record appends a read. Identical patterns are logged once; the hash is
// the identity.
func (l *ReadLog) Record(gp pattern.GraphPattern, inferred bool) (ReadEntry, error) {
	hash, err := pattern.Hash(gp)
	if err != nil {
		return ReadEntry{}, err
	}
	entry := ReadEntry{Pattern: gp, Inferred: inferred, Hash: hash}
	if l.seen[hash] {
		return entry, nil
	}
	l.seen[hash] = true
	l.entries = append(l.entries, entry)
	return entry, nil
}

// Entries returns the logged reads in the order they were first made.
func (l *ReadLog) Entries() []ReadEntry {
	return append([]ReadEntry(nil), l.entries...)
}

// Len returns the number of distinct reads.
func (l *ReadLog) Len() int {
	return len(l.entries)
}

// Clear drops all entries.
func (l *ReadLog) Clear() {
	l.entries = nil
	clear(l.seen)
}
