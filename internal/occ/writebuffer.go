package occ

import (
	"github.com/roach88/occgraph/internal/eval"
	"github.com/roach88/occgraph/internal/ir"
)

// WriteBuffer holds a transaction's pending writes. A statement is never
// in both sets.
//
// Thread-safety: none; the owning Transaction serializes access.
type WriteBuffer struct {
	added   map[ir.Statement]struct{}
	removed map[ir.Statement]struct{}
}

func newWriteBuffer() *WriteBuffer {
	return &WriteBuffer{
		added:   map[ir.Statement]struct{}{},
		removed: map[ir.Statement]struct{}{},
	}
}

// Add stages st for insertion, cancelling a staged removal.
func (w *WriteBuffer) Add(st ir.Statement) {
	delete(w.removed, st)
	w.added[st] = struct{}{}
}

// Remove stages st for deletion. A statement that was only staged locally
// is dropped from the added set instead.
func (w *WriteBuffer) Remove(st ir.Statement, committed bool) {
	delete(w.added, st)
	if committed {
		w.removed[st] = struct{}{}
	}
}

// HasAdded reports whether st is staged for insertion.
func (w *WriteBuffer) HasAdded(st ir.Statement) bool {
	_, ok := w.added[st]
	return ok
}

// HasRemoved reports whether st is staged for deletion.
func (w *WriteBuffer) HasRemoved(st ir.Statement) bool {
	_, ok := w.removed[st]
	return ok
}

// Added returns the staged insertions in sorted order.
func (w *WriteBuffer) Added() []ir.Statement {
	return sortedSet(w.added)
}

// Removed returns the staged deletions in sorted order.
func (w *WriteBuffer) Removed() []ir.Statement {
	return sortedSet(w.removed)
}

// Len returns the number of staged changes.
func (w *WriteBuffer) Len() int {
	return len(w.added) + len(w.removed)
}

// Empty reports whether the transaction has written nothing.
func (w *WriteBuffer) Empty() bool {
	return w.Len() == 0
}

// Overlay layers the buffer over base: (base - removed) + added.
func (w *WriteBuffer) Overlay(base eval.Source) eval.Source {
	return eval.Overlay{Base: base, Added: w.added, Removed: w.removed}
}

// Clear drops all staged changes.
func (w *WriteBuffer) Clear() {
	clear(w.added)
	clear(w.removed)
}

func sortedSet(set map[ir.Statement]struct{}) []ir.Statement {
	out := make([]ir.Statement, 0, len(set))
	for st := range set {
		out = append(out, st)
	}
	ir.SortStatements(out)
	return out
}
