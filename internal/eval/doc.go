// Package eval evaluates graph patterns bottom-up over a Source.
//
// A Source answers single-pattern matches at a fixed point in time. The
// store packages provide sources pinned to a generation; Overlay layers a
// transaction's pending writes on top of one, giving the view
// (base - removed) ∪ added that every transaction read observes.
//
// Results are materialized slices of pattern.Bindings with bag semantics:
// duplicates produced by Union or Projection are kept.
package eval
