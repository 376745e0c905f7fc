// Package occ implements optimistic concurrency control over a FactStore.
//
// A Store hands out transactions pinned to the generation that was current
// when they began. Each transaction stages its writes in a WriteBuffer and
// logs every graph pattern it evaluates in a ReadLog. Reads see the
// snapshot with the transaction's own writes layered on top and never
// block on other transactions.
//
// Commit is the only serialization point. Under the store's commit lock
// the Validator checks the ReadLog against every Delta committed since the
// snapshot. A read is invalidated when an added or removed statement,
// bound into one of the read's leaf patterns, leaves a residual pattern
// with at least one solution: the statement would have changed the answer
// the transaction saw. Residuals are evaluated over committed state only,
// and a statement the transaction staged itself is still checked. The
// first committer wins; the loser gets a
// CONFLICT TxError and the FactStore is untouched.
//
// Deltas are kept only while an open transaction's snapshot predates them.
package occ
