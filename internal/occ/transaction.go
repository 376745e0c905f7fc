package occ

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/occgraph/internal/eval"
	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/store"
)

// State is a transaction's lifecycle state.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transaction is a snapshot read view plus private staged writes.
//
// Visible state is always (FactStore@Snapshot - removed) + added. Reads
// are logged for validation at commit.
//
// Thread-safety: methods may be called from several goroutines; they are
// serialized per transaction. Different transactions never block each
// other outside Commit.
type Transaction struct {
	store     *Store
	id        string
	snapshot  int64
	isolation Isolation

	mu    sync.Mutex
	state State
	buf   *WriteBuffer
	reads *ReadLog
}

// ID returns the transaction ID.
func (tx *Transaction) ID() string { return tx.id }

// Snapshot returns the generation the transaction reads.
func (tx *Transaction) Snapshot() int64 { return tx.snapshot }

// Isolation returns the transaction's isolation level.
func (tx *Transaction) Isolation() Isolation { return tx.isolation }

// State returns the lifecycle state.
func (tx *Transaction) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// Add stages a statement for insertion. Adding twice is a no-op.
func (tx *Transaction) Add(st ir.Statement) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkActive("add"); err != nil {
		return err
	}
	tx.buf.Add(st)
	return nil
}

// Remove stages every visible statement matching p for deletion and
// returns how many matched. Statements only staged by this transaction are
// dropped from its added set. Remove does not log a read.
func (tx *Transaction) Remove(ctx context.Context, p pattern.Pattern) (int, error) {
	if err := pattern.ValidateStatementPattern(p); err != nil {
		return 0, fmt.Errorf("remove: %w", err)
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkActive("remove"); err != nil {
		return 0, err
	}

	base := tx.base()
	committed, err := base.Match(ctx, p)
	if err != nil {
		return 0, NewStoreAccessError(tx.id, "remove", err)
	}
	visible, err := tx.buf.Overlay(base).Match(ctx, p)
	if err != nil {
		return 0, NewStoreAccessError(tx.id, "remove", err)
	}

	inBase := make(map[ir.Statement]bool, len(committed))
	for _, st := range committed {
		inBase[st] = true
	}
	for _, st := range visible {
		tx.buf.Remove(st, inBase[st])
	}
	return len(visible), nil
}

// EvalOption configures Evaluate.
type EvalOption func(*evalOptions)

type evalOptions struct {
	bindings pattern.Bindings
	inferred bool
}

// WithBindings fixes variables before evaluation. The bindings are
// substituted into the logged pattern and merged into every solution.
func WithBindings(b pattern.Bindings) EvalOption {
	return func(o *evalOptions) {
		o.bindings = b
	}
}

// WithInferred records that inferred statements were requested. There is
// no reasoner, so results are unchanged; the flag is kept in the ReadLog.
func WithInferred(include bool) EvalOption {
	return func(o *evalOptions) {
		o.inferred = include
	}
}

// Evaluate logs gp and returns its solutions over the transaction's view.
// Results are fully materialized, so the dependency is logged exactly once
// however much of the result the caller uses.
func (tx *Transaction) Evaluate(ctx context.Context, gp pattern.GraphPattern, opts ...EvalOption) ([]pattern.Bindings, error) {
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := pattern.Validate(gp); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkActive("evaluate"); err != nil {
		return nil, err
	}

	bound := pattern.Substitute(gp, o.bindings)
	if _, err := tx.reads.Record(bound, o.inferred); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	solutions, err := eval.Evaluate(ctx, tx.view(), bound)
	if err != nil {
		return nil, NewStoreAccessError(tx.id, "evaluate", err)
	}
	if len(o.bindings) > 0 {
		for i, sol := range solutions {
			solutions[i] = sol.Merge(o.bindings)
		}
	}
	return solutions, nil
}

// Size counts visible statements matching p. The pattern is logged as a
// read.
func (tx *Transaction) Size(ctx context.Context, p pattern.Pattern) (int, error) {
	solutions, err := tx.Evaluate(ctx, pattern.NewBasic(p))
	if err != nil {
		return 0, err
	}
	return len(solutions), nil
}

// Statements returns visible statements matching p in sorted order. The
// pattern is logged as a read.
func (tx *Transaction) Statements(ctx context.Context, p pattern.Pattern) ([]ir.Statement, error) {
	if err := pattern.ValidateStatementPattern(p); err != nil {
		return nil, fmt.Errorf("statements: %w", err)
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkActive("statements"); err != nil {
		return nil, err
	}
	if _, err := tx.reads.Record(pattern.NewBasic(p), false); err != nil {
		return nil, fmt.Errorf("statements: %w", err)
	}

	out, err := tx.view().Match(ctx, p)
	if err != nil {
		return nil, NewStoreAccessError(tx.id, "statements", err)
	}
	ir.SortStatements(out)
	return out, nil
}

// Commit validates and applies the transaction. On a conflict it returns
// a CONFLICT TxError and the transaction ends ABORTED; the FactStore is
// unchanged. A transaction that wrote nothing commits without validation
// and without a new generation.
func (tx *Transaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkActive("commit"); err != nil {
		return err
	}
	defer tx.store.finish(tx)

	if tx.buf.Empty() {
		tx.state = StateCommitted
		tx.store.metrics.commits.WithLabelValues(outcomeReadOnly).Inc()
		tx.store.logger.Debug("read-only commit", "tx", tx.id, "reads", tx.reads.Len())
		return nil
	}

	if err := tx.store.commit(ctx, tx); err != nil {
		tx.state = StateAborted
		tx.discard()
		return err
	}
	tx.state = StateCommitted
	tx.discard()
	return nil
}

// Rollback discards staged writes and logged reads. The store is never
// touched.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkActive("rollback"); err != nil {
		return err
	}
	tx.state = StateAborted
	tx.discard()
	tx.store.finish(tx)
	return nil
}

// Close rolls back an active transaction. Closing a finished transaction
// is a no-op, so Close is safe to defer.
func (tx *Transaction) Close() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != StateActive {
		return nil
	}
	tx.state = StateAborted
	tx.discard()
	tx.store.finish(tx)
	return nil
}

// Added returns the statements staged for insertion.
func (tx *Transaction) Added() []ir.Statement {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.buf.Added()
}

// Removed returns the statements staged for deletion.
func (tx *Transaction) Removed() []ir.Statement {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.buf.Removed()
}

// Reads returns the logged reads.
func (tx *Transaction) Reads() []ReadEntry {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.reads.Entries()
}

// abort is called by Store.Shutdown.
func (tx *Transaction) abort() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state == StateActive {
		tx.state = StateAborted
		tx.discard()
	}
}

func (tx *Transaction) checkActive(op string) error {
	if tx.state != StateActive {
		return NewIllegalStateError(tx.id, op, tx.state)
	}
	return nil
}

func (tx *Transaction) base() eval.Source {
	return store.At(tx.store.fs, tx.snapshot)
}

func (tx *Transaction) view() eval.Source {
	return tx.buf.Overlay(tx.base())
}

func (tx *Transaction) discard() {
	tx.buf.Clear()
	tx.reads.Clear()
}
