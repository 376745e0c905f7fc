package occ

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/occgraph/internal/eval"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/store"
)

// Isolation selects how much a commit validates.
type Isolation string

const (
	// IsolationSerializable validates every logged read at commit.
	IsolationSerializable Isolation = "serializable"

	// IsolationSnapshot keeps the snapshot read view but skips read
	// validation, so write skew is possible.
	IsolationSnapshot Isolation = "snapshot"
)

// ParseIsolation converts a configuration string to an Isolation.
func ParseIsolation(s string) (Isolation, error) {
	switch Isolation(s) {
	case IsolationSerializable, "":
		return IsolationSerializable, nil
	case IsolationSnapshot:
		return IsolationSnapshot, nil
	}
	return "", fmt.Errorf("unknown isolation level %q", s)
}

// Store coordinates transactions over one FactStore.
//
// The generation, the set of open snapshots, the Delta registry and the
// watches are instance state; independent Stores share nothing.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	fs        store.FactStore
	logger    *slog.Logger
	ids       IDGenerator
	isolation Isolation
	metrics   *metrics
	validator *Validator

	// commitMu is the commit critical section: validate, apply, publish.
	commitMu sync.Mutex

	// mu guards the fields below. Never held while calling the FactStore.
	mu      sync.Mutex
	gen     int64
	open    map[*Transaction]struct{}
	deltas  deltaRegistry
	watches map[string]*WatchInfo
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithIDGenerator sets the transaction ID source.
// Default: UUIDv7Generator. Use NewFixedGenerator for golden tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithRegisterer registers the store's metrics with reg.
// Default: a private registry, so metrics are collected but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.metrics = newMetrics(reg)
	}
}

// WithIsolation sets the isolation level for new transactions.
// Default: IsolationSerializable.
func WithIsolation(iso Isolation) Option {
	return func(s *Store) {
		s.isolation = iso
	}
}

// New creates a Store over fs, starting at fs's current generation.
// The caller keeps ownership of fs and closes it after Shutdown.
func New(ctx context.Context, fs store.FactStore, opts ...Option) (*Store, error) {
	s := &Store{
		fs:        fs,
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
		isolation: IsolationSerializable,
		validator: NewValidator(fs),
		open:      map[*Transaction]struct{}{},
		watches:   map[string]*WatchInfo{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newMetrics(prometheus.NewRegistry())
	}

	gen, err := fs.Generation(ctx)
	if err != nil {
		return nil, NewStoreAccessError("", "read generation", err)
	}
	s.gen = gen
	return s, nil
}

// Begin opens a transaction on the current generation.
func (s *Store) Begin(ctx context.Context) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := s.ids.Generate()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &TxError{Code: ErrCodeIllegalState, Message: "store is shut down", TxID: id}
	}
	tx := &Transaction{
		store:     s,
		id:        id,
		snapshot:  s.gen,
		isolation: s.isolation,
		state:     StateActive,
		buf:       newWriteBuffer(),
		reads:     newReadLog(),
	}
	s.open[tx] = struct{}{}
	s.metrics.openTransactions.Set(float64(len(s.open)))
	s.mu.Unlock()

	s.logger.Debug("transaction begun", "tx", tx.id, "snapshot", tx.snapshot)
	return tx, nil
}

// Generation returns the latest generation committed through this Store.
func (s *Store) Generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Size counts statements matching p at the latest generation, outside any
// transaction. Nothing is logged.
func (s *Store) Size(ctx context.Context, p pattern.Pattern) (int, error) {
	gen := s.Generation()
	stmts, err := s.fs.Match(ctx, gen, p)
	if err != nil {
		return 0, NewStoreAccessError("", "size", err)
	}
	return len(stmts), nil
}

// Evaluate runs gp at the latest generation, outside any transaction.
func (s *Store) Evaluate(ctx context.Context, gp pattern.GraphPattern) ([]pattern.Bindings, error) {
	if err := pattern.Validate(gp); err != nil {
		return nil, fmt.Errorf("invalid graph pattern: %w", err)
	}
	out, err := eval.Evaluate(ctx, store.At(s.fs, s.Generation()), gp)
	if err != nil {
		return nil, NewStoreAccessError("", "evaluate", err)
	}
	return out, nil
}

// RetainedDeltas returns the number of deltas held for open snapshots.
func (s *Store) RetainedDeltas() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deltas.len()
}

// OpenTransactions returns the number of transactions not yet finished.
func (s *Store) OpenTransactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Compact discards FactStore history no open snapshot can read.
func (s *Store) Compact(ctx context.Context) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	oldest := s.oldestSnapshotLocked()
	s.mu.Unlock()

	if err := s.fs.Compact(ctx, oldest); err != nil {
		return NewStoreAccessError("", "compact", err)
	}
	s.logger.Debug("fact store compacted", "before", oldest)
	return nil
}

// Shutdown rejects further Begin calls and aborts every open transaction.
// Their later operations fail with ILLEGAL_STATE. The FactStore is left
// open for its owner to close.
func (s *Store) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	open := make([]*Transaction, 0, len(s.open))
	for tx := range s.open {
		open = append(open, tx)
	}
	s.open = map[*Transaction]struct{}{}
	s.deltas.clear()
	s.metrics.openTransactions.Set(0)
	s.metrics.retainedDeltas.Set(0)
	s.mu.Unlock()

	for _, tx := range open {
		tx.abort()
	}
	s.logger.Debug("store shut down", "aborted", len(open))
}

// finish removes a completed transaction and prunes deltas it was
// holding back.
func (s *Store) finish(tx *Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[tx]; !ok {
		return
	}
	delete(s.open, tx)
	s.pruneLocked()
	s.metrics.openTransactions.Set(float64(len(s.open)))
}

// oldestSnapshotLocked returns the oldest open snapshot, or the current
// generation when nothing is open.
func (s *Store) oldestSnapshotLocked() int64 {
	oldest := s.gen
	for tx := range s.open {
		if tx.snapshot < oldest {
			oldest = tx.snapshot
		}
	}
	return oldest
}

func (s *Store) pruneLocked() {
	if n := s.deltas.prune(s.oldestSnapshotLocked()); n > 0 {
		s.logger.Debug("deltas pruned", "count", n, "retained", s.deltas.len())
	}
	s.metrics.retainedDeltas.Set(float64(s.deltas.len()))
}

func sortedWatchNames(watches map[string]*WatchInfo) []string {
	names := make([]string, 0, len(watches))
	for name := range watches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
