package occ

import (
	"context"
	"time"

	"github.com/roach88/occgraph/internal/pattern"
)

// commit validates tx against deltas newer than its snapshot and applies
// its write buffer as one generation. The caller holds tx.mu and has
// checked that the buffer is non-empty.
func (s *Store) commit(ctx context.Context, tx *Transaction) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &TxError{Code: ErrCodeIllegalState, Message: "store is shut down", TxID: tx.id}
	}
	deltas := s.deltas.since(tx.snapshot)
	s.mu.Unlock()

	if tx.isolation == IsolationSerializable {
		start := time.Now()
		conflict, err := s.validator.Validate(ctx, tx.snapshot, tx.reads.Entries(), deltas)
		s.metrics.validationDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.commits.WithLabelValues(outcomeError).Inc()
			s.logger.Error("validation failed", "tx", tx.id, "error", err)
			return NewStoreAccessError(tx.id, "validate", err)
		}
		if conflict != nil {
			s.metrics.commits.WithLabelValues(outcomeConflict).Inc()
			txErr := NewConflictError(tx.id, conflict)
			readHash, _ := pattern.Hash(conflict.Read)
			s.logger.Info("commit conflict",
				"tx", tx.id,
				"snapshot", tx.snapshot,
				"generation", conflict.Generation,
				"statement", conflict.Statement.String(),
				"removed", conflict.Removed,
				"read", readHash,
			)
			return txErr
		}
	}

	added, removed := tx.buf.Added(), tx.buf.Removed()
	gen, err := s.fs.Apply(ctx, added, removed)
	if err != nil {
		s.metrics.commits.WithLabelValues(outcomeError).Inc()
		s.logger.Error("apply failed", "tx", tx.id, "error", err)
		return NewStoreAccessError(tx.id, "apply", err)
	}
	d := Delta{Generation: gen, Added: added, Removed: removed}

	s.mu.Lock()
	s.gen = gen
	s.deltas.publish(d)
	s.pruneLocked()
	s.mu.Unlock()

	s.metrics.commits.WithLabelValues(outcomeCommitted).Inc()
	s.logger.Debug("commit accepted",
		"tx", tx.id,
		"generation", gen,
		"added", len(added),
		"removed", len(removed),
		"deltas_checked", len(deltas),
	)

	s.notifyWatches(ctx, d)
	return nil
}
