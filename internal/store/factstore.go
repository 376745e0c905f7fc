package store

import (
	"context"
	"errors"

	"github.com/roach88/occgraph/internal/eval"
	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// ErrCompacted is returned when a read targets a generation whose history
// has been discarded by Compact.
var ErrCompacted = errors.New("generation compacted")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// FactStore holds committed statements and answers pattern matches
// against any retained generation. Implementations are safe for
// concurrent readers; Apply is single-writer and atomic.
type FactStore interface {
	// Generation returns the latest committed generation (0 when empty).
	Generation(ctx context.Context) (int64, error)

	// Match returns the statements visible at gen whose Const slots equal
	// the pattern's. Results are sorted with ir.SortStatements.
	Match(ctx context.Context, gen int64, p pattern.Pattern) ([]ir.Statement, error)

	// Apply removes and adds statements as one new generation and returns
	// it. Adding a live statement or removing an absent one is a no-op for
	// that statement. On error nothing is applied.
	Apply(ctx context.Context, added, removed []ir.Statement) (int64, error)

	// Count returns the number of statements visible at gen.
	Count(ctx context.Context, gen int64) (int64, error)

	// Compact discards versions invisible at every generation >= before.
	Compact(ctx context.Context, before int64) error

	// Commits returns the per-generation commit log, oldest first.
	Commits(ctx context.Context) ([]CommitRecord, error)

	Close() error
}

// CommitRecord summarizes one applied generation.
type CommitRecord struct {
	Generation int64 `json:"generation"`
	Added      int   `json:"added"`
	Removed    int   `json:"removed"`
}

// At pins a FactStore to a generation as an eval.Source.
func At(fs FactStore, gen int64) eval.Source {
	return eval.SourceFunc(func(ctx context.Context, p pattern.Pattern) ([]ir.Statement, error) {
		return fs.Match(ctx, gen, p)
	})
}

func validateBatch(added, removed []ir.Statement) error {
	for _, st := range added {
		if err := st.Validate(); err != nil {
			return err
		}
	}
	for _, st := range removed {
		if err := st.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// visible reports whether a version is part of the view at gen.
func visible(addedGen, removedGen, gen int64) bool {
	return addedGen <= gen && (removedGen == 0 || removedGen > gen)
}
