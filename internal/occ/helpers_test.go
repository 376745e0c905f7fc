package occ

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/store"
	"github.com/roach88/occgraph/internal/testutil"
)

// newTestStore seeds a memory FactStore and wraps it in a Store.
func newTestStore(t *testing.T, seed []ir.Statement, opts ...Option) (*Store, store.FactStore) {
	t.Helper()
	ctx := context.Background()

	fs := store.NewMemoryStore()
	t.Cleanup(func() { _ = fs.Close() })
	if len(seed) > 0 {
		_, err := fs.Apply(ctx, seed, nil)
		require.NoError(t, err)
	}

	s, err := New(ctx, fs, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s, fs
}

func begin(t *testing.T, s *Store) *Transaction {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Close() })
	return tx
}

func addAll(t *testing.T, tx *Transaction, stmts ...ir.Statement) {
	t.Helper()
	for _, st := range stmts {
		require.NoError(t, tx.Add(st))
	}
}

func totalSize(t *testing.T, s *Store) int {
	t.Helper()
	n, err := s.Size(context.Background(), pattern.Pattern{})
	require.NoError(t, err)
	return n
}

func txSize(t *testing.T, tx *Transaction, s, p, o ir.Term) int {
	t.Helper()
	n, err := tx.Size(context.Background(), pattern.FromTerms(s, p, o, nil))
	require.NoError(t, err)
	return n
}

// values evaluates gp in tx and returns the non-nil values bound to name.
func values(t *testing.T, tx *Transaction, gp pattern.GraphPattern, name string) []ir.Term {
	t.Helper()
	solutions, err := tx.Evaluate(context.Background(), gp)
	require.NoError(t, err)
	var out []ir.Term
	for _, sol := range solutions {
		if v, ok := sol[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// markPaintings types every value as a Painting inside tx.
func markPaintings(t *testing.T, tx *Transaction, paintings []ir.Term) {
	t.Helper()
	for _, p := range paintings {
		addAll(t, tx, testutil.Triple(p, testutil.RDFType, testutil.Painting))
	}
}

// optionalPaintsQuery is { ?painter a Painter OPTIONAL { ?painter paints ?painting } }.
func optionalPaintsQuery() pattern.GraphPattern {
	return pattern.Optional{
		Left: pattern.NewBasic(
			pattern.New(pattern.V("painter"), pattern.C(testutil.RDFType), pattern.C(testutil.Painter)),
		),
		Right: pattern.NewBasic(
			pattern.New(pattern.V("painter"), pattern.C(testutil.Paints), pattern.V("painting")),
		),
	}
}

// regexPaintersQuery is PaintersQuery filtered to painters matching "rem".
func regexPaintersQuery() pattern.GraphPattern {
	return pattern.Filter{
		Inner: testutil.PaintersQuery(),
		Expr:  pattern.Regex{Arg: pattern.VarRef{Name: "painter"}, Pattern: "(?i)rem"},
	}
}
