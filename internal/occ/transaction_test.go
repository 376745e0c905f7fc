package occ

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/store"
	"github.com/roach88/occgraph/internal/testutil"
)

func TestTransaction_SnapshotView(t *testing.T) {
	ctx := context.Background()
	s, fs := newTestStore(t, testutil.RembrandtFacts())
	tx := begin(t, s)
	snapshot := tx.Snapshot()

	// Another transaction commits after tx began.
	other := begin(t, s)
	addAll(t, other, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	requireCommit(t, other)

	vermeer := testutil.Triple(testutil.Vermeer, testutil.RDFType, testutil.Painter)
	addAll(t, tx, vermeer)
	_, err := tx.Remove(ctx, pattern.FromTerms(testutil.Rembrandt, testutil.Paints, testutil.Danae, nil))
	require.NoError(t, err)

	base, err := fs.Match(ctx, snapshot, pattern.Pattern{})
	require.NoError(t, err)
	want := map[ir.Statement]bool{vermeer: true}
	for _, st := range base {
		want[st] = true
	}
	delete(want, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Danae))

	got, err := tx.Statements(ctx, pattern.Pattern{})
	require.NoError(t, err)
	gotSet := map[ir.Statement]bool{}
	for _, st := range got {
		gotSet[st] = true
	}
	assert.Equal(t, want, gotSet)
	assert.NotContains(t, got, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
}

func TestTransaction_AddIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t, nil)
	tx := begin(t, s)
	st := testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter)

	addAll(t, tx, st, st)
	assert.Equal(t, []ir.Statement{st}, tx.Added())
	assert.Equal(t, 1, txSize(t, tx, nil, nil, nil))
}

func TestTransaction_AddRejectsInvalidStatement(t *testing.T) {
	s, _ := newTestStore(t, nil)
	tx := begin(t, s)

	err := tx.Add(ir.Statement{Subject: testutil.Picasso, Predicate: ir.Text("paints"), Object: testutil.Guernica})
	require.Error(t, err)
	assert.Empty(t, tx.Added())
}

func TestTransaction_AddCancelsRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	tx := begin(t, s)
	danae := testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Danae)

	n, err := tx.Remove(ctx, pattern.FromTerms(nil, nil, testutil.Danae, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []ir.Statement{danae}, tx.Removed())

	addAll(t, tx, danae)
	assert.Empty(t, tx.Removed())
	assert.Equal(t, 4, txSize(t, tx, nil, nil, nil))
}

func TestTransaction_RemoveLocallyStagedOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	tx := begin(t, s)
	guernica := testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica)

	addAll(t, tx, guernica)
	n, err := tx.Remove(ctx, pattern.FromTerms(testutil.Picasso, nil, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Never committed, so there is nothing to delete from the store.
	assert.Empty(t, tx.Added())
	assert.Empty(t, tx.Removed())
}

func TestTransaction_RemoveWildcard(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	tx := begin(t, s)

	n, err := tx.Remove(ctx, pattern.FromTerms(testutil.Rembrandt, testutil.Paints, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, tx.Removed(), 3)
	assert.Empty(t, tx.Reads(), "remove does not log a read")

	requireCommit(t, tx)
	assert.Equal(t, 1, totalSize(t, s))
}

func TestTransaction_EvaluateLogsSubstitutedPattern(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	tx := begin(t, s)

	b := pattern.Bindings{"painter": testutil.Rembrandt}
	solutions, err := tx.Evaluate(ctx, testutil.PaintersQuery(), WithBindings(b), WithInferred(true))
	require.NoError(t, err)
	require.Len(t, solutions, 3)
	for _, sol := range solutions {
		assert.Equal(t, testutil.Rembrandt, sol["painter"], "caller bindings are merged into solutions")
	}

	reads := tx.Reads()
	require.Len(t, reads, 1)
	assert.True(t, reads[0].Inferred)
	assert.Equal(t, pattern.Substitute(testutil.PaintersQuery(), b), reads[0].Pattern)
	assert.NotContains(t, pattern.Vars(reads[0].Pattern), "painter")
}

func TestTransaction_ReadLogDeduplicates(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	tx := begin(t, s)

	for i := 0; i < 3; i++ {
		txSize(t, tx, nil, testutil.RDFType, testutil.Painter)
	}
	values(t, tx, testutil.PaintersQuery(), "painting")
	assert.Len(t, tx.Reads(), 2)
}

func TestTransaction_EvaluateRejectsInvalidPattern(t *testing.T) {
	s, _ := newTestStore(t, nil)
	tx := begin(t, s)

	_, err := tx.Evaluate(context.Background(), pattern.Join{Left: testutil.PaintersQuery()})
	require.Error(t, err)
	assert.Empty(t, tx.Reads())
	assert.Equal(t, StateActive, tx.State(), "a failed read does not end the transaction")
}

func TestTransaction_ContextsInView(t *testing.T) {
	ctx := context.Background()
	catalogue := ir.IRI("ex:catalogue")
	s, _ := newTestStore(t, []ir.Statement{
		testutil.Triple(testutil.Rembrandt, testutil.RDFType, testutil.Painter),
	})
	tx := begin(t, s)
	addAll(t, tx, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter).InContext(catalogue))

	all, err := tx.Size(ctx, testutil.TypeOf(testutil.Painter))
	require.NoError(t, err)
	assert.Equal(t, 2, all)

	def, err := tx.Size(ctx, testutil.TypeOf(testutil.Painter).InContext(pattern.DefaultGraph()))
	require.NoError(t, err)
	assert.Equal(t, 1, def)

	named, err := tx.Evaluate(ctx, pattern.NewBasic(testutil.TypeOf(testutil.Painter).InContext(pattern.V("g"))))
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, catalogue, named[0]["g"])
}

func TestTransaction_ReadOnlyCommit(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	genBefore := s.Generation()

	tx := begin(t, s)
	values(t, tx, testutil.PaintersQuery(), "painting")

	// A concurrent commit would conflict with the read, but nothing is
	// written so there is nothing to validate.
	other := begin(t, s)
	addAll(t, other, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Jacob))
	requireCommit(t, other)

	requireCommit(t, tx)
	assert.Equal(t, genBefore+1, s.Generation())
}

func TestTransaction_IllegalState(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	st := testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter)

	committed := begin(t, s)
	addAll(t, committed, st)
	requireCommit(t, committed)

	rolledBack := begin(t, s)
	require.NoError(t, rolledBack.Rollback())
	assert.Equal(t, StateAborted, rolledBack.State())

	closed := begin(t, s)
	require.NoError(t, closed.Close())
	require.NoError(t, closed.Close(), "close is idempotent")

	for name, tx := range map[string]*Transaction{"committed": committed, "rolled back": rolledBack, "closed": closed} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, IsIllegalState(tx.Add(st)))
			_, err := tx.Remove(ctx, pattern.Pattern{})
			assert.True(t, IsIllegalState(err))
			_, err = tx.Size(ctx, pattern.Pattern{})
			assert.True(t, IsIllegalState(err))
			_, err = tx.Evaluate(ctx, testutil.PaintersQuery())
			assert.True(t, IsIllegalState(err))
			_, err = tx.Statements(ctx, pattern.Pattern{})
			assert.True(t, IsIllegalState(err))
			assert.True(t, IsIllegalState(tx.Commit(ctx)))
			assert.True(t, IsIllegalState(tx.Rollback()))
		})
	}
}

func TestTransaction_RollbackNeverTouchesStore(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	tx := begin(t, s)
	addAll(t, tx, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	_, err := tx.Remove(context.Background(), pattern.Pattern{})
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, 4, totalSize(t, s))
	assert.Equal(t, int64(1), s.Generation())
	assert.Empty(t, tx.Added())
	assert.Empty(t, tx.Removed())
	assert.Empty(t, tx.Reads())
}

// failingStore wraps a FactStore and fails chosen operations.
type failingStore struct {
	store.FactStore
	failMatch bool
	failApply bool
}

var errDisk = errors.New("disk I/O error")

func (f *failingStore) Match(ctx context.Context, gen int64, p pattern.Pattern) ([]ir.Statement, error) {
	if f.failMatch {
		return nil, errDisk
	}
	return f.FactStore.Match(ctx, gen, p)
}

func (f *failingStore) Apply(ctx context.Context, added, removed []ir.Statement) (int64, error) {
	if f.failApply {
		return 0, errDisk
	}
	return f.FactStore.Apply(ctx, added, removed)
}

func newFailingStore(t *testing.T) (*Store, *failingStore) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	_, err := mem.Apply(ctx, testutil.RembrandtFacts(), nil)
	require.NoError(t, err)

	fs := &failingStore{FactStore: mem}
	s, err := New(ctx, fs)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s, fs
}

func TestStoreAccessError_Read(t *testing.T) {
	s, fs := newFailingStore(t)
	tx := begin(t, s)

	fs.failMatch = true
	_, err := tx.Evaluate(context.Background(), testutil.PaintersQuery())
	require.Error(t, err)
	assert.True(t, IsStoreAccess(err))
	assert.ErrorIs(t, err, errDisk)

	// The read error does not poison the transaction.
	fs.failMatch = false
	assert.Equal(t, StateActive, tx.State())
	assert.Len(t, values(t, tx, testutil.PaintersQuery(), "painting"), 3)
}

func TestStoreAccessError_Apply(t *testing.T) {
	s, fs := newFailingStore(t)
	tx := begin(t, s)
	addAll(t, tx, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))

	fs.failApply = true
	err := tx.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, IsStoreAccess(err))
	assert.ErrorIs(t, err, errDisk)
	assert.Equal(t, StateAborted, tx.State())

	fs.failApply = false
	assert.Equal(t, int64(1), s.Generation())
	assert.Equal(t, 4, totalSize(t, s))
	assert.Zero(t, s.RetainedDeltas())
}

func TestStoreAccessError_Validate(t *testing.T) {
	s, fs := newFailingStore(t)
	a, b := begin(t, s), begin(t, s)

	values(t, b, testutil.PaintersQuery(), "painting")
	addAll(t, b, testutil.Triple(testutil.Danae, testutil.RDFType, testutil.Painting))
	addAll(t, a, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Jacob))
	requireCommit(t, a)

	fs.failMatch = true
	err := b.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, IsStoreAccess(err))
	assert.False(t, IsConflict(err))
}
