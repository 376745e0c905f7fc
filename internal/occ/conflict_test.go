package occ

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/testutil"
)

// requireConflict commits tx, expects a conflict, and checks that the
// store's size and generation did not move.
func requireConflict(t *testing.T, s *Store, tx *Transaction) *TxError {
	t.Helper()
	sizeBefore, genBefore := totalSize(t, s), s.Generation()

	err := tx.Commit(context.Background())
	require.Error(t, err)
	require.True(t, IsConflict(err), "expected conflict, got %v", err)
	assert.Equal(t, StateAborted, tx.State())

	assert.Equal(t, sizeBefore, totalSize(t, s), "failed commit changed store size")
	assert.Equal(t, genBefore, s.Generation(), "failed commit advanced generation")

	var te *TxError
	require.ErrorAs(t, err, &te)
	return te
}

func requireCommit(t *testing.T, tx *Transaction) {
	t.Helper()
	require.NoError(t, tx.Commit(context.Background()))
	assert.Equal(t, StateCommitted, tx.State())
}

func TestDisjointIndependence(t *testing.T) {
	s, _ := newTestStore(t, nil)
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	addAll(t, b, testutil.Triple(testutil.Rembrandt, testutil.RDFType, testutil.Painter))
	assert.Equal(t, 1, txSize(t, a, testutil.Picasso, testutil.RDFType, testutil.Painter))
	assert.Equal(t, 1, txSize(t, b, testutil.Rembrandt, testutil.RDFType, testutil.Painter))

	requireCommit(t, a)
	requireCommit(t, b)

	assert.Equal(t, 2, totalSize(t, s))
	assert.Equal(t, int64(2), s.Generation())
}

func TestReadGatedConflict(t *testing.T) {
	s, _ := newTestStore(t, nil)
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	addAll(t, b, testutil.Triple(testutil.Rembrandt, testutil.RDFType, testutil.Painter))
	assert.Equal(t, 1, txSize(t, b, nil, testutil.RDFType, testutil.Painter))

	requireCommit(t, a)
	te := requireConflict(t, s, b)

	assert.Equal(t, b.ID(), te.TxID)
	require.NotNil(t, te.Statement)
	assert.Equal(t, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter), *te.Statement)
	assert.Equal(t, 1, totalSize(t, s))
}

func TestNoReadNoConflict(t *testing.T) {
	s, _ := newTestStore(t, nil)
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	addAll(t, b, testutil.Triple(testutil.Rembrandt, testutil.RDFType, testutil.Painter))

	requireCommit(t, a)
	requireCommit(t, b)

	n, err := s.Size(context.Background(), testutil.TypeOf(testutil.Painter))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReadAfterOtherCommitStillSeesSnapshot(t *testing.T) {
	s, _ := newTestStore(t, nil)
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	addAll(t, b, testutil.Triple(testutil.Rembrandt, testutil.RDFType, testutil.Painter))
	assert.Equal(t, 1, txSize(t, a, nil, testutil.RDFType, testutil.Painter))

	requireCommit(t, a)
	// b's snapshot predates a's commit.
	assert.Equal(t, 1, txSize(t, b, nil, testutil.RDFType, testutil.Painter))
	requireConflict(t, s, b)
}

func TestSafeJoin(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	a, b := begin(t, s), begin(t, s)

	// Picasso is not a known painter.
	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica), testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Jacqueline))
	paintings := values(t, b, testutil.PaintersQuery(), "painting")
	require.Len(t, paintings, 3)
	markPaintings(t, b, paintings)

	requireCommit(t, a)
	requireCommit(t, b)
	assert.Equal(t, 9, totalSize(t, s))
}

func TestConflictingJoin(t *testing.T) {
	seed := append(testutil.RembrandtFacts(), testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	s, _ := newTestStore(t, seed)
	a, b := begin(t, s), begin(t, s)

	// Picasso is a known painter, so his new paintings join.
	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica), testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Jacqueline))
	paintings := values(t, b, testutil.PaintersQuery(), "painting")
	require.Len(t, paintings, 3)
	markPaintings(t, b, paintings)

	requireCommit(t, a)
	te := requireConflict(t, s, b)
	assert.Equal(t, testutil.Paints, te.Statement.Predicate)
	assert.Equal(t, 7, totalSize(t, s))

	n, err := s.Size(context.Background(), testutil.TypeOf(testutil.Painting))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJoinUnderSnapshotIsolationMerges(t *testing.T) {
	seed := append(testutil.RembrandtFacts(), testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	s, _ := newTestStore(t, seed, WithIsolation(IsolationSnapshot))
	a, b := begin(t, s), begin(t, s)
	assert.Equal(t, IsolationSnapshot, b.Isolation())

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica), testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Jacqueline))
	markPaintings(t, b, values(t, b, testutil.PaintersQuery(), "painting"))

	requireCommit(t, a)
	assert.Equal(t, 3, txSize(t, b, testutil.Rembrandt, testutil.Paints, nil))
	requireCommit(t, b)

	n, err := s.Size(context.Background(), testutil.TypeOf(testutil.Painting))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSafeOptional(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica), testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Jacqueline))
	paintings := values(t, b, optionalPaintsQuery(), "painting")
	require.Len(t, paintings, 3)
	markPaintings(t, b, paintings)

	requireCommit(t, a)
	requireCommit(t, b)
	assert.Equal(t, 9, totalSize(t, s))
}

func TestConflictingOptional(t *testing.T) {
	seed := append(testutil.RembrandtFacts(), testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	s, _ := newTestStore(t, seed)
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica), testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Jacqueline))
	solutions, err := b.Evaluate(context.Background(), optionalPaintsQuery())
	require.NoError(t, err)
	// Picasso appears once, without a painting.
	require.Len(t, solutions, 4)
	markPaintings(t, b, values(t, b, optionalPaintsQuery(), "painting"))

	requireCommit(t, a)
	requireConflict(t, s, b)
	assert.Equal(t, 7, totalSize(t, s))
}

func TestSafeFilter(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	a, b := begin(t, s), begin(t, s)

	addAll(t, a,
		testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter),
		testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica),
		testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Jacqueline),
	)
	paintings := values(t, b, regexPaintersQuery(), "painting")
	require.Len(t, paintings, 3)
	markPaintings(t, b, paintings)

	requireCommit(t, a)
	requireCommit(t, b)
	assert.Equal(t, 10, totalSize(t, s))
}

func TestOptionalFilterConflictsOnIdenticalWrites(t *testing.T) {
	seed := append(testutil.RembrandtFacts(),
		testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter),
		testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica),
		testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Jacqueline),
	)
	s, _ := newTestStore(t, seed)
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Guernica, testutil.RDFType, testutil.Painting), testutil.Triple(testutil.Jacqueline, testutil.RDFType, testutil.Painting))
	paintings := values(t, b, testutil.UntypedPaintingsQuery(), "painting")
	require.Len(t, paintings, 5)
	markPaintings(t, b, paintings)

	requireCommit(t, a)
	// b staged the same typings, but Guernica and Jacqueline are no longer
	// untyped, so the list b read is stale.
	te := requireConflict(t, s, b)
	assert.Equal(t, testutil.RDFType, te.Statement.Predicate)
	assert.Equal(t, 9, totalSize(t, s))
}

func TestOptionalFilterConflictsOnTyping(t *testing.T) {
	seed := append(testutil.RembrandtFacts(),
		testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter),
		testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica),
	)
	s, _ := newTestStore(t, seed)
	a, b := begin(t, s), begin(t, s)

	// a types Guernica differently, removing it from b's untyped list.
	addAll(t, a, testutil.Triple(testutil.Guernica, testutil.RDFType, ir.IRI("ex:Mural")))
	paintings := values(t, b, testutil.UntypedPaintingsQuery(), "painting")
	require.Len(t, paintings, 4)
	markPaintings(t, b, paintings)

	requireCommit(t, a)
	requireConflict(t, s, b)
}

// conflictRangeSeed is RangeFacts with Belshazzar swapped for the
// Night Watch.
func conflictRangeSeed() []ir.Statement {
	var out []ir.Statement
	for _, st := range testutil.RangeFacts() {
		if st.Subject == testutil.Belshazzar || st.Object == testutil.Belshazzar {
			continue
		}
		out = append(out, st)
	}
	return append(out,
		testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.NightWatch),
		testutil.Triple(testutil.NightWatch, testutil.Year, ir.Int(1642)),
	)
}

func TestSafeRange(t *testing.T) {
	s, _ := newTestStore(t, testutil.RangeFacts())
	a, b := begin(t, s), begin(t, s)

	paintings := values(t, b, testutil.RangeQuery(), "painting")
	require.Len(t, paintings, 4)
	for _, p := range paintings {
		addAll(t, b, testutil.Triple(p, testutil.Period, ir.NewText("First Amsterdam period")))
	}
	addAll(t, a, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.NightWatch), testutil.Triple(testutil.NightWatch, testutil.Year, ir.Int(1642)))

	requireCommit(t, a)
	requireCommit(t, b)
	assert.Equal(t, 17, totalSize(t, s))
}

func TestConflictingRange(t *testing.T) {
	s, _ := newTestStore(t, conflictRangeSeed())
	require.Equal(t, 11, totalSize(t, s))
	a, b := begin(t, s), begin(t, s)

	paintings := values(t, b, testutil.RangeQuery(), "painting")
	require.Len(t, paintings, 3)
	for _, p := range paintings {
		addAll(t, b, testutil.Triple(p, testutil.Period, ir.NewText("First Amsterdam period")))
	}
	// Both facts arrive in one commit; together they add a solution.
	addAll(t, a, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Belshazzar), testutil.Triple(testutil.Belshazzar, testutil.Year, ir.Int(1635)))

	requireCommit(t, a)
	requireConflict(t, s, b)
	assert.Equal(t, 13, totalSize(t, s))
}

func TestFilterExclusion(t *testing.T) {
	tests := []struct {
		name     string
		year     int64
		conflict bool
	}{
		{"before range", 1630, false},
		{"lower bound", 1631, true},
		{"inside range", 1633, true},
		{"upper bound", 1635, true},
		{"after range", 1642, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The Night Watch is painted but undated at the snapshot.
			seed := append(testutil.RangeFacts(), testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.NightWatch))
			s, _ := newTestStore(t, seed)
			a, b := begin(t, s), begin(t, s)

			require.Len(t, values(t, b, testutil.RangeQuery(), "painting"), 4)
			addAll(t, b, testutil.Triple(testutil.Rembrandt, testutil.Period, ir.NewText("Amsterdam")))
			addAll(t, a, testutil.Triple(testutil.NightWatch, testutil.Year, ir.Int(tt.year)))

			requireCommit(t, a)
			if tt.conflict {
				requireConflict(t, s, b)
			} else {
				requireCommit(t, b)
			}
		})
	}
}

func TestRemovedStatementConflicts(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	a, b := begin(t, s), begin(t, s)

	danae := testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Danae)
	n, err := a.Remove(context.Background(), pattern.FromTerms(testutil.Rembrandt, testutil.Paints, testutil.Danae, nil))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	markPaintings(t, b, values(t, b, testutil.PaintersQuery(), "painting"))

	requireCommit(t, a)
	te := requireConflict(t, s, b)
	assert.Equal(t, danae, *te.Statement)
	assert.Contains(t, te.Message, "removed")
}

func TestRemovedStatementOutsideReadIsSafe(t *testing.T) {
	seed := append(testutil.RembrandtFacts(), testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica))
	s, _ := newTestStore(t, seed)
	a, b := begin(t, s), begin(t, s)

	// Picasso is untyped, so his painting never joined b's read.
	_, err := a.Remove(context.Background(), pattern.FromTerms(testutil.Picasso, testutil.Paints, nil, nil))
	require.NoError(t, err)
	markPaintings(t, b, values(t, b, testutil.PaintersQuery(), "painting"))

	requireCommit(t, a)
	requireCommit(t, b)
	assert.Equal(t, 7, totalSize(t, s))
}

func TestIdenticalRemovalConflicts(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	a, b := begin(t, s), begin(t, s)
	danae := testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Danae)
	match := pattern.FromTerms(testutil.Rembrandt, testutil.Paints, testutil.Danae, nil)

	_, err := a.Remove(context.Background(), match)
	require.NoError(t, err)
	require.Contains(t, values(t, b, testutil.PaintersQuery(), "painting"), ir.Term(testutil.Danae))
	_, err = b.Remove(context.Background(), match)
	require.NoError(t, err)

	requireCommit(t, a)
	// Danae was part of a solution b read; b's own removal does not hide that.
	te := requireConflict(t, s, b)
	assert.Equal(t, danae, *te.Statement)
	assert.Equal(t, 3, totalSize(t, s))
}

func TestOwnLaterWritesDoNotConflict(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	a, b := begin(t, s), begin(t, s)

	require.Len(t, values(t, b, testutil.PaintersQuery(), "painting"), 3)
	// Typed only after the read and only in b's buffer.
	addAll(t, b, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica))

	requireCommit(t, a)
	requireCommit(t, b)
	assert.Equal(t, 6, totalSize(t, s))
}

func TestWriteSkewAllowedUnderSnapshotIsolation(t *testing.T) {
	s, _ := newTestStore(t, nil, WithIsolation(IsolationSnapshot))
	a, b := begin(t, s), begin(t, s)

	addAll(t, a, testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter))
	addAll(t, b, testutil.Triple(testutil.Rembrandt, testutil.RDFType, testutil.Painter))
	assert.Equal(t, 1, txSize(t, b, nil, testutil.RDFType, testutil.Painter))

	requireCommit(t, a)
	requireCommit(t, b)
	assert.Equal(t, 2, totalSize(t, s))
}

func TestFirstCommitterWins(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	a, b := begin(t, s), begin(t, s)

	for _, tx := range []*Transaction{a, b} {
		require.Len(t, values(t, tx, testutil.PaintersQuery(), "painting"), 3)
	}
	addAll(t, a, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Anatomy), testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Belshazzar))
	addAll(t, b, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Jacob))

	requireCommit(t, b)
	requireConflict(t, s, a)

	// A retry on a fresh snapshot succeeds.
	retry := begin(t, s)
	require.Len(t, values(t, retry, testutil.PaintersQuery(), "painting"), 4)
	addAll(t, retry, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Belshazzar))
	requireCommit(t, retry)
	assert.Equal(t, 6, totalSize(t, s))
}
