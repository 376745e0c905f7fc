package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/testutil"
)

// backends runs fn against every FactStore implementation.
func backends(t *testing.T, fn func(t *testing.T, fs FactStore)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fs := NewMemoryStore()
		t.Cleanup(func() { _ = fs.Close() })
		fn(t, fs)
	})
	t.Run("sqlite", func(t *testing.T) {
		fs, err := Open(filepath.Join(t.TempDir(), "facts.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = fs.Close() })
		fn(t, fs)
	})
}

func TestFactStore_EmptyStartsAtGenerationZero(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()

		gen, err := fs.Generation(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), gen)

		n, err := fs.Count(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		commits, err := fs.Commits(ctx)
		require.NoError(t, err)
		assert.Empty(t, commits)
	})
}

func TestFactStore_ApplyAdvancesGeneration(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()

		gen, err := fs.Apply(ctx, testutil.RembrandtFacts(), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gen)

		n, err := fs.Count(ctx, gen)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		gen, err = fs.Apply(ctx, nil, []ir.Statement{testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Danae)})
		require.NoError(t, err)
		assert.Equal(t, int64(2), gen)

		commits, err := fs.Commits(ctx)
		require.NoError(t, err)
		assert.Equal(t, []CommitRecord{
			{Generation: 1, Added: 4},
			{Generation: 2, Removed: 1},
		}, commits)
	})
}

func TestFactStore_OldGenerationsStayVisible(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		danae := testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Danae)
		guernica := testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica)

		g1, err := fs.Apply(ctx, testutil.RembrandtFacts(), nil)
		require.NoError(t, err)
		g2, err := fs.Apply(ctx, []ir.Statement{guernica}, []ir.Statement{danae})
		require.NoError(t, err)

		paints := pattern.FromTerms(nil, testutil.Paints, nil, nil)

		at1, err := fs.Match(ctx, g1, paints)
		require.NoError(t, err)
		assert.Contains(t, at1, danae)
		assert.NotContains(t, at1, guernica)

		at2, err := fs.Match(ctx, g2, paints)
		require.NoError(t, err)
		assert.NotContains(t, at2, danae)
		assert.Contains(t, at2, guernica)

		at0, err := fs.Match(ctx, 0, paints)
		require.NoError(t, err)
		assert.Empty(t, at0)
	})
}

func TestFactStore_ReaddAfterRemove(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		st := testutil.Triple(testutil.Vermeer, testutil.RDFType, testutil.Painter)

		g1, err := fs.Apply(ctx, []ir.Statement{st}, nil)
		require.NoError(t, err)
		g2, err := fs.Apply(ctx, nil, []ir.Statement{st})
		require.NoError(t, err)
		g3, err := fs.Apply(ctx, []ir.Statement{st}, nil)
		require.NoError(t, err)

		for gen, want := range map[int64]int64{g1: 1, g2: 0, g3: 1} {
			n, err := fs.Count(ctx, gen)
			require.NoError(t, err)
			assert.Equal(t, want, n, "generation %d", gen)
		}
	})
}

func TestFactStore_ApplyIgnoresDuplicatesAndAbsent(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		facts := testutil.RembrandtFacts()

		_, err := fs.Apply(ctx, facts, nil)
		require.NoError(t, err)

		// Re-adding live statements and removing absent ones changes nothing.
		absent := testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica)
		gen, err := fs.Apply(ctx, facts[:2], []ir.Statement{absent})
		require.NoError(t, err)

		n, err := fs.Count(ctx, gen)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		commits, err := fs.Commits(ctx)
		require.NoError(t, err)
		require.Len(t, commits, 2)
		assert.Equal(t, CommitRecord{Generation: 2}, commits[1])
	})
}

func TestFactStore_ApplyRejectsInvalidStatement(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		bad := ir.Statement{Subject: ir.Text("not an iri"), Predicate: testutil.RDFType, Object: testutil.Painter}

		_, err := fs.Apply(ctx, append(testutil.RembrandtFacts(), bad), nil)
		require.Error(t, err)

		gen, err := fs.Generation(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), gen, "failed apply must not advance the generation")
	})
}

func TestFactStore_MatchUsesEveryIndex(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		gen, err := fs.Apply(ctx, testutil.RangeFacts(), nil)
		require.NoError(t, err)

		tests := []struct {
			name string
			p    pattern.Pattern
			want int
		}{
			{"subject", pattern.FromTerms(testutil.Rembrandt, nil, nil, nil), 6},
			{"subject predicate", pattern.FromTerms(testutil.Rembrandt, testutil.Paints, nil, nil), 5},
			{"predicate", pattern.FromTerms(nil, testutil.Year, nil, nil), 5},
			{"predicate object", pattern.FromTerms(nil, testutil.Year, ir.Int(1632), nil), 2},
			{"object", pattern.FromTerms(nil, nil, testutil.Painter, nil), 1},
			{"fully bound", pattern.FromTerms(testutil.Jacob, testutil.Year, ir.Int(1632), nil), 1},
			{"fully bound miss", pattern.FromTerms(testutil.Jacob, testutil.Year, ir.Int(1633), nil), 0},
			{"scan", pattern.Pattern{}, 11},
			{"subject object", pattern.FromTerms(testutil.Rembrandt, nil, testutil.Painter, nil), 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := fs.Match(ctx, gen, tt.p)
				require.NoError(t, err)
				assert.Len(t, got, tt.want)
				for _, st := range got {
					assert.True(t, tt.p.Matches(st), "unexpected match %s", st)
				}
			})
		}
	})
}

func TestFactStore_MatchResultsSorted(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		gen, err := fs.Apply(ctx, testutil.RangeFacts(), nil)
		require.NoError(t, err)

		got, err := fs.Match(ctx, gen, pattern.Pattern{})
		require.NoError(t, err)

		want := append([]ir.Statement(nil), got...)
		ir.SortStatements(want)
		assert.Equal(t, want, got)
	})
}

func TestFactStore_Contexts(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		g := ir.IRI("ex:catalogue")
		plain := testutil.Triple(testutil.Vermeer, testutil.RDFType, testutil.Painter)
		named := plain.InContext(g)

		gen, err := fs.Apply(ctx, []ir.Statement{plain, named}, nil)
		require.NoError(t, err)

		n, err := fs.Count(ctx, gen)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, "same triple in two graphs is two statements")

		all, err := fs.Match(ctx, gen, testutil.TypeOf(testutil.Painter))
		require.NoError(t, err)
		assert.Len(t, all, 2)

		def, err := fs.Match(ctx, gen, testutil.TypeOf(testutil.Painter).InContext(pattern.DefaultGraph()))
		require.NoError(t, err)
		assert.Equal(t, []ir.Statement{plain}, def)

		inG, err := fs.Match(ctx, gen, testutil.TypeOf(testutil.Painter).InContext(pattern.C(g)))
		require.NoError(t, err)
		assert.Equal(t, []ir.Statement{named}, inG)

		anyNamed, err := fs.Match(ctx, gen, testutil.TypeOf(testutil.Painter).InContext(pattern.V("g")))
		require.NoError(t, err)
		assert.Equal(t, []ir.Statement{named}, anyNamed)
	})
}

func TestFactStore_TermKindsRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		facts := []ir.Statement{
			testutil.Triple(testutil.NightWatch, ir.IRI("ex:title"), ir.NewText("De Nachtwacht")),
			testutil.Triple(testutil.NightWatch, testutil.Year, ir.Int(1642)),
			testutil.Triple(testutil.NightWatch, ir.IRI("ex:restored"), ir.Bool(true)),
			testutil.Triple(testutil.Danae, testutil.RDFType, testutil.Painting),
		}
		gen, err := fs.Apply(ctx, facts, nil)
		require.NoError(t, err)

		got, err := fs.Match(ctx, gen, pattern.Pattern{})
		require.NoError(t, err)
		assert.ElementsMatch(t, facts, got)

		// Text and IRI with the same lexical form are different terms.
		got, err = fs.Match(ctx, gen, pattern.FromTerms(nil, nil, ir.Text("ex:Painting"), nil))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFactStore_Compact(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		danae := testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Danae)

		g1, err := fs.Apply(ctx, testutil.RembrandtFacts(), nil)
		require.NoError(t, err)
		g2, err := fs.Apply(ctx, nil, []ir.Statement{danae})
		require.NoError(t, err)

		require.NoError(t, fs.Compact(ctx, g2))

		_, err = fs.Match(ctx, g1, pattern.Pattern{})
		assert.ErrorIs(t, err, ErrCompacted)
		_, err = fs.Count(ctx, g1)
		assert.ErrorIs(t, err, ErrCompacted)

		n, err := fs.Count(ctx, g2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		// Compacting to an older horizon is a no-op.
		require.NoError(t, fs.Compact(ctx, g1))
		_, err = fs.Count(ctx, g1)
		assert.ErrorIs(t, err, ErrCompacted)

		// The removed statement can come back after compaction.
		g3, err := fs.Apply(ctx, []ir.Statement{danae}, nil)
		require.NoError(t, err)
		n, err = fs.Count(ctx, g3)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestAt_PinsGeneration(t *testing.T) {
	backends(t, func(t *testing.T, fs FactStore) {
		ctx := context.Background()
		g1, err := fs.Apply(ctx, testutil.RembrandtFacts(), nil)
		require.NoError(t, err)
		_, err = fs.Apply(ctx, []ir.Statement{testutil.Triple(testutil.Picasso, testutil.RDFType, testutil.Painter)}, nil)
		require.NoError(t, err)

		got, err := At(fs, g1).Match(ctx, testutil.TypeOf(testutil.Painter))
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
