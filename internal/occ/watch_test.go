package occ

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/testutil"
)

func TestWatch_Register(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())

	info, err := s.Watch("painters", testutil.PaintersQuery())
	require.NoError(t, err)
	assert.Equal(t, "painters", info.Name)
	assert.Equal(t, int64(1), info.LastModified)
	assert.Equal(t, ir.WatchTag("painters", 1), info.Tag)
	assert.Zero(t, info.Changes)

	hash, err := pattern.Hash(testutil.PaintersQuery())
	require.NoError(t, err)
	assert.Equal(t, hash, info.Hash)

	got, ok := s.WatchInfo("painters")
	require.True(t, ok)
	assert.Equal(t, info.Tag, got.Tag)

	_, ok = s.WatchInfo("missing")
	assert.False(t, ok)
}

func TestWatch_RejectsBadInput(t *testing.T) {
	s, _ := newTestStore(t, nil)

	_, err := s.Watch("", testutil.PaintersQuery())
	assert.Error(t, err)

	_, err = s.Watch("broken", pattern.Filter{Inner: testutil.PaintersQuery()})
	assert.Error(t, err)
	assert.Empty(t, s.Watches())
}

func TestWatch_TracksChangingCommits(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _ := newTestStore(t, testutil.RembrandtFacts(), WithRegisterer(reg))
	_, err := s.Watch("painters", testutil.PaintersQuery())
	require.NoError(t, err)
	_, err = s.Watch("years", pattern.NewBasic(pattern.FromTerms(nil, testutil.Year, nil, nil)))
	require.NoError(t, err)

	commit := func(add ...ir.Statement) {
		t.Helper()
		tx := begin(t, s)
		addAll(t, tx, add...)
		requireCommit(t, tx)
	}

	commit(testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Jacob))
	commit(testutil.Triple(testutil.Picasso, testutil.Paints, testutil.Guernica))
	commit(testutil.Triple(testutil.Jacob, testutil.Year, ir.Int(1632)))

	painters, _ := s.WatchInfo("painters")
	assert.Equal(t, int64(2), painters.LastModified)
	assert.Equal(t, ir.WatchTag("painters", 2), painters.Tag)
	assert.Equal(t, 1, painters.Changes)

	years, _ := s.WatchInfo("years")
	assert.Equal(t, int64(4), years.LastModified)
	assert.Equal(t, 1, years.Changes)

	assert.Equal(t, float64(1), promtest.ToFloat64(s.metrics.watchNotifications.WithLabelValues("painters")))

	// Removing a painting also changes the result.
	tx := begin(t, s)
	_, err = tx.Remove(context.Background(), pattern.FromTerms(nil, nil, testutil.Jacob, nil))
	require.NoError(t, err)
	requireCommit(t, tx)

	painters, _ = s.WatchInfo("painters")
	assert.Equal(t, int64(5), painters.LastModified)
	assert.Equal(t, 2, painters.Changes)
}

func TestWatch_ReplaceAndUnwatch(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	_, err := s.Watch("q", testutil.PaintersQuery())
	require.NoError(t, err)

	tx := begin(t, s)
	addAll(t, tx, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Jacob))
	requireCommit(t, tx)

	replaced, err := s.Watch("q", testutil.RangeQuery())
	require.NoError(t, err)
	assert.Equal(t, int64(2), replaced.LastModified)
	assert.Zero(t, replaced.Changes)

	names := []string{}
	for _, w := range s.Watches() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"q"}, names)

	assert.True(t, s.Unwatch("q"))
	assert.False(t, s.Unwatch("q"))
	assert.Empty(t, s.Watches())
}

func TestWatch_ConflictedCommitDoesNotNotify(t *testing.T) {
	s, _ := newTestStore(t, testutil.RembrandtFacts())
	_, err := s.Watch("painters", testutil.PaintersQuery())
	require.NoError(t, err)

	loser := begin(t, s)
	txSize(t, loser, nil, testutil.RDFType, testutil.Painter)
	addAll(t, loser, testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Belshazzar))

	winner := begin(t, s)
	addAll(t, winner, testutil.Triple(testutil.Vermeer, testutil.RDFType, testutil.Painter))
	requireCommit(t, winner)
	requireConflict(t, s, loser)

	info, _ := s.WatchInfo("painters")
	assert.Equal(t, int64(1), info.LastModified, "the only commit typed a painter with no paintings")
	assert.Zero(t, info.Changes)
}
