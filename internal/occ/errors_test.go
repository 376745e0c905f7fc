package occ

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/testutil"
)

func TestTxError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TxError
		want string
	}{
		{
			name: "illegal state",
			err:  NewIllegalStateError("tx-1", "commit", StateCommitted),
			want: "ILLEGAL_STATE: cannot commit: transaction is COMMITTED (tx=tx-1)",
		},
		{
			name: "store access",
			err:  NewStoreAccessError("tx-2", "apply", errors.New("disk full")),
			want: "STORE_ACCESS: apply failed (tx=tx-2): disk full",
		},
		{
			name: "no transaction",
			err:  NewStoreAccessError("", "size", errors.New("closed")),
			want: "STORE_ACCESS: size failed: closed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestNewConflictError(t *testing.T) {
	st := testutil.Triple(testutil.Rembrandt, testutil.Paints, testutil.Jacob)
	err := NewConflictError("tx-9", &Conflict{
		Generation: 3,
		Statement:  st,
		Read:       testutil.PaintersQuery(),
	})

	assert.Equal(t, ErrCodeConflict, err.Code)
	assert.Equal(t, int64(3), err.Generation)
	require.NotNil(t, err.Statement)
	assert.Equal(t, st, *err.Statement)
	assert.Equal(t, testutil.PaintersQuery(), err.Pattern)
	assert.Equal(t,
		"CONFLICT: statement <ex:Rembrandt> <ex:paints> <ex:Jacob> added at generation 3 invalidates read "+
			"Basic(?painter <rdf:type> <ex:Painter> . ?painter <ex:paints> ?painting) (tx=tx-9)",
		err.Error())

	removed := NewConflictError("tx-9", &Conflict{Generation: 4, Statement: st, Removed: true, Read: testutil.PaintersQuery()})
	assert.Contains(t, removed.Message, "removed at generation 4")
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	base := NewIllegalStateError("tx-1", "add", StateAborted)
	wrapped := fmt.Errorf("loading batch: %w", base)

	assert.True(t, IsIllegalState(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.False(t, IsStoreAccess(wrapped))
	assert.False(t, IsIllegalState(errors.New("plain")))
	assert.False(t, IsConflict(nil))

	cause := errors.New("boom")
	assert.ErrorIs(t, fmt.Errorf("ctx: %w", NewStoreAccessError("", "x", cause)), cause)
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("a")
	assert.Equal(t, "a", g.Generate())
	assert.PanicsWithValue(t, "occ: FixedGenerator exhausted after 1 ids", func() { g.Generate() })
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ACTIVE", StateActive.String())
	assert.Equal(t, "COMMITTED", StateCommitted.String())
	assert.Equal(t, "ABORTED", StateAborted.String())
	assert.Equal(t, "State(7)", State(7).String())
}
