package compiler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/testutil"
)

func TestLoadFile_CUE(t *testing.T) {
	qs, err := LoadFile(filepath.Join("testdata", "painters.cue"))
	require.NoError(t, err)
	require.Len(t, qs, 3)

	names := []string{qs[0].Name, qs[1].Name, qs[2].Name}
	assert.Equal(t, []string{"painters", "range", "rembrandt"}, names)

	assert.Equal(t, testutil.PaintersQuery(), qs[0].Pattern)
	assert.Equal(t, testutil.RangeQuery(), qs[1].Pattern)

	rembrandt, err := Find(qs, "rembrandt")
	require.NoError(t, err)
	assert.Equal(t, pattern.Bindings{"painter": testutil.Rembrandt}, rembrandt.Bindings)
	assert.True(t, rembrandt.Inferred)

	_, err = Find(qs, "missing")
	assert.Error(t, err)
}

func TestLoadFile_YAML(t *testing.T) {
	qs, err := LoadFile(filepath.Join("testdata", "untyped.yaml"))
	require.NoError(t, err)
	require.Len(t, qs, 2)

	named, err := Find(qs, "named")
	require.NoError(t, err)
	want := pattern.Projection{
		Vars: []string{"painter"},
		Inner: pattern.NewBasic(
			pattern.New(pattern.V("painter"), pattern.C(testutil.RDFType), pattern.C(testutil.Painter)).InContext(pattern.V("g")),
			pattern.New(pattern.V("painter"), pattern.C(ir.IRI("ex:label")), pattern.C(ir.Text("Rembrandt"))).InContext(pattern.DefaultGraph()),
		),
	}
	assert.Equal(t, want, named.Pattern)

	untyped, err := Find(qs, "untyped")
	require.NoError(t, err)
	assert.Equal(t, testutil.UntypedPaintingsQuery(), untyped.Pattern)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		file    string
		wantErr string
	}{
		{"float.cue", "float"},
		{"missing_where.cue", "where"},
		{"does_not_exist.cue", "reading query file"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := LoadFile(filepath.Join("testdata", tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileSource_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		src      string
		wantErr  string
	}{
		{"no queries", "q.cue", `other: 1`, "no queries found"},
		{"unknown field", "q.cue", `query: q: {where: basic: [], limit: 3}`, "limit"},
		{"bad extension", "q.toml", `query = 1`, "unsupported query file type"},
		{"syntax", "q.cue", `query: {`, "cue"},
		{"yaml syntax", "q.yaml", "query: [\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource(tt.filename, []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
