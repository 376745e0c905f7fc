package compiler

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE []byte

// LoadFile reads a query document (.cue, .json, .yaml or .yml) and
// compiles every query under its top-level "query" struct, in name order.
func LoadFile(path string) ([]*Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	return CompileSource(path, data)
}

// CompileSource compiles a query document. The filename extension selects
// the syntax; JSON is read as CUE.
func CompileSource(filename string, data []byte) ([]*Query, error) {
	ctx := cuecontext.New()

	var doc cue.Value
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc = ctx.BuildFile(f)
	case ".cue", ".json", "":
		doc = ctx.CompileBytes(data, cue.Filename(filename))
	default:
		return nil, fmt.Errorf("unsupported query file type %q", filepath.Ext(filename))
	}
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	v := schema.Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	queriesVal := v.LookupPath(cue.ParsePath("query"))
	if !queriesVal.Exists() {
		return nil, &CompileError{Field: "query", Message: "no queries found", Pos: doc.Pos()}
	}
	iter, err := queriesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*Query
	for iter.Next() {
		q, err := CompileQuery(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, &CompileError{Field: "query", Message: "no queries found", Pos: queriesVal.Pos()}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Find returns the query with the given name.
func Find(queries []*Query, name string) (*Query, error) {
	for _, q := range queries {
		if q.Name == name {
			return q, nil
		}
	}
	return nil, fmt.Errorf("query %q not found", name)
}
