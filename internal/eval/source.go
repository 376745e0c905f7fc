package eval

import (
	"context"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// Source answers single statement-pattern matches.
//
// Implementations return statements whose Const slots match; Var and
// Wildcard slots may be treated as unconstrained, since the evaluator
// unifies every returned statement against the pattern again.
type Source interface {
	Match(ctx context.Context, p pattern.Pattern) ([]ir.Statement, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, p pattern.Pattern) ([]ir.Statement, error)

// Match calls f(ctx, p).
func (f SourceFunc) Match(ctx context.Context, p pattern.Pattern) ([]ir.Statement, error) {
	return f(ctx, p)
}

// Statements is a Source over a fixed list of statements.
type Statements []ir.Statement

// Match scans the list.
func (s Statements) Match(ctx context.Context, p pattern.Pattern) ([]ir.Statement, error) {
	var out []ir.Statement
	for _, st := range s {
		if p.Matches(st) {
			out = append(out, st)
		}
	}
	return out, nil
}

// Overlay is the view (Base - Removed) ∪ Added.
type Overlay struct {
	Base    Source
	Added   map[ir.Statement]struct{}
	Removed map[ir.Statement]struct{}
}

// Match queries Base, drops removed statements, and appends added
// statements that Base did not already return.
func (o Overlay) Match(ctx context.Context, p pattern.Pattern) ([]ir.Statement, error) {
	base, err := o.Base.Match(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(o.Added) == 0 && len(o.Removed) == 0 {
		return base, nil
	}

	out := make([]ir.Statement, 0, len(base)+len(o.Added))
	seen := make(map[ir.Statement]struct{}, len(base))
	for _, st := range base {
		if _, removed := o.Removed[st]; removed {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}

	added := make([]ir.Statement, 0, len(o.Added))
	for st := range o.Added {
		if _, dup := seen[st]; dup || !p.Matches(st) {
			continue
		}
		added = append(added, st)
	}
	// Map iteration order is random; keep results deterministic.
	ir.SortStatements(added)
	return append(out, added...), nil
}
