package occ

import (
	"context"

	"github.com/roach88/occgraph/internal/eval"
	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
	"github.com/roach88/occgraph/internal/store"
)

// Conflict describes the first read a delta invalidated.
type Conflict struct {
	Generation int64
	Statement  ir.Statement
	Removed    bool
	Read       pattern.GraphPattern
	Leaf       pattern.Pattern
	Residual   pattern.GraphPattern
}

// residual is a read with one leaf taken out. Binding the leaf to a
// statement and substituting into Rest gives the pattern whose solutions
// the statement takes part in.
type residual struct {
	Read pattern.GraphPattern
	Leaf pattern.Pattern
	Rest pattern.GraphPattern

	// dropFilters is set once the leaf sits on the right of an Optional.
	// Filters above that point may test whether the optional side bound,
	// so they are removed and the residual over-approximates.
	dropFilters bool
}

// residuals returns one residual per leaf of gp, left to right.
func residuals(gp pattern.GraphPattern) []residual {
	switch n := pattern.Deref(gp).(type) {
	case pattern.Basic:
		out := make([]residual, len(n.Patterns))
		for i, p := range n.Patterns {
			rest := make([]pattern.Pattern, 0, len(n.Patterns)-1)
			rest = append(rest, n.Patterns[:i]...)
			rest = append(rest, n.Patterns[i+1:]...)
			out[i] = residual{Leaf: p, Rest: pattern.Basic{Patterns: rest}}
		}
		return out

	case pattern.Join:
		var out []residual
		for _, r := range residuals(n.Left) {
			r.Rest = pattern.Join{Left: r.Rest, Right: n.Right}
			out = append(out, r)
		}
		for _, r := range residuals(n.Right) {
			r.Rest = pattern.Join{Left: n.Left, Right: r.Rest}
			out = append(out, r)
		}
		return out

	case pattern.Optional:
		var out []residual
		for _, r := range residuals(n.Left) {
			r.Rest = pattern.Optional{Left: r.Rest, Right: n.Right}
			out = append(out, r)
		}
		// A statement matching the optional side changes a left solution
		// only if that solution exists: require both.
		for _, r := range residuals(n.Right) {
			r.Rest = pattern.Join{Left: n.Left, Right: r.Rest}
			r.dropFilters = true
			out = append(out, r)
		}
		return out

	case pattern.Union:
		// Only the branch holding the leaf can gain or lose solutions.
		return append(residuals(n.Left), residuals(n.Right)...)

	case pattern.Filter:
		out := residuals(n.Inner)
		for i := range out {
			if !out[i].dropFilters {
				out[i].Rest = pattern.Filter{Inner: out[i].Rest, Expr: n.Expr}
			}
		}
		return out

	case pattern.Projection:
		out := residuals(n.Inner)
		for i := range out {
			out[i].Rest = pattern.Projection{Inner: out[i].Rest, Vars: n.Vars}
		}
		return out
	}
	return nil
}

// Validator decides whether deltas committed after a snapshot invalidate
// a transaction's reads.
//
// For each delta statement and each read leaf the statement unifies with,
// the leaf's bindings are substituted into the rest of the read. If the
// result has a solution the statement would have changed the read:
// an added statement contributes a solution the transaction never saw,
// a removed one withdraws a solution it did see.
type Validator struct {
	fs store.FactStore
}

// NewValidator creates a validator reading from fs.
func NewValidator(fs store.FactStore) *Validator {
	return &Validator{fs: fs}
}

// Validate checks reads against deltas newer than snapshot and returns
// the first conflict found, or nil. Every delta statement is checked,
// including ones the transaction staged itself: an identical write does
// not make a changed read accurate.
//
// Residuals see committed state only, never the transaction's own
// buffer. Added statements are checked against the store as of their own
// generation, so a delta that adds several facts completing one solution
// together is caught. Removed statements are checked against the snapshot,
// which still contains them.
func (v *Validator) Validate(ctx context.Context, snapshot int64, reads []ReadEntry, deltas []Delta) (*Conflict, error) {
	if len(reads) == 0 || len(deltas) == 0 {
		return nil, nil
	}

	var templates []residual
	for _, r := range reads {
		for _, res := range residuals(r.Pattern) {
			res.Read = r.Pattern
			templates = append(templates, res)
		}
	}

	before := store.At(v.fs, snapshot)
	for _, d := range deltas {
		after := store.At(v.fs, d.Generation)
		for _, st := range d.Added {
			c, err := v.check(ctx, after, templates, st)
			if err != nil || c != nil {
				return withDelta(c, d.Generation, false), err
			}
		}
		for _, st := range d.Removed {
			c, err := v.check(ctx, before, templates, st)
			if err != nil || c != nil {
				return withDelta(c, d.Generation, true), err
			}
		}
	}
	return nil, nil
}

// Affects reports whether a single delta changes the solutions of gp.
// Used for watched queries; gen is the delta's generation.
func (v *Validator) Affects(ctx context.Context, gp pattern.GraphPattern, d Delta) (bool, error) {
	templates := residuals(gp)
	after := store.At(v.fs, d.Generation)
	for _, st := range d.Added {
		c, err := v.check(ctx, after, templates, st)
		if err != nil || c != nil {
			return c != nil, err
		}
	}
	before := store.At(v.fs, d.Generation-1)
	for _, st := range d.Removed {
		c, err := v.check(ctx, before, templates, st)
		if err != nil || c != nil {
			return c != nil, err
		}
	}
	return false, nil
}

func (v *Validator) check(ctx context.Context, src eval.Source, templates []residual, st ir.Statement) (*Conflict, error) {
	for _, t := range templates {
		b, ok := t.Leaf.Unify(st)
		if !ok {
			continue
		}
		rest := pattern.Substitute(t.Rest, b)
		found, err := eval.Exists(ctx, src, rest)
		if err != nil {
			return nil, err
		}
		if found {
			return &Conflict{Statement: st, Read: t.Read, Leaf: t.Leaf, Residual: rest}, nil
		}
	}
	return nil, nil
}

func withDelta(c *Conflict, gen int64, removed bool) *Conflict {
	if c != nil {
		c.Generation = gen
		c.Removed = removed
	}
	return c
}
