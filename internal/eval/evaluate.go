package eval

import (
	"context"
	"fmt"

	"github.com/roach88/occgraph/internal/pattern"
)

// Evaluate computes every solution of gp over src.
//
// Evaluation is bottom-up and fully materialized. Basic nodes are joined
// pattern by pattern, picking next the pattern with the most slots already
// bound. Filter errors count as false.
func Evaluate(ctx context.Context, src Source, gp pattern.GraphPattern) ([]pattern.Bindings, error) {
	switch n := pattern.Deref(gp).(type) {
	case pattern.Basic:
		return evalBasic(ctx, src, n.Patterns)

	case pattern.Join:
		left, err := Evaluate(ctx, src, n.Left)
		if err != nil {
			return nil, err
		}
		if len(left) == 0 {
			return nil, nil
		}
		right, err := Evaluate(ctx, src, n.Right)
		if err != nil {
			return nil, err
		}
		return joinSolutions(left, right), nil

	case pattern.Optional:
		left, err := Evaluate(ctx, src, n.Left)
		if err != nil {
			return nil, err
		}
		if len(left) == 0 {
			return nil, nil
		}
		right, err := Evaluate(ctx, src, n.Right)
		if err != nil {
			return nil, err
		}
		return leftJoinSolutions(left, right), nil

	case pattern.Union:
		left, err := Evaluate(ctx, src, n.Left)
		if err != nil {
			return nil, err
		}
		right, err := Evaluate(ctx, src, n.Right)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case pattern.Filter:
		inner, err := Evaluate(ctx, src, n.Inner)
		if err != nil {
			return nil, err
		}
		out := inner[:0]
		for _, b := range inner {
			if Test(n.Expr, b) {
				out = append(out, b)
			}
		}
		return out, nil

	case pattern.Projection:
		inner, err := Evaluate(ctx, src, n.Inner)
		if err != nil {
			return nil, err
		}
		out := make([]pattern.Bindings, len(inner))
		for i, b := range inner {
			out[i] = b.Project(n.Vars)
		}
		return out, nil
	}
	return nil, fmt.Errorf("eval: unsupported graph pattern type %T", gp)
}

// Exists reports whether gp has at least one solution over src.
func Exists(ctx context.Context, src Source, gp pattern.GraphPattern) (bool, error) {
	solutions, err := Evaluate(ctx, src, gp)
	if err != nil {
		return false, err
	}
	return len(solutions) > 0, nil
}

func evalBasic(ctx context.Context, src Source, patterns []pattern.Pattern) ([]pattern.Bindings, error) {
	solutions := []pattern.Bindings{{}}
	remaining := append([]pattern.Pattern(nil), patterns...)

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := pickNext(remaining, solutions[0])
		p := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		var next []pattern.Bindings
		for _, sol := range solutions {
			q := p.Substitute(sol)
			stmts, err := src.Match(ctx, q)
			if err != nil {
				return nil, err
			}
			for _, st := range stmts {
				b, ok := q.Unify(st)
				if !ok {
					continue
				}
				next = append(next, sol.Merge(b))
			}
		}
		if len(next) == 0 {
			return nil, nil
		}
		solutions = next
	}
	return solutions, nil
}

// pickNext returns the index of the pattern with the most constant or
// already-bound slots. All solutions of a Basic share a variable set, so
// the first one is representative.
func pickNext(patterns []pattern.Pattern, bound pattern.Bindings) int {
	best, bestScore := 0, -1
	for i, p := range patterns {
		score := 0
		for _, s := range p.Slots() {
			switch sl := s.(type) {
			case pattern.Const:
				score++
			case pattern.Var:
				if _, ok := bound[sl.Name]; ok {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func joinSolutions(left, right []pattern.Bindings) []pattern.Bindings {
	var out []pattern.Bindings
	for _, l := range left {
		for _, r := range right {
			if l.Compatible(r) {
				out = append(out, l.Merge(r))
			}
		}
	}
	return out
}

func leftJoinSolutions(left, right []pattern.Bindings) []pattern.Bindings {
	var out []pattern.Bindings
	for _, l := range left {
		matched := false
		for _, r := range right {
			if l.Compatible(r) {
				out = append(out, l.Merge(r))
				matched = true
			}
		}
		if !matched {
			out = append(out, l)
		}
	}
	return out
}
