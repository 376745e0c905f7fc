package pattern

import "github.com/roach88/occgraph/internal/ir"

// Substitute replaces every bound variable in the tree with its term:
// pattern slots become Const, VarRef becomes Literal, and Bound on a
// bound name becomes true. Projected variables that are now constants
// are dropped from the projection list.
func Substitute(gp GraphPattern, b Bindings) GraphPattern {
	if len(b) == 0 {
		return gp
	}
	switch n := Deref(gp).(type) {
	case Basic:
		out := make([]Pattern, len(n.Patterns))
		for i, p := range n.Patterns {
			out[i] = p.Substitute(b)
		}
		return Basic{Patterns: out}
	case Join:
		return Join{Left: Substitute(n.Left, b), Right: Substitute(n.Right, b)}
	case Optional:
		return Optional{Left: Substitute(n.Left, b), Right: Substitute(n.Right, b)}
	case Union:
		return Union{Left: Substitute(n.Left, b), Right: Substitute(n.Right, b)}
	case Filter:
		return Filter{Inner: Substitute(n.Inner, b), Expr: SubstituteExpr(n.Expr, b)}
	case Projection:
		vars := make([]string, 0, len(n.Vars))
		for _, v := range n.Vars {
			if _, bound := b[v]; !bound {
				vars = append(vars, v)
			}
		}
		return Projection{Inner: Substitute(n.Inner, b), Vars: vars}
	}
	return gp
}

// SubstituteExpr replaces bound variables inside a filter expression.
func SubstituteExpr(e Expr, b Bindings) Expr {
	switch n := DerefExpr(e).(type) {
	case VarRef:
		if t, ok := b[n.Name]; ok {
			return Literal{Value: t}
		}
		return n
	case Compare:
		return Compare{Op: n.Op, Left: SubstituteExpr(n.Left, b), Right: SubstituteExpr(n.Right, b)}
	case And:
		return And{Exprs: substituteAll(n.Exprs, b)}
	case Or:
		return Or{Exprs: substituteAll(n.Exprs, b)}
	case Not:
		return Not{Expr: SubstituteExpr(n.Expr, b)}
	case Bound:
		if _, ok := b[n.Name]; ok {
			return Literal{Value: ir.Bool(true)}
		}
		return n
	case Regex:
		return Regex{Arg: SubstituteExpr(n.Arg, b), Pattern: n.Pattern}
	}
	return e
}

func substituteAll(exprs []Expr, b Bindings) []Expr {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = SubstituteExpr(e, b)
	}
	return out
}
