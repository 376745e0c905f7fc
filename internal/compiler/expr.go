package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/occgraph/internal/pattern"
)

// CompileExpr parses a filter expression.
//
// Forms:
//
//	"?year"                                  variable reference
//	1635, "ex:Danae", {text: "rem"}          literal term
//	{op: ">=", args: [a, b]}                 comparison
//	{and: [...]}, {or: [...]}, {not: e}      connectives
//	{bound: "?type"}                         bound test
//	{regex: {arg: "?name", pattern: "^R"}}   RE2 match
func CompileExpr(v cue.Value) (pattern.Expr, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if s, err := v.String(); err == nil && strings.HasPrefix(s, "?") {
		if len(s) == 1 {
			return nil, &CompileError{Field: fieldName(v), Message: "variable name is empty", Pos: v.Pos()}
		}
		return pattern.VarRef{Name: s[1:]}, nil
	}
	if v.Kind() != cue.StructKind {
		t, err := parseTerm(v)
		if err != nil {
			return nil, err
		}
		return pattern.Literal{Value: t}, nil
	}

	switch {
	case v.LookupPath(cue.ParsePath("op")).Exists():
		return parseCompare(v)
	case v.LookupPath(cue.ParsePath("and")).Exists():
		exprs, err := parseExprList(v.LookupPath(cue.ParsePath("and")))
		if err != nil {
			return nil, err
		}
		return pattern.And{Exprs: exprs}, nil
	case v.LookupPath(cue.ParsePath("or")).Exists():
		exprs, err := parseExprList(v.LookupPath(cue.ParsePath("or")))
		if err != nil {
			return nil, err
		}
		return pattern.Or{Exprs: exprs}, nil
	case v.LookupPath(cue.ParsePath("not")).Exists():
		inner, err := CompileExpr(v.LookupPath(cue.ParsePath("not")))
		if err != nil {
			return nil, err
		}
		return pattern.Not{Expr: inner}, nil
	case v.LookupPath(cue.ParsePath("bound")).Exists():
		name, err := v.LookupPath(cue.ParsePath("bound")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return pattern.Bound{Name: strings.TrimPrefix(name, "?")}, nil
	case v.LookupPath(cue.ParsePath("regex")).Exists():
		return parseRegex(v.LookupPath(cue.ParsePath("regex")))
	}

	// A tagged literal such as {int: 1635}.
	t, err := parseTerm(v)
	if err != nil {
		return nil, &CompileError{
			Field:   fieldName(v),
			Message: "expression must be a variable, a term, or one of op, and, or, not, bound, regex",
			Pos:     v.Pos(),
		}
	}
	return pattern.Literal{Value: t}, nil
}

func parseCompare(v cue.Value) (pattern.Expr, error) {
	opStr, err := v.LookupPath(cue.ParsePath("op")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	op := pattern.CompareOp(opStr)
	if !op.Valid() {
		return nil, &CompileError{
			Field:   fieldName(v) + ".op",
			Message: fmt.Sprintf("unknown comparison operator %q", opStr),
			Pos:     v.Pos(),
		}
	}
	args, err := parseExprList(v.LookupPath(cue.ParsePath("args")))
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, &CompileError{
			Field:   fieldName(v) + ".args",
			Message: fmt.Sprintf("comparison takes 2 arguments, got %d", len(args)),
			Pos:     v.Pos(),
		}
	}
	return pattern.Compare{Op: op, Left: args[0], Right: args[1]}, nil
}

func parseExprList(v cue.Value) ([]pattern.Expr, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: fieldName(v), Message: "expected a list of expressions", Pos: v.Pos()}
	}
	var out []pattern.Expr
	for iter.Next() {
		e, err := CompileExpr(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseRegex(v cue.Value) (pattern.Expr, error) {
	argVal := v.LookupPath(cue.ParsePath("arg"))
	patVal := v.LookupPath(cue.ParsePath("pattern"))
	if !argVal.Exists() || !patVal.Exists() {
		return nil, &CompileError{Field: fieldName(v), Message: "regex requires arg and pattern", Pos: v.Pos()}
	}
	arg, err := CompileExpr(argVal)
	if err != nil {
		return nil, err
	}
	pat, err := patVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return pattern.Regex{Arg: arg, Pattern: pat}, nil
}
