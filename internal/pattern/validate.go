package pattern

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate checks that a graph pattern is well formed.
//
// Rules:
//  1. No nil nodes, no unknown node types
//  2. Subject, predicate, and object Const slots carry a non-nil term
//  3. Variable names are non-empty
//  4. Filter expressions are well formed (known operators, compilable regex)
//  5. Projection variables are non-empty names
//
// All problems are reported, joined with errors.Join.
func Validate(gp GraphPattern) error {
	v := &validator{}
	v.graph(gp, "root")
	return errors.Join(v.errs...)
}

// validator accumulates errors during traversal.
type validator struct {
	errs []error
}

func (v *validator) addError(path, format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
}

func (v *validator) graph(gp GraphPattern, path string) {
	if gp == nil {
		v.addError(path, "nil graph pattern")
		return
	}
	switch n := Deref(gp).(type) {
	case Basic:
		for i, p := range n.Patterns {
			v.pattern(p, fmt.Sprintf("%s.basic[%d]", path, i))
		}
	case Join:
		v.graph(n.Left, path+".join.left")
		v.graph(n.Right, path+".join.right")
	case Optional:
		v.graph(n.Left, path+".optional.left")
		v.graph(n.Right, path+".optional.right")
	case Union:
		v.graph(n.Left, path+".union.left")
		v.graph(n.Right, path+".union.right")
	case Filter:
		v.graph(n.Inner, path+".filter.inner")
		v.expr(n.Expr, path+".filter.expr")
	case Projection:
		v.graph(n.Inner, path+".project.inner")
		for i, name := range n.Vars {
			if name == "" {
				v.addError(fmt.Sprintf("%s.project.vars[%d]", path, i), "empty variable name")
			}
		}
	default:
		v.addError(path, "unknown graph pattern type %T", gp)
	}
}

func (v *validator) pattern(p Pattern, path string) {
	names := [4]string{"subject", "predicate", "object", "context"}
	for i, s := range p.Slots() {
		switch sl := s.(type) {
		case Const:
			if sl.Value == nil && i < 3 {
				v.addError(path+"."+names[i], "constant slot has no term")
			}
		case Var:
			if sl.Name == "" {
				v.addError(path+"."+names[i], "empty variable name")
			}
		case Wildcard:
		default:
			v.addError(path+"."+names[i], "unknown slot type %T", s)
		}
	}
}

func (v *validator) expr(e Expr, path string) {
	if e == nil {
		v.addError(path, "nil expression")
		return
	}
	switch n := DerefExpr(e).(type) {
	case VarRef:
		if n.Name == "" {
			v.addError(path, "empty variable name")
		}
	case Literal:
		if n.Value == nil {
			v.addError(path, "literal has no term")
		}
	case Compare:
		if !n.Op.Valid() {
			v.addError(path, "unknown comparison operator %q", n.Op)
		}
		v.expr(n.Left, path+".left")
		v.expr(n.Right, path+".right")
	case And:
		for i, sub := range n.Exprs {
			v.expr(sub, fmt.Sprintf("%s.and[%d]", path, i))
		}
	case Or:
		for i, sub := range n.Exprs {
			v.expr(sub, fmt.Sprintf("%s.or[%d]", path, i))
		}
	case Not:
		v.expr(n.Expr, path+".not")
	case Bound:
		if n.Name == "" {
			v.addError(path, "empty variable name")
		}
	case Regex:
		v.expr(n.Arg, path+".regex")
		if _, err := regexp.Compile(n.Pattern); err != nil {
			v.addError(path, "invalid regex: %v", err)
		}
	default:
		v.addError(path, "unknown expression type %T", e)
	}
}

// ValidateStatementPattern checks a single pattern used outside a tree,
// e.g. by Remove.
func ValidateStatementPattern(p Pattern) error {
	return Validate(Basic{Patterns: []Pattern{p}})
}
