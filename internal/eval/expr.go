package eval

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// ErrUnbound is returned when an expression references an unbound variable.
var ErrUnbound = errors.New("unbound variable")

// ErrType is returned when operand types do not support an operation.
var ErrType = errors.New("type error")

// Test evaluates a filter expression to its effective boolean value.
// Errors count as false.
func Test(e pattern.Expr, b pattern.Bindings) bool {
	ok, err := EffectiveBool(e, b)
	return err == nil && ok
}

// EffectiveBool evaluates e and converts the result to a boolean:
// Bool is itself, Int is non-zero, Text is non-empty. IRIs are a type error.
func EffectiveBool(e pattern.Expr, b pattern.Bindings) (bool, error) {
	switch n := pattern.DerefExpr(e).(type) {
	case pattern.And:
		// Error on one side is absorbed by a false on the other.
		var firstErr error
		for _, sub := range n.Exprs {
			v, err := EffectiveBool(sub, b)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if !v {
				return false, nil
			}
		}
		return firstErr == nil, firstErr
	case pattern.Or:
		var firstErr error
		for _, sub := range n.Exprs {
			v, err := EffectiveBool(sub, b)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if v {
				return true, nil
			}
		}
		return false, firstErr
	case pattern.Not:
		v, err := EffectiveBool(n.Expr, b)
		if err != nil {
			return false, err
		}
		return !v, nil
	}

	t, err := EvalExpr(e, b)
	if err != nil {
		return false, err
	}
	switch v := t.(type) {
	case ir.Bool:
		return bool(v), nil
	case ir.Int:
		return v != 0, nil
	case ir.Text:
		return v != "", nil
	}
	return false, fmt.Errorf("%w: no boolean value for %s", ErrType, t)
}

// EvalExpr evaluates e to a term.
func EvalExpr(e pattern.Expr, b pattern.Bindings) (ir.Term, error) {
	switch n := pattern.DerefExpr(e).(type) {
	case pattern.VarRef:
		t, ok := b[n.Name]
		if !ok {
			return nil, fmt.Errorf("%w: ?%s", ErrUnbound, n.Name)
		}
		return t, nil
	case pattern.Literal:
		if n.Value == nil {
			return nil, fmt.Errorf("%w: empty literal", ErrType)
		}
		return n.Value, nil
	case pattern.Bound:
		_, ok := b[n.Name]
		return ir.Bool(ok), nil
	case pattern.Compare:
		return evalCompare(n, b)
	case pattern.Regex:
		return evalRegex(n, b)
	case pattern.And, pattern.Or, pattern.Not:
		v, err := EffectiveBool(n, b)
		if err != nil {
			return nil, err
		}
		return ir.Bool(v), nil
	}
	return nil, fmt.Errorf("%w: unsupported expression %T", ErrType, e)
}

func evalCompare(c pattern.Compare, b pattern.Bindings) (ir.Term, error) {
	l, err := EvalExpr(c.Left, b)
	if err != nil {
		return nil, err
	}
	r, err := EvalExpr(c.Right, b)
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case pattern.OpEq:
		return ir.Bool(ir.Equal(l, r)), nil
	case pattern.OpNe:
		return ir.Bool(!ir.Equal(l, r)), nil
	}

	if !orderable(l, r) {
		return nil, fmt.Errorf("%w: cannot order %s and %s", ErrType, l.Kind(), r.Kind())
	}
	cmp := ir.Compare(l, r)
	switch c.Op {
	case pattern.OpLt:
		return ir.Bool(cmp < 0), nil
	case pattern.OpLe:
		return ir.Bool(cmp <= 0), nil
	case pattern.OpGt:
		return ir.Bool(cmp > 0), nil
	case pattern.OpGe:
		return ir.Bool(cmp >= 0), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrType, c.Op)
}

func orderable(l, r ir.Term) bool {
	switch l.(type) {
	case ir.Int:
		_, ok := r.(ir.Int)
		return ok
	case ir.Text:
		_, ok := r.(ir.Text)
		return ok
	}
	return false
}

var regexCache sync.Map // pattern string -> *regexp.Regexp

func evalRegex(rx pattern.Regex, b pattern.Bindings) (ir.Term, error) {
	t, err := EvalExpr(rx.Arg, b)
	if err != nil {
		return nil, err
	}
	var s string
	switch v := t.(type) {
	case ir.Text:
		s = string(v)
	case ir.IRI:
		s = string(v)
	default:
		return nil, fmt.Errorf("%w: regex on %s", ErrType, t.Kind())
	}

	re, err := compileRegex(rx.Pattern)
	if err != nil {
		return nil, err
	}
	return ir.Bool(re.MatchString(s)), nil
}

func compileRegex(expr string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(expr); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrType, err)
	}
	regexCache.Store(expr, re)
	return re, nil
}
