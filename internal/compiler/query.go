package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// Query is a compiled query document.
type Query struct {
	Name     string
	Pattern  pattern.GraphPattern
	Bindings pattern.Bindings
	Inferred bool
}

// CompileQuery parses a CUE value into a Query.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the query struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query: painters: { where: basic: [["?p", "rdf:type", "ex:Painter"]] }`)
//	q, err := CompileQuery(v.LookupPath(cue.ParsePath("query.painters")))
func CompileQuery(v cue.Value) (*Query, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	q := &Query{}

	// Query name from struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		q.Name = unquoteLabel(labels[len(labels)-1].String())
	}

	whereVal := v.LookupPath(cue.ParsePath("where"))
	if !whereVal.Exists() {
		return nil, &CompileError{
			Field:   "where",
			Message: "where is required",
			Pos:     v.Pos(),
		}
	}
	gp, err := CompileGraph(whereVal)
	if err != nil {
		return nil, err
	}
	q.Pattern = gp

	// bindings (optional): variable name -> term
	bindVal := v.LookupPath(cue.ParsePath("bindings"))
	if bindVal.Exists() {
		q.Bindings, err = parseBindings(bindVal)
		if err != nil {
			return nil, err
		}
	}

	infVal := v.LookupPath(cue.ParsePath("inferred"))
	if infVal.Exists() {
		q.Inferred, err = infVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
	}

	return q, nil
}

// CompileGraph parses one graph pattern node. Exactly one of the keys
// basic, join, optional, union, filter, or project must be present.
func CompileGraph(v cue.Value) (pattern.GraphPattern, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: fieldName(v), Message: "graph pattern must be a struct", Pos: v.Pos()}
	}

	var op string
	var body cue.Value
	for iter.Next() {
		if op != "" {
			return nil, &CompileError{
				Field:   fieldName(v),
				Message: fmt.Sprintf("graph pattern has both %q and %q", op, iter.Label()),
				Pos:     iter.Value().Pos(),
			}
		}
		op, body = iter.Label(), iter.Value()
	}

	switch op {
	case "basic":
		return parseBasic(body)
	case "join", "optional", "union":
		left, right, err := parseBinary(body)
		if err != nil {
			return nil, err
		}
		switch op {
		case "join":
			return pattern.Join{Left: left, Right: right}, nil
		case "optional":
			return pattern.Optional{Left: left, Right: right}, nil
		}
		return pattern.Union{Left: left, Right: right}, nil
	case "filter":
		return parseFilter(body)
	case "project":
		return parseProject(body)
	case "":
		return nil, &CompileError{Field: fieldName(v), Message: "empty graph pattern", Pos: v.Pos()}
	}
	return nil, &CompileError{
		Field:   fieldName(body),
		Message: fmt.Sprintf("unknown graph pattern %q, must be basic, join, optional, union, filter or project", op),
		Pos:     body.Pos(),
	}
}

// parseBasic parses a list of 3 or 4 element slot rows.
func parseBasic(v cue.Value) (pattern.GraphPattern, error) {
	rows, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: fieldName(v), Message: "basic must be a list of patterns", Pos: v.Pos()}
	}

	var patterns []pattern.Pattern
	for rows.Next() {
		p, err := parsePatternRow(rows.Value())
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return pattern.Basic{Patterns: patterns}, nil
}

func parsePatternRow(v cue.Value) (pattern.Pattern, error) {
	iter, err := v.List()
	if err != nil {
		return pattern.Pattern{}, &CompileError{Field: fieldName(v), Message: "pattern must be a list of slots", Pos: v.Pos()}
	}
	var slots []pattern.Slot
	for iter.Next() {
		s, err := parseSlot(iter.Value())
		if err != nil {
			return pattern.Pattern{}, err
		}
		slots = append(slots, s)
	}
	if len(slots) != 3 && len(slots) != 4 {
		return pattern.Pattern{}, &CompileError{
			Field:   fieldName(v),
			Message: fmt.Sprintf("pattern must have 3 or 4 slots, got %d", len(slots)),
			Pos:     v.Pos(),
		}
	}
	p := pattern.New(slots[0], slots[1], slots[2])
	if len(slots) == 4 {
		p = p.InContext(slots[3])
	}
	return p, nil
}

// parseSlot accepts "?name" (variable), "*" (wildcard), "@default" (the
// default graph) or a term.
func parseSlot(v cue.Value) (pattern.Slot, error) {
	if s, err := v.String(); err == nil {
		switch {
		case s == "*":
			return pattern.Any(), nil
		case s == "@default":
			return pattern.DefaultGraph(), nil
		case strings.HasPrefix(s, "?"):
			if len(s) == 1 {
				return nil, &CompileError{Field: fieldName(v), Message: "variable name is empty", Pos: v.Pos()}
			}
			return pattern.V(s[1:]), nil
		}
	}
	t, err := parseTerm(v)
	if err != nil {
		return nil, err
	}
	return pattern.C(t), nil
}

func parseBinary(v cue.Value) (pattern.GraphPattern, pattern.GraphPattern, error) {
	leftVal := v.LookupPath(cue.ParsePath("left"))
	rightVal := v.LookupPath(cue.ParsePath("right"))
	if !leftVal.Exists() || !rightVal.Exists() {
		return nil, nil, &CompileError{
			Field:   fieldName(v),
			Message: "left and right are required",
			Pos:     v.Pos(),
		}
	}
	left, err := CompileGraph(leftVal)
	if err != nil {
		return nil, nil, err
	}
	right, err := CompileGraph(rightVal)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func parseFilter(v cue.Value) (pattern.GraphPattern, error) {
	innerVal := v.LookupPath(cue.ParsePath("inner"))
	exprVal := v.LookupPath(cue.ParsePath("expr"))
	if !innerVal.Exists() || !exprVal.Exists() {
		return nil, &CompileError{Field: fieldName(v), Message: "inner and expr are required", Pos: v.Pos()}
	}
	inner, err := CompileGraph(innerVal)
	if err != nil {
		return nil, err
	}
	expr, err := CompileExpr(exprVal)
	if err != nil {
		return nil, err
	}
	return pattern.Filter{Inner: inner, Expr: expr}, nil
}

func parseProject(v cue.Value) (pattern.GraphPattern, error) {
	innerVal := v.LookupPath(cue.ParsePath("inner"))
	varsVal := v.LookupPath(cue.ParsePath("vars"))
	if !innerVal.Exists() || !varsVal.Exists() {
		return nil, &CompileError{Field: fieldName(v), Message: "inner and vars are required", Pos: v.Pos()}
	}
	inner, err := CompileGraph(innerVal)
	if err != nil {
		return nil, err
	}

	iter, err := varsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var vars []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		vars = append(vars, strings.TrimPrefix(name, "?"))
	}
	return pattern.Projection{Inner: inner, Vars: vars}, nil
}

func parseBindings(v cue.Value) (pattern.Bindings, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	b := pattern.Bindings{}
	for iter.Next() {
		t, err := parseTerm(iter.Value())
		if err != nil {
			return nil, err
		}
		b[strings.TrimPrefix(iter.Label(), "?")] = t
	}
	return b, nil
}

// parseTerm converts a scalar or single-key tagged struct to a Term.
// Floats are forbidden.
func parseTerm(v cue.Value) (ir.Term, error) {
	raw, err := termValue(v)
	if err != nil {
		return nil, err
	}
	t, err := ir.TermFromAny(raw)
	if err != nil {
		return nil, &CompileError{Field: fieldName(v), Message: err.Error(), Pos: v.Pos()}
	}
	return t, nil
}

func termValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := map[string]any{}
		for iter.Next() {
			inner, err := termValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = inner
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   fieldName(v),
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	}
	return nil, &CompileError{
		Field:   fieldName(v),
		Message: fmt.Sprintf("unsupported term kind: %v", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

// fieldName renders a value's path for error messages.
func fieldName(v cue.Value) string {
	if p := v.Path().String(); p != "" {
		return p
	}
	return "query"
}

func unquoteLabel(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
