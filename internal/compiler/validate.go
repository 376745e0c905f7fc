package compiler

import (
	"fmt"

	"github.com/roach88/occgraph/internal/pattern"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrInvalidPattern = "E100" // structural pattern error

	// Query errors (E101-E109)
	ErrEmptyBasic         = "E101" // basic with no patterns
	ErrUnusedBinding      = "E102" // binding names a variable the query never uses
	ErrUnknownProjection  = "E103" // projected variable not bound below
	ErrUnboundFilterVar   = "E104" // filter references a variable its inner never binds
	ErrDuplicateProjected = "E105" // variable projected twice
)

// ValidationError represents a semantic query error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled query.
// Returns all errors found (does not fail-fast).
func Validate(q *Query) []ValidationError {
	var errs []ValidationError

	// E100: structural checks shared with the evaluator
	if err := pattern.Validate(q.Pattern); err != nil {
		for _, e := range unjoin(err) {
			errs = append(errs, ValidationError{
				Field:   "where",
				Message: e.Error(),
				Code:    ErrInvalidPattern,
			})
		}
		return errs
	}

	errs = append(errs, validateGraph(q.Pattern, "where")...)

	// E102: bindings must name variables of the query
	used := map[string]bool{}
	for _, v := range pattern.Vars(q.Pattern) {
		used[v] = true
	}
	for _, name := range q.Bindings.Names() {
		if !used[name] {
			errs = append(errs, ValidationError{
				Field:   "bindings." + name,
				Message: fmt.Sprintf("variable ?%s does not occur in the query", name),
				Code:    ErrUnusedBinding,
			})
		}
	}

	return errs
}

// validateGraph walks the tree checking variable scoping.
func validateGraph(gp pattern.GraphPattern, path string) []ValidationError {
	var errs []ValidationError

	switch n := pattern.Deref(gp).(type) {
	case pattern.Basic:
		// E101: an empty basic matches everything once and is almost
		// always a mistake in a document
		if len(n.Patterns) == 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".basic",
				Message: "basic must contain at least one pattern",
				Code:    ErrEmptyBasic,
			})
		}
	case pattern.Join:
		errs = append(errs, validateGraph(n.Left, path+".join.left")...)
		errs = append(errs, validateGraph(n.Right, path+".join.right")...)
	case pattern.Optional:
		errs = append(errs, validateGraph(n.Left, path+".optional.left")...)
		errs = append(errs, validateGraph(n.Right, path+".optional.right")...)
	case pattern.Union:
		errs = append(errs, validateGraph(n.Left, path+".union.left")...)
		errs = append(errs, validateGraph(n.Right, path+".union.right")...)
	case pattern.Filter:
		errs = append(errs, validateGraph(n.Inner, path+".filter.inner")...)

		// E104: bound() may test any variable; other references must be
		// bindable by the inner pattern
		bound := varSet(n.Inner)
		for _, name := range exprVars(n.Expr) {
			if !bound[name] {
				errs = append(errs, ValidationError{
					Field:   path + ".filter.expr",
					Message: fmt.Sprintf("variable ?%s is never bound by the filtered pattern", name),
					Code:    ErrUnboundFilterVar,
				})
			}
		}
	case pattern.Projection:
		errs = append(errs, validateGraph(n.Inner, path+".project.inner")...)
		bound := varSet(n.Inner)
		seen := map[string]bool{}
		for i, name := range n.Vars {
			field := fmt.Sprintf("%s.project.vars[%d]", path, i)
			// E105: duplicate projection
			if seen[name] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("variable ?%s projected twice", name),
					Code:    ErrDuplicateProjected,
				})
			}
			seen[name] = true

			// E103: projected variable must be bound below
			if !bound[name] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("variable ?%s is not bound by the projected pattern", name),
					Code:    ErrUnknownProjection,
				})
			}
		}
	}

	return errs
}

func varSet(gp pattern.GraphPattern) map[string]bool {
	set := map[string]bool{}
	for _, v := range pattern.Vars(gp) {
		set[v] = true
	}
	return set
}

// exprVars returns variables referenced outside bound() in first-occurrence order.
func exprVars(e pattern.Expr) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(pattern.Expr)
	walk = func(e pattern.Expr) {
		switch n := pattern.DerefExpr(e).(type) {
		case pattern.VarRef:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case pattern.Compare:
			walk(n.Left)
			walk(n.Right)
		case pattern.And:
			for _, sub := range n.Exprs {
				walk(sub)
			}
		case pattern.Or:
			for _, sub := range n.Exprs {
				walk(sub)
			}
		case pattern.Not:
			walk(n.Expr)
		case pattern.Regex:
			walk(n.Arg)
		}
	}
	walk(e)
	return names
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
