package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Statement is a subject-predicate-object fact, optionally scoped to a
// named graph. Statement is comparable and may be used as a map key.
type Statement struct {
	Subject   Term
	Predicate Term
	Object    Term
	Context   Term // nil = default graph
}

// NewStatement creates a statement in the default graph.
func NewStatement(subject, predicate, object Term) Statement {
	return Statement{Subject: subject, Predicate: predicate, Object: object}
}

// InContext returns a copy of s scoped to the given named graph.
func (s Statement) InContext(ctx Term) Statement {
	s.Context = ctx
	return s
}

// Validate checks that a statement can be stored.
// Subject, predicate, and context (when present) must be IRIs.
func (s Statement) Validate() error {
	if _, ok := s.Subject.(IRI); !ok {
		return fmt.Errorf("subject must be an IRI, got %s", describe(s.Subject))
	}
	if _, ok := s.Predicate.(IRI); !ok {
		return fmt.Errorf("predicate must be an IRI, got %s", describe(s.Predicate))
	}
	if s.Object == nil {
		return fmt.Errorf("object is required")
	}
	if s.Context != nil {
		if _, ok := s.Context.(IRI); !ok {
			return fmt.Errorf("context must be an IRI, got %s", describe(s.Context))
		}
	}
	return nil
}

// Terms returns the four slots in S, P, O, C order.
func (s Statement) Terms() [4]Term {
	return [4]Term{s.Subject, s.Predicate, s.Object, s.Context}
}

func (s Statement) String() string {
	var b strings.Builder
	b.WriteString(termString(s.Subject))
	b.WriteByte(' ')
	b.WriteString(termString(s.Predicate))
	b.WriteByte(' ')
	b.WriteString(termString(s.Object))
	if s.Context != nil {
		b.WriteByte(' ')
		b.WriteString(s.Context.String())
	}
	return b.String()
}

// CompareStatements orders statements by subject, predicate, object, context.
func CompareStatements(a, b Statement) int {
	at, bt := a.Terms(), b.Terms()
	for i := range at {
		if c := Compare(at[i], bt[i]); c != 0 {
			return c
		}
	}
	return 0
}

// SortStatements sorts statements in place into canonical order.
func SortStatements(stmts []Statement) {
	slices.SortFunc(stmts, CompareStatements)
}

func termString(t Term) string {
	if t == nil {
		return "_"
	}
	return t.String()
}

func describe(t Term) string {
	if t == nil {
		return "nil"
	}
	return string(t.Kind())
}
