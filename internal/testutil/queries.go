package testutil

import (
	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// PaintersQuery is { ?painter a Painter . ?painter paints ?painting }.
func PaintersQuery() pattern.GraphPattern {
	return pattern.NewBasic(
		pattern.New(pattern.V("painter"), pattern.C(RDFType), pattern.C(Painter)),
		pattern.New(pattern.V("painter"), pattern.C(Paints), pattern.V("painting")),
	)
}

// RangeQuery is Rembrandt's paintings dated 1631 through 1635.
func RangeQuery() pattern.GraphPattern {
	return pattern.Filter{
		Inner: pattern.NewBasic(
			pattern.New(pattern.C(Rembrandt), pattern.C(Paints), pattern.V("painting")),
			pattern.New(pattern.V("painting"), pattern.C(Year), pattern.V("year")),
		),
		Expr: pattern.Between(pattern.VarRef{Name: "year"}, ir.Int(1631), ir.Int(1635)),
	}
}

// UntypedPaintingsQuery lists paintings by any painter that have no
// rdf:type: an OPTIONAL plus !bound filter.
func UntypedPaintingsQuery() pattern.GraphPattern {
	return pattern.Filter{
		Inner: pattern.Optional{
			Left: pattern.NewBasic(
				pattern.New(pattern.V("painter"), pattern.C(RDFType), pattern.C(Painter)),
				pattern.New(pattern.V("painter"), pattern.C(Paints), pattern.V("painting")),
			),
			Right: pattern.NewBasic(
				pattern.New(pattern.V("painting"), pattern.C(RDFType), pattern.V("type")),
			),
		},
		Expr: pattern.Not{Expr: pattern.Bound{Name: "type"}},
	}
}

// TypeOf is the single pattern (*, rdf:type, class).
func TypeOf(class ir.Term) pattern.Pattern {
	return pattern.FromTerms(nil, RDFType, class, nil)
}
