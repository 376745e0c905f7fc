package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/occgraph/internal/ir"
)

func rangeQuery() GraphPattern {
	return Filter{
		Inner: NewBasic(
			New(V("painter"), C(paints), V("painting")),
			New(V("painting"), C(ir.IRI("ex:year")), V("year")),
		),
		Expr: Between(VarRef{Name: "year"}, ir.Int(1631), ir.Int(1635)),
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t,
		"Filter(Basic(?painter <ex:paints> ?painting . ?painting <ex:year> ?year), ?year >= 1631 && ?year <= 1635)",
		Format(rangeQuery()))

	assert.Equal(t,
		"Project(Union(Basic(?x <rdf:type> <ex:Painter>), Basic()) ?x)",
		Format(Projection{Inner: Union{Left: NewBasic(New(V("x"), C(rdfType), C(painter))), Right: NewBasic()}, Vars: []string{"x"}}))
}

func TestFormatExprNesting(t *testing.T) {
	e := And{Exprs: []Expr{
		Or{Exprs: []Expr{Bound{Name: "a"}, Bound{Name: "b"}}},
		Not{Expr: Regex{Arg: VarRef{Name: "a"}, Pattern: "x"}},
	}}
	assert.Equal(t, `(bound(?a) || bound(?b)) && !(regex(?a, "x"))`, FormatExpr(e))
}

func TestToCanonical(t *testing.T) {
	c, err := ToCanonical(NewBasic(New(V("x"), C(rdfType), C(painter)).InContext(DefaultGraph())))
	require.NoError(t, err)

	data, err := ir.MarshalCanonical(c)
	require.NoError(t, err)
	assert.Equal(t, `{"basic":[["?x",{"iri":"rdf:type"},{"iri":"ex:Painter"},"@default"]]}`, string(data))
}

func TestHashStable(t *testing.T) {
	h1, err := Hash(rangeQuery())
	require.NoError(t, err)
	h2, err := Hash(rangeQuery())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := Hash(paintersJoin())
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestHashRejectsMalformed(t *testing.T) {
	_, err := Hash(Filter{Inner: NewBasic(), Expr: Literal{}})
	assert.Error(t, err)
}
