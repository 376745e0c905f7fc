// Package testutil provides a small art-history vocabulary and fixtures
// shared by tests across packages.
package testutil

import "github.com/roach88/occgraph/internal/ir"

// Vocabulary.
var (
	RDFType  = ir.IRI("rdf:type")
	Painter  = ir.IRI("ex:Painter")
	Painting = ir.IRI("ex:Painting")
	Paints   = ir.IRI("ex:paints")
	Year     = ir.IRI("ex:year")
	Period   = ir.IRI("ex:period")
)

// Painters.
var (
	Rembrandt = ir.IRI("ex:Rembrandt")
	Picasso   = ir.IRI("ex:Picasso")
	Vermeer   = ir.IRI("ex:Vermeer")
)

// Paintings.
var (
	NightWatch = ir.IRI("ex:NightWatch")
	Artemisia  = ir.IRI("ex:Artemisia")
	Danae      = ir.IRI("ex:Dana\u00eb")
	Jacob      = ir.IRI("ex:Jacob")
	Anatomy    = ir.IRI("ex:Anatomy")
	Belshazzar = ir.IRI("ex:Belshazzar")
	Guernica   = ir.IRI("ex:Guernica")
	Jacqueline = ir.IRI("ex:Jacqueline")
)

// Triple builds a default-graph statement.
func Triple(s, p, o ir.Term) ir.Statement {
	return ir.NewStatement(s, p, o)
}

// RembrandtFacts returns Rembrandt typed as a painter with three
// paintings: four statements.
func RembrandtFacts() []ir.Statement {
	return []ir.Statement{
		Triple(Rembrandt, RDFType, Painter),
		Triple(Rembrandt, Paints, NightWatch),
		Triple(Rembrandt, Paints, Artemisia),
		Triple(Rembrandt, Paints, Danae),
	}
}

// RangeFacts returns Rembrandt with five dated paintings: eleven
// statements. Four paintings fall in 1631-1635.
func RangeFacts() []ir.Statement {
	return []ir.Statement{
		Triple(Rembrandt, RDFType, Painter),
		Triple(Rembrandt, Paints, Artemisia),
		Triple(Rembrandt, Paints, Danae),
		Triple(Rembrandt, Paints, Jacob),
		Triple(Rembrandt, Paints, Anatomy),
		Triple(Rembrandt, Paints, Belshazzar),
		Triple(Belshazzar, Year, ir.Int(1635)),
		Triple(Artemisia, Year, ir.Int(1634)),
		Triple(Danae, Year, ir.Int(1636)),
		Triple(Jacob, Year, ir.Int(1632)),
		Triple(Anatomy, Year, ir.Int(1632)),
	}
}
