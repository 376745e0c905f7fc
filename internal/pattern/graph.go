package pattern

// GraphPattern is one read: a tree of pattern lists combined with join,
// optional, union, filter, and projection.
//
// This is a sealed interface - only types in this package implement it.
// All nodes produce a bag of Bindings when evaluated.
type GraphPattern interface {
	graphNode() // Marker method - seals interface to this package
}

// Basic is a conjunction of statement patterns (a basic graph pattern).
//
// Semantics: the natural join of the solutions of each pattern. An empty
// Basic produces exactly one empty solution.
type Basic struct {
	Patterns []Pattern
}

func (Basic) graphNode() {}

// Join is the inner join of two sub-patterns on their shared variables.
type Join struct {
	Left  GraphPattern
	Right GraphPattern
}

func (Join) graphNode() {}

// Optional is a left outer join: every Left solution is kept, extended by
// each compatible Right solution when there is one.
type Optional struct {
	Left  GraphPattern
	Right GraphPattern
}

func (Optional) graphNode() {}

// Union concatenates the solutions of both branches.
type Union struct {
	Left  GraphPattern
	Right GraphPattern
}

func (Union) graphNode() {}

// Filter keeps the Inner solutions for which Expr evaluates to true.
// Evaluation errors (unbound variables, type mismatches) count as false.
type Filter struct {
	Inner GraphPattern
	Expr  Expr
}

func (Filter) graphNode() {}

// Projection restricts Inner solutions to Vars. Duplicates are kept.
type Projection struct {
	Inner GraphPattern
	Vars  []string
}

func (Projection) graphNode() {}

// NewBasic wraps patterns in a Basic node.
func NewBasic(patterns ...Pattern) Basic {
	return Basic{Patterns: patterns}
}

// Deref normalizes pointer node forms to values. Unknown types are
// returned unchanged.
func Deref(gp GraphPattern) GraphPattern {
	switch n := gp.(type) {
	case *Basic:
		return *n
	case *Join:
		return *n
	case *Optional:
		return *n
	case *Union:
		return *n
	case *Filter:
		return *n
	case *Projection:
		return *n
	}
	return gp
}

// Leaves returns every statement pattern in the tree, left to right.
func Leaves(gp GraphPattern) []Pattern {
	var out []Pattern
	var walk func(GraphPattern)
	walk = func(gp GraphPattern) {
		switch n := Deref(gp).(type) {
		case Basic:
			out = append(out, n.Patterns...)
		case Join:
			walk(n.Left)
			walk(n.Right)
		case Optional:
			walk(n.Left)
			walk(n.Right)
		case Union:
			walk(n.Left)
			walk(n.Right)
		case Filter:
			walk(n.Inner)
		case Projection:
			walk(n.Inner)
		}
	}
	walk(gp)
	return out
}

// Vars returns the distinct variables bound by the tree's leaves in
// first-occurrence order. Projection does not hide variables here.
func Vars(gp GraphPattern) []string {
	var names []string
	seen := map[string]bool{}
	for _, p := range Leaves(gp) {
		for _, v := range p.Vars() {
			if !seen[v] {
				seen[v] = true
				names = append(names, v)
			}
		}
	}
	return names
}
