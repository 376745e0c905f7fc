package pattern

import "github.com/roach88/occgraph/internal/ir"

// Expr is a filter predicate over one solution's bindings.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// VarRef evaluates to the term bound to Name. Unbound is an error.
type VarRef struct {
	Name string
}

func (VarRef) exprNode() {}

// Literal evaluates to a constant term.
type Literal struct {
	Value ir.Term
}

func (Literal) exprNode() {}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Valid reports whether op is a known operator.
func (op CompareOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare applies Op to Left and Right.
//
// = and != accept any terms. Ordering operators require both sides to be
// Int or both to be Text; anything else is a type error.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (Compare) exprNode() {}

// And is true when every operand is true. Empty And is true.
type And struct {
	Exprs []Expr
}

func (And) exprNode() {}

// Or is true when any operand is true. Empty Or is false.
type Or struct {
	Exprs []Expr
}

func (Or) exprNode() {}

// Not negates its operand.
type Not struct {
	Expr Expr
}

func (Not) exprNode() {}

// Bound is true when Name has a binding in the solution.
type Bound struct {
	Name string
}

func (Bound) exprNode() {}

// Regex matches the string form of Arg (IRI or Text) against Pattern
// using Go RE2 syntax.
type Regex struct {
	Arg     Expr
	Pattern string
}

func (Regex) exprNode() {}

// Between is shorthand for lo <= v AND v <= hi.
func Between(v Expr, lo, hi ir.Term) Expr {
	return And{Exprs: []Expr{
		Compare{Op: OpGe, Left: v, Right: Literal{Value: lo}},
		Compare{Op: OpLe, Left: v, Right: Literal{Value: hi}},
	}}
}

// DerefExpr normalizes pointer expression forms to values.
func DerefExpr(e Expr) Expr {
	switch n := e.(type) {
	case *VarRef:
		return *n
	case *Literal:
		return *n
	case *Compare:
		return *n
	case *And:
		return *n
	case *Or:
		return *n
	case *Not:
		return *n
	case *Bound:
		return *n
	case *Regex:
		return *n
	}
	return e
}
