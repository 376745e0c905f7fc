package pattern

import "github.com/roach88/occgraph/internal/ir"

// Slot is one position of a Pattern.
// Only Const, Var, and Wildcard implement it.
type Slot interface {
	slotNode()
}

// Const matches exactly one term. In a context slot a nil Value selects
// the default graph.
type Const struct {
	Value ir.Term
}

func (Const) slotNode() {}

// Var matches any term and binds it to Name. Repeated names must unify.
type Var struct {
	Name string
}

func (Var) slotNode() {}

// Wildcard matches any term without binding it.
type Wildcard struct{}

func (Wildcard) slotNode() {}

// C returns a Const slot.
func C(t ir.Term) Slot { return Const{Value: t} }

// V returns a Var slot.
func V(name string) Slot { return Var{Name: name} }

// Any returns a Wildcard slot.
func Any() Slot { return Wildcard{} }

// DefaultGraph returns a context slot matching only the default graph.
func DefaultGraph() Slot { return Const{Value: nil} }

// SlotFromTerm returns Wildcard for a nil term and Const otherwise.
// Used by the size/remove surface where nil means "any".
func SlotFromTerm(t ir.Term) Slot {
	if t == nil {
		return Wildcard{}
	}
	return Const{Value: t}
}

func derefSlot(s Slot) Slot {
	switch v := s.(type) {
	case *Const:
		return *v
	case *Var:
		return *v
	case *Wildcard:
		return Wildcard{}
	case nil:
		return Wildcard{}
	}
	return s
}
