package pattern

import (
	"strings"

	"github.com/roach88/occgraph/internal/ir"
)

// Pattern is a statement template. A nil slot is treated as Wildcard.
type Pattern struct {
	Subject   Slot
	Predicate Slot
	Object    Slot
	Context   Slot
}

// New creates a pattern over all graphs.
func New(s, p, o Slot) Pattern {
	return Pattern{Subject: s, Predicate: p, Object: o}
}

// FromTerms builds a pattern where nil terms are wildcards. A nil context
// matches every graph.
func FromTerms(s, p, o, ctx ir.Term) Pattern {
	return Pattern{
		Subject:   SlotFromTerm(s),
		Predicate: SlotFromTerm(p),
		Object:    SlotFromTerm(o),
		Context:   SlotFromTerm(ctx),
	}
}

// InContext returns a copy of p with the given context slot.
func (p Pattern) InContext(ctx Slot) Pattern {
	p.Context = ctx
	return p
}

// Slots returns the four slots in S, P, O, C order, with nil slots
// normalized to Wildcard.
func (p Pattern) Slots() [4]Slot {
	return [4]Slot{
		derefSlot(p.Subject),
		derefSlot(p.Predicate),
		derefSlot(p.Object),
		derefSlot(p.Context),
	}
}

// Vars returns the distinct variable names in slot order.
func (p Pattern) Vars() []string {
	var names []string
	seen := map[string]bool{}
	for _, s := range p.Slots() {
		if v, ok := s.(Var); ok && !seen[v.Name] {
			seen[v.Name] = true
			names = append(names, v.Name)
		}
	}
	return names
}

// Unify matches a statement against the pattern. It returns the variable
// bindings produced and whether the statement matches: every Const slot
// must equal the statement's term and repeated variables must bind the
// same term.
func (p Pattern) Unify(s ir.Statement) (Bindings, bool) {
	var b Bindings
	terms := s.Terms()
	for i, slot := range p.Slots() {
		switch sl := slot.(type) {
		case Const:
			if !ir.Equal(sl.Value, terms[i]) {
				return nil, false
			}
		case Var:
			if terms[i] == nil {
				// Only the context can be nil; the default graph has no name.
				return nil, false
			}
			if b == nil {
				b = Bindings{}
			}
			if prev, ok := b[sl.Name]; ok {
				if !ir.Equal(prev, terms[i]) {
					return nil, false
				}
				continue
			}
			b[sl.Name] = terms[i]
		}
	}
	if b == nil {
		b = Bindings{}
	}
	return b, true
}

// Matches reports whether the statement unifies with the pattern.
func (p Pattern) Matches(s ir.Statement) bool {
	_, ok := p.Unify(s)
	return ok
}

// Substitute replaces bound variables with constants.
func (p Pattern) Substitute(b Bindings) Pattern {
	sub := func(s Slot) Slot {
		s = derefSlot(s)
		if v, ok := s.(Var); ok {
			if t, bound := b[v.Name]; bound {
				return Const{Value: t}
			}
		}
		return s
	}
	return Pattern{
		Subject:   sub(p.Subject),
		Predicate: sub(p.Predicate),
		Object:    sub(p.Object),
		Context:   sub(p.Context),
	}
}

// String renders the pattern as "?s <p> *" with an optional graph slot.
func (p Pattern) String() string {
	slots := p.Slots()
	parts := make([]string, 0, 4)
	for i, s := range slots {
		if i == 3 {
			if _, ok := s.(Wildcard); ok {
				break
			}
			parts = append(parts, "@"+slotString(s))
			break
		}
		parts = append(parts, slotString(s))
	}
	return strings.Join(parts, " ")
}

func slotString(s Slot) string {
	switch v := s.(type) {
	case Const:
		if v.Value == nil {
			return "default"
		}
		return v.Value.String()
	case Var:
		return "?" + v.Name
	}
	return "*"
}
