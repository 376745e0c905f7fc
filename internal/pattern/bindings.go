package pattern

import (
	"maps"
	"slices"
	"strings"

	"github.com/roach88/occgraph/internal/ir"
)

// Bindings maps variable names to terms for one solution.
type Bindings map[string]ir.Term

// Clone returns a shallow copy.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	maps.Copy(out, b)
	return out
}

// Compatible reports whether b and other agree on every shared variable.
func (b Bindings) Compatible(other Bindings) bool {
	small, large := b, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for k, v := range small {
		if ov, ok := large[k]; ok && !ir.Equal(v, ov) {
			return false
		}
	}
	return true
}

// Merge returns the union of b and other. Callers check Compatible first.
func (b Bindings) Merge(other Bindings) Bindings {
	out := make(Bindings, len(b)+len(other))
	maps.Copy(out, b)
	maps.Copy(out, other)
	return out
}

// Project keeps only the named variables.
func (b Bindings) Project(vars []string) Bindings {
	out := make(Bindings, len(vars))
	for _, v := range vars {
		if t, ok := b[v]; ok {
			out[v] = t
		}
	}
	return out
}

// Names returns the bound variable names in sorted order.
func (b Bindings) Names() []string {
	return slices.Sorted(maps.Keys(b))
}

// String renders the solution as "?a=<x> ?b=3" in name order.
func (b Bindings) String() string {
	parts := make([]string, 0, len(b))
	for _, name := range b.Names() {
		parts = append(parts, "?"+name+"="+b[name].String())
	}
	return strings.Join(parts, " ")
}

// CompareBindings orders solutions by their sorted (name, term) pairs.
func CompareBindings(a, b Bindings) int {
	an, bn := a.Names(), b.Names()
	for i := 0; i < len(an) && i < len(bn); i++ {
		if c := strings.Compare(an[i], bn[i]); c != 0 {
			return c
		}
		if c := ir.Compare(a[an[i]], b[bn[i]]); c != 0 {
			return c
		}
	}
	return len(an) - len(bn)
}

// SortBindings sorts solutions into a deterministic order.
func SortBindings(bs []Bindings) {
	slices.SortFunc(bs, CompareBindings)
}
