package occ

import (
	"sort"

	"github.com/roach88/occgraph/internal/ir"
)

// Delta is the change set published by one commit.
type Delta struct {
	Generation int64          `json:"generation"`
	Added      []ir.Statement `json:"added"`
	Removed    []ir.Statement `json:"removed"`
}

// deltaRegistry keeps deltas in generation order.
//
// Thread-safety: guarded by Store.mu.
type deltaRegistry struct {
	deltas []Delta
}

// publish appends d. Generations must arrive in increasing order.
func (r *deltaRegistry) publish(d Delta) {
	r.deltas = append(r.deltas, d)
}

// since returns the deltas with generation > gen.
func (r *deltaRegistry) since(gen int64) []Delta {
	i := sort.Search(len(r.deltas), func(i int) bool {
		return r.deltas[i].Generation > gen
	})
	return append([]Delta(nil), r.deltas[i:]...)
}

// prune drops deltas no open snapshot needs: those at or below oldest.
// Returns how many were dropped.
func (r *deltaRegistry) prune(oldest int64) int {
	i := sort.Search(len(r.deltas), func(i int) bool {
		return r.deltas[i].Generation > oldest
	})
	if i == 0 {
		return 0
	}
	r.deltas = append([]Delta(nil), r.deltas[i:]...)
	return i
}

func (r *deltaRegistry) len() int {
	return len(r.deltas)
}

func (r *deltaRegistry) clear() {
	r.deltas = nil
}
