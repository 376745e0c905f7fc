package occ

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator names transactions. The ID appears in logs, conflict errors
// and watch notifications.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default: v7 UUIDs carry their creation time in
// the high bits, so transaction IDs in a log sort by begin order.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a scripted list of IDs, one per Begin. The
// harness uses it so traces name transactions by their scenario names.
//
// Safe for concurrent use.
type FixedGenerator struct {
	mu   sync.Mutex
	ids  []string
	next int
}

// NewFixedGenerator returns a generator yielding ids in order.
//
//	gen := NewFixedGenerator("A", "B")
//	gen.Generate() // "A"
//	gen.Generate() // "B"
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next scripted ID. Running past the end of the list
// is a misconfigured test and panics.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.ids) {
		panic(fmt.Sprintf("occ: FixedGenerator exhausted after %d ids", len(g.ids)))
	}
	id := g.ids[g.next]
	g.next++
	return id
}
