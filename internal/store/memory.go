package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

const btreeDegree = 32

// version is one stored lifetime of a statement.
type version struct {
	stmt    ir.Statement
	terms   [4]string // canonical encodings, S P O C
	added   int64
	removed int64 // 0 while live
}

// indexItem orders versions by an index key, then by added generation.
type indexItem struct {
	key string
	v   *version
}

func (a indexItem) Less(than btree.Item) bool {
	b := than.(indexItem)
	if a.key != b.key {
		return a.key < b.key
	}
	return a.addedGen() < b.addedGen()
}

func (a indexItem) addedGen() int64 {
	if a.v == nil {
		return 0
	}
	return a.v.added
}

// index orders: SPOC serves subject lookups, POSC predicate lookups,
// OSPC object-only lookups.
var indexOrders = [3][4]int{
	{0, 1, 2, 3},
	{1, 2, 0, 3},
	{2, 0, 1, 3},
}

func indexKey(terms [4]string, order [4]int) string {
	var b strings.Builder
	for _, i := range order {
		b.WriteString(terms[i])
		b.WriteByte(0)
	}
	return b.String()
}

// MemoryStore is an in-process FactStore backed by three google/btree
// indexes over versioned statements.
//
// Thread-safety: readers share an RWMutex read lock; Apply and Compact
// take the write lock.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes [3]*btree.BTree
	live    map[ir.Statement]*version
	gen     int64
	horizon int64
	commits []CommitRecord
	closed  bool
}

// NewMemoryStore creates an empty store at generation 0.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{live: map[ir.Statement]*version{}}
	for i := range m.indexes {
		m.indexes[i] = btree.New(btreeDegree)
	}
	return m
}

// Generation returns the latest committed generation.
func (m *MemoryStore) Generation(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return m.gen, nil
}

// Match returns statements visible at gen matching p's constant slots.
func (m *MemoryStore) Match(ctx context.Context, gen int64, p pattern.Pattern) ([]ir.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkRead(gen); err != nil {
		return nil, err
	}

	idx, prefix, err := choosePrefix(p)
	if err != nil {
		return nil, err
	}

	var out []ir.Statement
	visit := func(item btree.Item) bool {
		it := item.(indexItem)
		if !strings.HasPrefix(it.key, prefix) {
			return false
		}
		if visible(it.v.added, it.v.removed, gen) && p.Matches(it.v.stmt) {
			out = append(out, it.v.stmt)
		}
		return true
	}
	if prefix == "" {
		m.indexes[idx].Ascend(visit)
	} else {
		m.indexes[idx].AscendGreaterOrEqual(indexItem{key: prefix}, visit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ir.SortStatements(out)
	return out, nil
}

// choosePrefix picks the index whose leading columns are bound by the
// pattern's constants and returns the key prefix to scan.
func choosePrefix(p pattern.Pattern) (int, string, error) {
	slots := p.Slots()
	var enc [3]string
	var bound [3]bool
	for i := 0; i < 3; i++ {
		c, ok := slots[i].(pattern.Const)
		if !ok {
			continue
		}
		s, err := ir.EncodeTerm(c.Value)
		if err != nil {
			return 0, "", err
		}
		enc[i], bound[i] = s, true
	}

	for idx, order := range indexOrders {
		if !bound[order[0]] {
			continue
		}
		var b strings.Builder
		for _, col := range order[:3] {
			if !bound[col] {
				break
			}
			b.WriteString(enc[col])
			b.WriteByte(0)
		}
		return idx, b.String(), nil
	}
	return 0, "", nil
}

// Apply commits one generation.
func (m *MemoryStore) Apply(ctx context.Context, added, removed []ir.Statement) (int64, error) {
	if err := validateBatch(added, removed); err != nil {
		return 0, fmt.Errorf("apply: %w", err)
	}

	// Encode before locking so a failure leaves the store untouched.
	encoded := make([][4]string, len(added))
	for i, st := range added {
		terms, err := encodeStatement(st)
		if err != nil {
			return 0, fmt.Errorf("apply: %w", err)
		}
		encoded[i] = terms
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	next := m.gen + 1
	rec := CommitRecord{Generation: next}
	for _, st := range removed {
		if v, ok := m.live[st]; ok {
			v.removed = next
			delete(m.live, st)
			rec.Removed++
		}
	}
	for i, st := range added {
		if _, ok := m.live[st]; ok {
			continue
		}
		v := &version{stmt: st, terms: encoded[i], added: next}
		for idx, order := range indexOrders {
			m.indexes[idx].ReplaceOrInsert(indexItem{key: indexKey(v.terms, order), v: v})
		}
		m.live[st] = v
		rec.Added++
	}
	m.gen = next
	m.commits = append(m.commits, rec)
	return next, nil
}

// Count returns the number of statements visible at gen.
func (m *MemoryStore) Count(ctx context.Context, gen int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkRead(gen); err != nil {
		return 0, err
	}
	if gen == m.gen {
		return int64(len(m.live)), nil
	}
	var n int64
	m.indexes[0].Ascend(func(item btree.Item) bool {
		v := item.(indexItem).v
		if visible(v.added, v.removed, gen) {
			n++
		}
		return true
	})
	return n, nil
}

// Compact drops versions removed at or before the given generation.
func (m *MemoryStore) Compact(ctx context.Context, before int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if before <= m.horizon {
		return nil
	}

	var dead []*version
	m.indexes[0].Ascend(func(item btree.Item) bool {
		v := item.(indexItem).v
		if v.removed != 0 && v.removed <= before {
			dead = append(dead, v)
		}
		return true
	})
	for _, v := range dead {
		for idx, order := range indexOrders {
			m.indexes[idx].Delete(indexItem{key: indexKey(v.terms, order), v: v})
		}
	}
	m.horizon = before
	return nil
}

// Commits returns the commit log.
func (m *MemoryStore) Commits(ctx context.Context) ([]CommitRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return append([]CommitRecord{}, m.commits...), nil
}

// Close releases the indexes. Further calls return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.live = nil
	return nil
}

func (m *MemoryStore) checkRead(gen int64) error {
	if m.closed {
		return ErrClosed
	}
	if gen < m.horizon {
		return fmt.Errorf("%w: generation %d is below horizon %d", ErrCompacted, gen, m.horizon)
	}
	return nil
}

func encodeStatement(st ir.Statement) ([4]string, error) {
	var out [4]string
	for i, t := range st.Terms() {
		s, err := ir.EncodeTerm(t)
		if err != nil {
			return out, err
		}
		out[i] = s
	}
	return out, nil
}
