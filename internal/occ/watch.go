package occ

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// WatchInfo describes a named query and the last commit that changed its
// result.
type WatchInfo struct {
	Name    string               `json:"name"`
	Pattern pattern.GraphPattern `json:"-"`
	Hash    string               `json:"hash"`

	// LastModified is the generation of the last commit that changed the
	// query's solutions, or the generation at registration.
	LastModified int64 `json:"last_modified"`

	// Tag identifies the result version: a hash of name and LastModified.
	Tag string `json:"tag"`

	// Changes counts commits that changed the result since registration.
	Changes int `json:"changes"`
}

// Watch registers a named query. Re-registering a name replaces it.
func (s *Store) Watch(name string, gp pattern.GraphPattern) (WatchInfo, error) {
	if name == "" {
		return WatchInfo{}, errors.New("watch name is required")
	}
	if err := pattern.Validate(gp); err != nil {
		return WatchInfo{}, fmt.Errorf("watch %q: %w", name, err)
	}
	hash, err := pattern.Hash(gp)
	if err != nil {
		return WatchInfo{}, fmt.Errorf("watch %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return WatchInfo{}, &TxError{Code: ErrCodeIllegalState, Message: "store is shut down"}
	}
	w := &WatchInfo{
		Name:         name,
		Pattern:      gp,
		Hash:         hash,
		LastModified: s.gen,
		Tag:          ir.WatchTag(name, s.gen),
	}
	s.watches[name] = w
	return *w, nil
}

// WatchInfo returns the current state of a named query.
func (s *Store) WatchInfo(name string) (WatchInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[name]
	if !ok {
		return WatchInfo{}, false
	}
	return *w, true
}

// Watches returns every named query, sorted by name.
func (s *Store) Watches() []WatchInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WatchInfo, 0, len(s.watches))
	for _, name := range sortedWatchNames(s.watches) {
		out = append(out, *s.watches[name])
	}
	return out
}

// Unwatch removes a named query. Reports whether it existed.
func (s *Store) Unwatch(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[name]
	delete(s.watches, name)
	return ok
}

// notifyWatches runs under commitMu, right after d is published, so the
// generations it reads are not yet compacted.
func (s *Store) notifyWatches(ctx context.Context, d Delta) {
	s.mu.Lock()
	watches := make([]WatchInfo, 0, len(s.watches))
	for _, name := range sortedWatchNames(s.watches) {
		watches = append(watches, *s.watches[name])
	}
	s.mu.Unlock()

	for _, w := range watches {
		affected, err := s.validator.Affects(ctx, w.Pattern, d)
		if err != nil {
			s.logger.Warn("watch check failed", "watch", w.Name, "generation", d.Generation, "error", err)
			continue
		}
		if !affected {
			continue
		}

		s.mu.Lock()
		if cur, ok := s.watches[w.Name]; ok && cur.Hash == w.Hash {
			cur.LastModified = d.Generation
			cur.Tag = ir.WatchTag(w.Name, d.Generation)
			cur.Changes++
		}
		s.mu.Unlock()

		s.metrics.watchNotifications.WithLabelValues(w.Name).Inc()
		s.logger.Debug("watch changed", "watch", w.Name, "generation", d.Generation)
	}
}
