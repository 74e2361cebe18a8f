package policy

import (
	"sync"

	"github.com/subguard/guardian/internal/logger"
)

// Store holds the active rule set snapshot and the resource catalog.
// Reads are served from whatever snapshot is active when the evaluation
// starts; Reload swaps the snapshot wholesale, never partially.
type Store struct {
	src    Source
	mu     sync.RWMutex
	active *RuleSet
}

// NewStore creates a store and performs the initial load. A load failure
// does not fail construction: the store starts from the empty,
// deny-by-default rule set and logs the error.
func NewStore(src Source) *Store {
	s := &Store{src: src, active: EmptyRuleSet()}
	if err := s.Reload(); err != nil {
		logger.Error("initial policy load failed, starting with empty rule set", "error", err)
	}
	return s
}

// Reload loads a complete new rule set from the source and swaps it in.
// On failure the active snapshot is replaced with the empty rule set
// (deny-by-default) and the error is returned; a partially-loaded rule set
// is never visible.
func (s *Store) Reload() error {
	rs, err := s.src.Load()
	if err != nil {
		s.mu.Lock()
		s.active = EmptyRuleSet()
		s.mu.Unlock()
		logger.ReloadRecorded(true)
		return err
	}

	s.mu.Lock()
	s.active = rs
	s.mu.Unlock()
	logger.ReloadRecorded(false)
	return nil
}

// Snapshot returns the active rule set. The returned value is immutable;
// callers evaluating against it are unaffected by a concurrent Reload.
func (s *Store) Snapshot() *RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// FindResource looks up a resource by identifier in the active snapshot.
// Absence is a valid, non-exceptional result.
func (s *Store) FindResource(id string) (Resource, bool) {
	return s.Snapshot().FindResource(id)
}

// FindResource looks up a resource by identifier within this snapshot.
func (rs *RuleSet) FindResource(id string) (Resource, bool) {
	for _, r := range rs.Catalog {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}
