// Package household manages one policy engine instance per household, so a
// single process can guard several accounts with isolated rule sets and
// audit logs.
package household

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/subguard/guardian/internal/logger"
	"github.com/subguard/guardian/policy"
)

// ErrUnknownHousehold reports a lookup for a household that was never created.
var ErrUnknownHousehold = errors.New("unknown household")

// Household pairs one rule store with its engine. Each household is fully
// isolated: decisions made here never reach another household's audit log.
type Household struct {
	ID         string
	PolicyPath string
	Store      *policy.Store
	Engine     *policy.Engine
}

// Manager holds the engines for all households.
type Manager struct {
	mu         sync.RWMutex
	households map[string]*Household
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		households: make(map[string]*Household),
	}
}

// Create loads the policy file at path and registers a household for it.
// The loaded rule set is validated structurally; a household with broken
// configuration is rejected here rather than discovered at evaluation time.
func (m *Manager) Create(id, path string) (*Household, error) {
	if err := validateHouseholdID(id); err != nil {
		return nil, fmt.Errorf("invalid household ID %q: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.households[id]; exists {
		return nil, fmt.Errorf("household %q already exists", id)
	}

	store := policy.NewStore(policy.NewFileSource(path))
	if err := ValidateRuleSet(store.Snapshot()); err != nil {
		return nil, fmt.Errorf("invalid policy configuration for household %q: %w", id, err)
	}

	h := &Household{
		ID:         id,
		PolicyPath: path,
		Store:      store,
		Engine:     policy.NewEngine(store),
	}
	m.households[id] = h

	logger.Info("household created", "household", id, "policies", path)
	return h, nil
}

// Get returns the household by ID.
func (m *Manager) Get(id string) (*Household, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.households[id]
	if !ok {
		return nil, fmt.Errorf("household %q: %w", id, ErrUnknownHousehold)
	}
	return h, nil
}

// List returns all household IDs in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.households))
	for id := range m.households {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reload reloads one household's rule set from its policy file. Structural
// problems in the new rule set are logged, not fatal: the engine keeps
// serving whatever the store loaded (empty and deny-by-default in the
// worst case).
func (m *Manager) Reload(id string) error {
	h, err := m.Get(id)
	if err != nil {
		return err
	}

	if err := h.Store.Reload(); err != nil {
		logger.Error("policy reload failed", "household", id, "error", err)
		return err
	}

	if err := ValidateRuleSet(h.Store.Snapshot()); err != nil {
		logger.Warn("reloaded policy configuration has issues", "household", id, "error", err)
	}

	logger.Info("policies reloaded", "household", id)
	return nil
}

// ReloadAll reloads every household, returning the first error after
// attempting all of them.
func (m *Manager) ReloadAll() error {
	var firstErr error
	for _, id := range m.List() {
		if err := m.Reload(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
