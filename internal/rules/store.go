package rules

import (
	"log/slog"
	"slices"
	"sync"
)

// Store is the append-only rule registry owned by the dispatch pipeline.
// Registrations with an existing name are appended as distinct entries.
// Rules are immutable after New, so snapshots share rule pointers.
type Store struct {
	mu    sync.RWMutex
	rules []*Rule
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds r and returns its zero-based position.
func (s *Store) Append(r *Rule) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.Name == r.Name {
			slog.Warn("rule name already registered, appending duplicate",
				"rule", r.Name,
				"event", "rule_duplicate_name",
			)
			break
		}
	}
	s.rules = append(s.rules, r)
	return len(s.rules) - 1
}

// Snapshot returns the rules in registration order. Later appends do not
// affect a snapshot already taken.
func (s *Store) Snapshot() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules)
}

// Len returns the number of registered rules.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}
