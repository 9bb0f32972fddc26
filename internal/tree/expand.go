package tree

import "sync"

// ExpandState tracks collapsed nodes by xpath. Nodes default to expanded.
// The state is UI-only and never part of the data model.
type ExpandState struct {
	mu        sync.RWMutex
	collapsed map[string]bool
}

// NewExpandState creates an empty expand state
func NewExpandState() *ExpandState {
	return &ExpandState{collapsed: make(map[string]bool)}
}

// IsExpanded reports whether the node at xpath is expanded
func (s *ExpandState) IsExpanded(xp string) bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.collapsed[xp]
}

// Set expands or collapses the node at xpath
func (s *ExpandState) Set(xp string, expanded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expanded {
		delete(s.collapsed, xp)
	} else {
		s.collapsed[xp] = true
	}
}

// Toggle flips the node at xpath and returns its new state
func (s *ExpandState) Toggle(xp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collapsed[xp] {
		delete(s.collapsed, xp)
		return true
	}
	s.collapsed[xp] = true
	return false
}

// Reset expands everything
func (s *ExpandState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collapsed = make(map[string]bool)
}
