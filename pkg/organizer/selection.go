package organizer

import (
	"sort"
	"sync"
)

// SelectionSet is the user's current bulk-operation working set of photo ids.
// Stale ids (photos no longer in the fetched collection) are tolerated; the
// backend reports them as per-id failures.
type SelectionSet struct {
	mu  sync.Mutex
	ids map[int]struct{}
}

// NewSelectionSet creates an empty selection.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{
		ids: make(map[int]struct{}),
	}
}

// Add puts id into the selection.
func (s *SelectionSet) Add(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// Remove drops id from the selection.
func (s *SelectionSet) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Toggle flips membership of id. Toggling twice restores the original state.
func (s *SelectionSet) Toggle(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[id]; exists {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
}

// SelectAll adds every id from the current page.
func (s *SelectionSet) SelectAll(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the selection.
func (s *SelectionSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int]struct{})
}

// Contains reports whether id is selected.
func (s *SelectionSet) Contains(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.ids[id]
	return exists
}

// Len returns the selection size.
func (s *SelectionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns the selected ids in ascending order.
func (s *SelectionSet) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
