package tracker

import "sort"

// SelectionSet is the set of record ids picked for a bulk update.
// It is never persisted and never pruned by filter changes: ids hidden
// by the current view stay selected. Not safe for concurrent use.
type SelectionSet struct {
	ids map[int]struct{}
}

// NewSelectionSet returns a set holding ids.
func NewSelectionSet(ids ...int) *SelectionSet {
	s := &SelectionSet{ids: make(map[int]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

func (s *SelectionSet) init() {
	if s.ids == nil {
		s.ids = make(map[int]struct{})
	}
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *SelectionSet) Toggle(id int) bool {
	s.init()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Add selects ids.
func (s *SelectionSet) Add(ids ...int) {
	s.init()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Remove deselects ids.
func (s *SelectionSet) Remove(ids ...int) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Clear deselects everything.
func (s *SelectionSet) Clear() {
	s.ids = make(map[int]struct{})
}

// SelectAllVisible adds every visible id; nothing else changes.
func (s *SelectionSet) SelectAllVisible(visible []int) {
	s.Add(visible...)
}

// ClearVisible removes every visible id; hidden selections survive.
func (s *SelectionSet) ClearVisible(visible []int) {
	s.Remove(visible...)
}

// Has reports whether id is selected.
func (s *SelectionSet) Has(id int) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *SelectionSet) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids in ascending order.
func (s *SelectionSet) IDs() []int {
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy.
func (s *SelectionSet) Clone() *SelectionSet {
	return NewSelectionSet(s.IDs()...)
}
