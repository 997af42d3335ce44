// Package guard tracks transaction ids with an outstanding settlement job in
// this process.
package guard

import "sync"

type Set struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func New() *Set {
	return &Set{ids: make(map[string]struct{})}
}

// TryAdd inserts id and reports whether it was absent. Exactly one of any
// number of concurrent callers with the same id gets true.
func (s *Set) TryAdd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Set) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ids[id]
	return ok
}

// Remove is a no-op for ids that are not present.
func (s *Set) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ids, id)
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids)
}
