// Package pathset tracks which paths the monitor has observed and which it
// has already attempted to tag. Both sets are mutated only from the scheduler
// goroutine, so no locking is required; membership is monotonic and is
// cleared only by process restart.
package pathset

// Set is a grow-only set of absolute paths.
type Set struct {
	members map[string]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{members: make(map[string]struct{})}
}

// Add records path. It reports whether the path was newly added.
func (s *Set) Add(path string) bool {
	if _, ok := s.members[path]; ok {
		return false
	}
	s.members[path] = struct{}{}
	return true
}

// Contains reports whether path has been recorded.
func (s *Set) Contains(path string) bool {
	_, ok := s.members[path]
	return ok
}

// Len returns the number of recorded paths.
func (s *Set) Len() int {
	return len(s.members)
}
