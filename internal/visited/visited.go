// Package visited tracks per-search traversal state over graph nodes.
package visited

// Set records which nodes a single search has touched. Marks are scoped to a
// generation token, so Reset is O(1): it bumps the token instead of clearing
// storage. Not safe for concurrent use.
type Set struct {
	gen   []uint32
	token uint32
}

// New creates a set sized for the given number of nodes. The set grows on
// demand when visited with larger ids.
func New(capacity int) *Set {
	return &Set{
		gen:   make([]uint32, capacity),
		token: 1,
	}
}

// Visit marks a node as visited.
func (s *Set) Visit(id uint32) {
	s.ensure(int(id))
	s.gen[id] = s.token
}

// TryVisit marks a node and reports whether this was the first visit in the
// current generation.
func (s *Set) TryVisit(id uint32) bool {
	s.ensure(int(id))
	if s.gen[id] == s.token {
		return false
	}
	s.gen[id] = s.token
	return true
}

// Visited returns true if the node has been visited in the current generation.
func (s *Set) Visited(id uint32) bool {
	if int(id) >= len(s.gen) {
		return false
	}
	return s.gen[id] == s.token
}

// Reset prepares the set for a new search by advancing the generation token.
// On token overflow (once every 2^32 resets) the storage is zeroed.
func (s *Set) Reset() {
	s.token++
	if s.token == 0 {
		clear(s.gen)
		s.token = 1
	}
}

// EnsureCapacity grows the set to hold at least capacity nodes.
func (s *Set) EnsureCapacity(capacity int) {
	if capacity > 0 {
		s.ensure(capacity - 1)
	}
}

func (s *Set) ensure(idx int) {
	if idx < len(s.gen) {
		return
	}
	newCap := len(s.gen) * 2
	if newCap <= idx {
		newCap = idx + 1
	}
	grown := make([]uint32, newCap)
	copy(grown, s.gen)
	s.gen = grown
}
