// SPDX-License-Identifier: MPL-2.0

// Package capability accumulates the capability requests of loaded modules.
//
// The set is merge-only: unloading a module never withdraws what it asked
// for, because the front end reads the set once when it connects.
package capability

import (
	"slices"
	"sync"
)

// Set is a deduplicated, insertion-ordered capability list. The zero value
// is ready to use.
type Set struct {
	mu     sync.Mutex
	order  []string
	seen   map[string]struct{}
	sealed bool
}

// Merge adds names and returns the ones that were not present yet.
func (s *Set) Merge(names ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}

	var added []string
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := s.seen[n]; ok {
			continue
		}
		s.seen[n] = struct{}{}
		s.order = append(s.order, n)
		added = append(added, n)
	}
	return added
}

// Contains reports whether name has been merged.
func (s *Set) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[name]
	return ok
}

// List returns a copy of the set in merge order.
func (s *Set) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Len returns the number of distinct capabilities.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Seal marks the set as handed to the front end and returns its contents.
// Later merges still succeed; Sealed lets callers warn that they arrive
// too late for the current connection.
func (s *Set) Seal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	return slices.Clone(s.order)
}

// Sealed reports whether Seal has been called.
func (s *Set) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}
