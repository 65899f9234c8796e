// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestSetMerge(t *testing.T) {
	t.Parallel()

	var s Set
	if added := s.Merge("MESSAGES", "VOICE", "MESSAGES", ""); !slices.Equal(added, []string{"MESSAGES", "VOICE"}) {
		t.Errorf("first Merge added %v", added)
	}
	if added := s.Merge("VOICE", "PRESENCE"); !slices.Equal(added, []string{"PRESENCE"}) {
		t.Errorf("second Merge added %v", added)
	}
	if got := s.List(); !slices.Equal(got, []string{"MESSAGES", "VOICE", "PRESENCE"}) {
		t.Errorf("List() = %v", got)
	}
	if s.Len() != 3 || !s.Contains("VOICE") || s.Contains("MEMBERS") {
		t.Error("Len/Contains disagree with List")
	}
}

func TestSetListIsCopy(t *testing.T) {
	t.Parallel()

	var s Set
	s.Merge("A")
	l := s.List()
	l[0] = "mutated"
	if s.List()[0] != "A" {
		t.Error("List() must return a copy")
	}
}

func TestSetSeal(t *testing.T) {
	t.Parallel()

	var s Set
	s.Merge("A")
	if s.Sealed() {
		t.Fatal("new set should not be sealed")
	}
	if got := s.Seal(); !slices.Equal(got, []string{"A"}) {
		t.Errorf("Seal() = %v", got)
	}
	if !s.Sealed() {
		t.Error("Sealed() = false after Seal")
	}
	if added := s.Merge("B"); len(added) != 1 {
		t.Error("merge after seal should still add")
	}
}

func TestSetConcurrentMerge(t *testing.T) {
	t.Parallel()

	var (
		s  Set
		wg sync.WaitGroup
	)
	for i := range 20 {
		wg.Go(func() {
			s.Merge(fmt.Sprintf("CAP_%d", i%5))
		})
	}
	wg.Wait()

	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
}
