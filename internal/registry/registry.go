// SPDX-License-Identifier: MPL-2.0

// Package registry holds the live module instances of a host, keyed by name
// and iterated in insertion order.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrDuplicateModule is returned when a name is already registered.
	ErrDuplicateModule = errors.New("duplicate module")
	// ErrModuleNotFound is returned for unknown names.
	ErrModuleNotFound = errors.New("module not found")
)

// Registry maps names to values of type T. It is safe for concurrent use.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

// Add inserts v under name. A duplicate name fails without mutation.
func (r *Registry[T]) Add(name string, v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}
	r.items[name] = v
	r.order = append(r.order, name)
	return nil
}

// Remove deletes name and returns the value it held.
func (r *Registry[T]) Remove(name string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	delete(r.items, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return v, nil
}

// Get returns the value registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[name]
	return v, ok
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns registered names in insertion order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Values returns a snapshot of the values in insertion order. Callers may
// mutate the registry while iterating the snapshot.
func (r *Registry[T]) Values() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.items[n])
	}
	return out
}
