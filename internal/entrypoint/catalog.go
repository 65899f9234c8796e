// SPDX-License-Identifier: MPL-2.0

// Package entrypoint turns a module descriptor into a hostapi.Module.
//
// Three entry kinds exist. "builtin:<id>" resolves a factory in a Catalog
// of modules compiled into the host. "script" builds a module whose
// commands are shell snippets from the manifest, run by an embedded
// interpreter. "exec:<path>" runs an executable shipped inside the package
// as a subprocess while the module is enabled.
package entrypoint

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/modhost/modhost/pkg/hostapi"
	"github.com/modhost/modhost/pkg/modmanifest"
)

var (
	// ErrUnknownBuiltin is returned when a builtin id has no factory.
	ErrUnknownBuiltin = errors.New("unknown builtin module")
	// ErrUnsupportedEntry is returned for entry kinds the catalog cannot build.
	ErrUnsupportedEntry = errors.New("unsupported entry point")
)

// Catalog maps builtin ids to module factories. It is safe for concurrent
// use.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]hostapi.Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]hostapi.Factory)}
}

// Register adds a builtin factory. It panics on an empty id, a nil factory
// or a duplicate id, since those are programming errors in the host binary.
func (c *Catalog) Register(id string, f hostapi.Factory) {
	if id == "" || f == nil {
		panic("entrypoint: Register requires an id and a factory")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[id]; exists {
		panic(fmt.Sprintf("entrypoint: builtin %q registered twice", id))
	}
	c.factories[id] = f
}

// Lookup returns the factory registered under id.
func (c *Catalog) Lookup(id string) (hostapi.Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[id]
	return f, ok
}

// IDs returns the registered ids, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.factories))
	for id := range c.factories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Instantiate builds a fresh module value for d.
func (c *Catalog) Instantiate(d *modmanifest.Descriptor) (hostapi.Module, error) {
	switch d.Entry.Kind() {
	case modmanifest.EntryBuiltin:
		f, ok := c.Lookup(d.Entry.Target())
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBuiltin, d.Entry.Target())
		}
		m := f()
		if m == nil {
			return nil, fmt.Errorf("builtin %s returned a nil module", d.Entry.Target())
		}
		return m, nil
	case modmanifest.EntryScript:
		return NewScriptModule(d)
	case modmanifest.EntryExec:
		return NewExecModule(d)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntry, d.Entry)
	}
}
