// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/modhost/modhost/internal/entrypoint"
	"github.com/modhost/modhost/internal/isolate"
	"github.com/modhost/modhost/internal/module"
	"github.com/modhost/modhost/pkg/hostapi"
	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/charmbracelet/log"
)

type (
	// StoreFunc returns the data store namespace of a module. It may be nil
	// when the host runs without a data store.
	StoreFunc func(moduleName string) hostapi.Store

	// Config holds the loader's collaborators.
	Config struct {
		Catalog  *entrypoint.Catalog
		Commands module.CommandSink
		Stores   StoreFunc
		// DataRoot is the parent of every module's data directory.
		DataRoot    string
		GracePeriod time.Duration
		Logger      *log.Logger
	}

	// Loader turns package directories into module instances.
	Loader struct {
		catalog  *entrypoint.Catalog
		commands module.CommandSink
		stores   StoreFunc
		dataRoot string
		grace    time.Duration
		logger   *log.Logger
	}
)

// New creates a loader. A nil catalog is replaced by an empty one, so only
// script and exec entries resolve.
func New(cfg Config) *Loader {
	l := &Loader{
		catalog:  cfg.Catalog,
		commands: cfg.Commands,
		stores:   cfg.Stores,
		dataRoot: cfg.DataRoot,
		grace:    cfg.GracePeriod,
		logger:   cfg.Logger,
	}
	if l.catalog == nil {
		l.catalog = entrypoint.NewCatalog()
	}
	if l.grace <= 0 {
		l.grace = isolate.DefaultGracePeriod
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard)
	}
	return l
}

// GracePeriod returns the per-worker wait applied by new boundaries.
func (l *Loader) GracePeriod() time.Duration { return l.grace }

// Describe parses the manifest of the package at path.
func (l *Loader) Describe(path string) (*modmanifest.Descriptor, error) {
	return modmanifest.ParseDir(path)
}

// Instantiate builds the module named by d's entry point inside a new
// boundary. The boundary is closed again if the entry point cannot be
// built, so a failed call leaves nothing behind.
func (l *Loader) Instantiate(d *modmanifest.Descriptor, symbols module.SymbolResolver) (*module.Instance, error) {
	name := string(d.Name)
	b := isolate.New(name,
		isolate.WithGracePeriod(l.grace),
		isolate.WithLogger(l.logger.WithPrefix(name)),
	)

	m, err := l.build(d)
	if err != nil {
		if closeErr := b.Close(); closeErr != nil {
			l.logger.Warn("closing boundary of failed module", "module", name, "err", closeErr)
		}
		return nil, err
	}

	var store hostapi.Store
	if l.stores != nil {
		store = l.stores(name)
	}

	return module.New(module.Config{
		Descriptor: d,
		Module:     m,
		Boundary:   b,
		Commands:   l.commands,
		Store:      store,
		Symbols:    symbols,
		DataRoot:   l.dataRoot,
		Logger:     l.logger,
	}), nil
}

// build runs the entry point factory. Builtin factories are module code, so
// a panic is turned into a hook fault.
func (l *Loader) build(d *modmanifest.Descriptor) (m hostapi.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &module.HookFaultError{Module: string(d.Name), Hook: "factory", Panic: r, Stack: string(debug.Stack())}
		}
	}()

	m, err = l.catalog.Instantiate(d)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s (%s): %w", d.Name, d.Entry, err)
	}
	return m, nil
}
