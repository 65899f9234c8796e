// SPDX-License-Identifier: MPL-2.0

// Package module binds one module implementation to its descriptor, its
// isolation boundary and its data directory, and implements the
// hostapi.Host handle the module talks to.
package module

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/modhost/modhost/internal/command"
	"github.com/modhost/modhost/internal/isolate"
	"github.com/modhost/modhost/pkg/hostapi"
	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrStoreUnavailable is returned by the Store of a host without a data store.
var ErrStoreUnavailable = errors.New("data store unavailable")

var _ hostapi.Host = (*Instance)(nil)

type (
	// CommandSink is the part of the command registry an instance needs.
	CommandSink interface {
		Register(group string, executor hostapi.CommandExecutor, owner string) error
		Remove(executor hostapi.CommandExecutor, owner string) error
		RemoveAll(owner string) []command.Info
	}

	// SymbolResolver resolves a symbol exported by another module.
	SymbolResolver func(moduleName, symbol string) (any, error)

	// Config holds everything needed to build an Instance.
	Config struct {
		Descriptor *modmanifest.Descriptor
		Module     hostapi.Module
		Boundary   *isolate.Boundary
		Commands   CommandSink
		Store      hostapi.Store
		Symbols    SymbolResolver
		// DataRoot is the parent of every module's data directory.
		DataRoot string
		Logger   *log.Logger
	}

	// Instance is a loaded module. It exclusively owns its boundary.
	Instance struct {
		id       string
		desc     *modmanifest.Descriptor
		module   hostapi.Module
		boundary *isolate.Boundary
		commands CommandSink
		store    hostapi.Store
		symbols  SymbolResolver
		dataRoot string
		logger   *log.Logger

		state       atomic.Int32
		enabled     atomic.Bool
		loadStarted atomic.Bool

		// cmdMu orders command registration against the teardown sweep.
		cmdMu sync.RWMutex

		dataMu  sync.Mutex
		dataDir string
	}

	unavailableStore struct{}
)

// New creates an instance in StateLoaded.
func New(cfg Config) *Instance {
	name := string(cfg.Descriptor.Name)

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	store := cfg.Store
	if store == nil {
		store = unavailableStore{}
	}

	inst := &Instance{
		id:       uuid.NewString(),
		desc:     cfg.Descriptor,
		module:   cfg.Module,
		boundary: cfg.Boundary,
		commands: cfg.Commands,
		store:    store,
		symbols:  cfg.Symbols,
		dataRoot: cfg.DataRoot,
		logger:   logger.WithPrefix(name).With("module", name),
	}
	inst.state.Store(int32(StateLoaded))
	return inst
}

// ID is unique per load; reloading a module yields a new ID.
func (i *Instance) ID() string { return i.id }

// Name returns the module name.
func (i *Instance) Name() string { return string(i.desc.Name) }

// Descriptor returns the parsed manifest.
func (i *Instance) Descriptor() *modmanifest.Descriptor { return i.desc }

// Module returns the module implementation.
func (i *Instance) Module() hostapi.Module { return i.module }

// Boundary returns the isolation boundary the instance owns.
func (i *Instance) Boundary() *isolate.Boundary { return i.boundary }

// Enabled reports whether the last OnEnable succeeded without a later
// successful OnDisable.
func (i *Instance) Enabled() bool { return i.enabled.Load() }

// State returns the lifecycle state.
func (i *Instance) State() State { return State(i.state.Load()) }

// MarkRegistered records that the instance was inserted in the registry.
func (i *Instance) MarkRegistered() { i.state.Store(int32(StateRegistered)) }

// Logger returns the module-scoped logger.
func (i *Instance) Logger() *log.Logger { return i.logger }

// Context is the boundary context, cancelled when the module is unloaded.
func (i *Instance) Context() context.Context { return i.boundary.Context() }

// DataDir returns <data root>/<module name>, creating it on first call.
func (i *Instance) DataDir() (string, error) {
	i.dataMu.Lock()
	defer i.dataMu.Unlock()

	if i.dataDir != "" {
		return i.dataDir, nil
	}
	if i.dataRoot == "" {
		return "", errors.New("no data root configured")
	}
	dir := filepath.Join(i.dataRoot, i.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory for %s: %w", i.Name(), err)
	}
	i.dataDir = dir
	return dir, nil
}

// RegisterCommand publishes executor under group, owned by this module.
func (i *Instance) RegisterCommand(group string, executor hostapi.CommandExecutor) error {
	i.cmdMu.RLock()
	defer i.cmdMu.RUnlock()

	if err := i.commandsAvailable(); err != nil {
		return err
	}
	return i.commands.Register(group, executor, i.Name())
}

// RemoveCommand withdraws executor.
func (i *Instance) RemoveCommand(executor hostapi.CommandExecutor) error {
	i.cmdMu.RLock()
	defer i.cmdMu.RUnlock()

	if err := i.commandsAvailable(); err != nil {
		return err
	}
	return i.commands.Remove(executor, i.Name())
}

// RemoveAllCommands withdraws every command this module owns.
func (i *Instance) RemoveAllCommands() {
	if i.commands == nil {
		return
	}
	i.commands.RemoveAll(i.Name())
}

func (i *Instance) commandsAvailable() error {
	if !i.loadStarted.Load() || i.commands == nil {
		return hostapi.ErrUnavailableDuringLoad
	}
	if i.boundary.Closed() {
		return isolate.ErrBoundaryClosed
	}
	return nil
}

// Go starts a goroutine worker rooted in the module's boundary.
func (i *Instance) Go(name string, fn func(ctx context.Context) error) (string, error) {
	info, err := i.boundary.Go(name, fn)
	return info.ID, err
}

// StartProcess starts a subprocess worker rooted in the module's boundary.
func (i *Instance) StartProcess(name string, cmd *exec.Cmd) (string, error) {
	info, err := i.boundary.StartProcess(name, cmd)
	return info.ID, err
}

// StopWorker stops one of the module's workers.
func (i *Instance) StopWorker(id string) error {
	return i.boundary.StopWorker(id)
}

// Export publishes a symbol in the module's boundary.
func (i *Instance) Export(symbol string, value any) error {
	return i.boundary.Export(symbol, value)
}

// Lookup resolves an unqualified symbol in this module's boundary, or a
// "<module>.<symbol>" reference through the host.
func (i *Instance) Lookup(symbol string) (any, error) {
	owner, name, qualified := strings.Cut(symbol, ".")
	if !qualified {
		return i.boundary.Lookup(symbol)
	}
	if owner == i.Name() {
		return i.boundary.Lookup(name)
	}
	if i.symbols == nil {
		return nil, fmt.Errorf("%w: %s", isolate.ErrSymbolNotFound, symbol)
	}
	return i.symbols(owner, name)
}

// Store returns the module's data store namespace.
func (i *Instance) Store() hostapi.Store { return i.store }

// Load runs OnLoad. Command registration becomes available as the hook
// starts.
func (i *Instance) Load(ctx context.Context) error {
	i.loadStarted.Store(true)
	return guard(i.Name(), "OnLoad", func() error {
		return i.module.OnLoad(ctx, i)
	})
}

// Enable runs OnEnable unless the instance is already enabled. The flag is
// set only when the hook succeeds.
func (i *Instance) Enable(ctx context.Context) (changed bool, err error) {
	if i.Enabled() {
		return false, nil
	}
	if err := guard(i.Name(), "OnEnable", func() error { return i.module.OnEnable(ctx) }); err != nil {
		return false, err
	}
	i.enabled.Store(true)
	i.state.Store(int32(StateEnabled))
	return true, nil
}

// Disable runs OnDisable unless the instance is already disabled. The flag
// is cleared only when the hook succeeds.
func (i *Instance) Disable(ctx context.Context) (changed bool, err error) {
	if !i.Enabled() {
		return false, nil
	}
	if err := guard(i.Name(), "OnDisable", func() error { return i.module.OnDisable(ctx) }); err != nil {
		return false, err
	}
	i.enabled.Store(false)
	i.state.Store(int32(StateDisabled))
	return true, nil
}

// Teardown seals the boundary, sweeps the module's commands and then
// closes the boundary, stopping each worker once. The instance is unloaded
// afterwards even when cleanup reports errors.
func (i *Instance) Teardown() ([]command.Info, error) {
	i.cmdMu.Lock()
	i.boundary.Seal()
	var removed []command.Info
	if i.commands != nil {
		removed = i.commands.RemoveAll(i.Name())
	}
	i.cmdMu.Unlock()

	err := i.boundary.Close()
	i.enabled.Store(false)
	i.state.Store(int32(StateUnloaded))
	return removed, err
}

func (unavailableStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, ErrStoreUnavailable
}

func (unavailableStore) Put(context.Context, string, []byte) error { return ErrStoreUnavailable }

func (unavailableStore) Delete(context.Context, string) error { return ErrStoreUnavailable }

func (unavailableStore) Keys(context.Context) ([]string, error) { return nil, ErrStoreUnavailable }
