// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/modhost/modhost/internal/capability"
	"github.com/modhost/modhost/internal/isolate"
	"github.com/modhost/modhost/internal/loader"
	"github.com/modhost/modhost/internal/module"
	"github.com/modhost/modhost/internal/registry"
	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/charmbracelet/log"
)

type (
	// Deps holds the manager's collaborators. Loader is required; the
	// others default to empty values.
	Deps struct {
		Loader       *loader.Loader
		Registry     *registry.Registry[*module.Instance]
		Capabilities *capability.Set
		Logger       *log.Logger
	}

	// Manager orchestrates module lifecycles. It is safe for concurrent
	// use; lifecycle calls run one at a time.
	Manager struct {
		mu     sync.Mutex
		loader *loader.Loader
		reg    *registry.Registry[*module.Instance]
		caps   *capability.Set
		logger *log.Logger
	}

	described struct {
		candidate loader.Candidate
		desc      *modmanifest.Descriptor
	}
)

// New creates a manager.
func New(deps Deps) *Manager {
	m := &Manager{
		loader: deps.Loader,
		reg:    deps.Registry,
		caps:   deps.Capabilities,
		logger: deps.Logger,
	}
	if m.loader == nil {
		m.loader = loader.New(loader.Config{})
	}
	if m.reg == nil {
		m.reg = registry.New[*module.Instance]()
	}
	if m.caps == nil {
		m.caps = &capability.Set{}
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	return m
}

// Capabilities returns the accumulated capability set.
func (m *Manager) Capabilities() *capability.Set { return m.caps }

// Get returns the loaded module called name.
func (m *Manager) Get(name string) (*module.Instance, bool) { return m.reg.Get(name) }

// List returns the loaded modules in load order.
func (m *Manager) List() []*module.Instance { return m.reg.Values() }

// LoadAll loads candidates in passes. A candidate whose manifest cannot be
// read is reported once and dropped. A candidate whose load-before targets
// are not all registered waits for a later pass. When a pass loads
// nothing, every waiting candidate is reported as unresolved and LoadAll
// returns.
func (m *Manager) LoadAll(ctx context.Context, candidates []loader.Candidate) []Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []Result
	pending := make([]described, 0, len(candidates))
	for _, c := range candidates {
		d, err := m.loader.Describe(c.Path)
		if err != nil {
			m.logger.Error("invalid module manifest", "path", c.Path, "err", err)
			results = append(results, failed(c.Path, err))
			continue
		}
		pending = append(pending, described{candidate: c, desc: d})
	}

	for pass := 1; len(pending) > 0; pass++ {
		progress := false
		deferred := pending[:0]
		for _, p := range pending {
			if missing := missingTargets(p.desc, m.reg.Has); len(missing) > 0 {
				m.logger.Debug("deferring module", "module", p.desc.Name, "waiting_for", missing, "pass", pass)
				deferred = append(deferred, p)
				continue
			}
			res := m.loadLocked(ctx, p.desc)
			results = append(results, res)
			if res.OK {
				progress = true
			}
		}
		pending = deferred

		if !progress && len(pending) > 0 {
			descs := make([]*modmanifest.Descriptor, len(pending))
			for i, p := range pending {
				descs[i] = p.desc
			}
			for _, err := range unresolved(descs, m.reg.Has) {
				m.logger.Error("module not loaded", "module", err.Module, "err", err)
				results = append(results, failed(err.Module, err))
			}
			break
		}
	}
	return results
}

// LoadOne loads the package at path. Its load-before targets must already
// be registered.
func (m *Manager) LoadOne(ctx context.Context, path string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.loader.Describe(path)
	if err != nil {
		m.logger.Error("invalid module manifest", "path", path, "err", err)
		return failed(path, err)
	}
	return m.loadLocked(ctx, d)
}

func (m *Manager) loadLocked(ctx context.Context, d *modmanifest.Descriptor) Result {
	name := string(d.Name)

	if missing := missingTargets(d, m.reg.Has); len(missing) > 0 {
		err := &DependencyError{Module: name, Missing: missing}
		m.logger.Error("module not loaded", "module", name, "err", err)
		return failed(name, err)
	}
	if existing, ok := m.reg.Get(name); ok {
		err := fmt.Errorf("%w: %s is already loaded from %s", registry.ErrDuplicateModule, name, existing.Descriptor().Dir)
		m.logger.Error("module not loaded", "module", name, "path", d.Dir, "err", err)
		return failed(name, err)
	}

	inst, err := m.loader.Instantiate(d, m.resolveSymbol)
	if err != nil {
		m.logger.Error("module not loaded", "module", name, "err", err)
		return failed(name, err)
	}
	if err := m.reg.Add(name, inst); err != nil {
		if _, closeErr := inst.Teardown(); closeErr != nil {
			m.logger.Warn("cleanup after failed registration", "module", name, "err", closeErr)
		}
		return failed(name, err)
	}
	inst.MarkRegistered()

	if added := m.caps.Merge(d.Capabilities...); len(added) > 0 {
		if m.caps.Sealed() {
			m.logger.Warn("capabilities requested after the front end connected", "module", name, "capabilities", added)
		} else {
			m.logger.Debug("capabilities added", "module", name, "capabilities", added)
		}
	}

	if err := inst.Load(ctx); err != nil {
		m.logger.Error("module failed to load, rolling back", "module", name, "err", err)
		if res := m.unloadLocked(inst); res.Err != nil {
			m.logger.Warn("rollback cleanup incomplete", "module", name, "err", res.Err)
		}
		return failed(name, err)
	}

	m.logger.Info("module loaded", "module", name, "version", d.Version)
	return succeeded(name, true, "loaded %s %s", name, d.Version)
}

// EnableAll enables every loaded module in load order, except the names in
// skip. A failure is reported and does not stop the broadcast.
func (m *Manager) EnableAll(ctx context.Context, skip ...string) []Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []Result
	for _, inst := range m.reg.Values() {
		if slices.Contains(skip, inst.Name()) {
			m.logger.Info("module left disabled", "module", inst.Name())
			continue
		}
		results = append(results, m.enableLocked(ctx, inst))
	}
	return results
}

// DisableAll disables every loaded module in load order. A failure is
// reported and does not stop the broadcast.
func (m *Manager) DisableAll(ctx context.Context) []Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []Result
	for _, inst := range m.reg.Values() {
		results = append(results, m.disableLocked(ctx, inst))
	}
	return results
}

// Enable enables the module called name.
func (m *Manager) Enable(ctx context.Context, name string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, res, ok := m.lookupLocked(name)
	if !ok {
		return res
	}
	return m.enableLocked(ctx, inst)
}

// Disable disables the module called name.
func (m *Manager) Disable(ctx context.Context, name string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, res, ok := m.lookupLocked(name)
	if !ok {
		return res
	}
	return m.disableLocked(ctx, inst)
}

func (m *Manager) enableLocked(ctx context.Context, inst *module.Instance) Result {
	name := inst.Name()
	changed, err := inst.Enable(ctx)
	if err != nil {
		m.logger.Error("module failed to enable", "module", name, "err", err)
		return failed(name, err)
	}
	if !changed {
		return succeeded(name, false, "%s is already enabled", name)
	}
	m.logger.Info("module enabled", "module", name)
	return succeeded(name, true, "enabled %s", name)
}

func (m *Manager) disableLocked(ctx context.Context, inst *module.Instance) Result {
	name := inst.Name()
	changed, err := inst.Disable(ctx)
	if err != nil {
		m.logger.Error("module failed to disable", "module", name, "err", err)
		return failed(name, err)
	}
	if !changed {
		return succeeded(name, false, "%s is already disabled", name)
	}
	m.logger.Info("module disabled", "module", name)
	return succeeded(name, true, "disabled %s", name)
}

// Unload removes the module called name. An enabled module is refused.
func (m *Manager) Unload(_ context.Context, name string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, res, ok := m.lookupLocked(name)
	if !ok {
		return res
	}
	if inst.Enabled() {
		err := fmt.Errorf("%w: %s is enabled, disable it first", ErrUnloadRefused, name)
		m.logger.Warn("unload refused", "module", name)
		return failed(name, err)
	}
	return m.unloadLocked(inst)
}

// UnloadAll unloads every module in reverse load order, so dependents go
// before the modules they load after. Enabled modules are refused.
func (m *Manager) UnloadAll(ctx context.Context) []Result {
	names := m.reg.Names()
	slices.Reverse(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, m.Unload(ctx, name))
	}
	return results
}

// unloadLocked removes the module from the registry, sweeps its commands
// and closes its boundary, which stops each worker once. The entry is
// removed even when cleanup fails; the failure is logged and carried in
// Result.Err.
func (m *Manager) unloadLocked(inst *module.Instance) Result {
	name := inst.Name()

	if _, err := m.reg.Remove(name); err != nil {
		m.logger.Warn("module already removed from registry", "module", name, "err", err)
	}

	removed, errs := inst.Teardown()
	if len(removed) > 0 {
		m.logger.Debug("commands removed", "module", name, "count", len(removed))
	}

	for _, other := range m.reg.Values() {
		if other.Descriptor().DependsOn(modmanifest.Name(name)) {
			m.logger.Warn("unloaded module is a load-before target of a loaded module", "module", name, "dependent", other.Name())
		}
	}

	if errs != nil {
		if !errors.Is(errs, isolate.ErrCleanupFailure) {
			errs = &isolate.CleanupError{Owner: name, Cause: errs}
		}
		m.logger.Error("module unloaded with cleanup failures", "module", name, "err", errs)
		return Result{
			Module:  name,
			OK:      true,
			Changed: true,
			Reason:  fmt.Sprintf("unloaded %s, cleanup incomplete: %v", name, errs),
			Err:     errs,
		}
	}

	m.logger.Info("module unloaded", "module", name)
	return succeeded(name, true, "unloaded %s", name)
}

func (m *Manager) lookupLocked(name string) (*module.Instance, Result, bool) {
	inst, ok := m.reg.Get(name)
	if !ok {
		return nil, failed(name, fmt.Errorf("%w: %s", registry.ErrModuleNotFound, name)), false
	}
	return inst, Result{}, true
}

// resolveSymbol serves "<module>.<symbol>" lookups from module code. It
// must not take the lifecycle lock, since hooks run while it is held.
func (m *Manager) resolveSymbol(moduleName, symbol string) (any, error) {
	inst, ok := m.reg.Get(moduleName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrModuleNotFound, moduleName)
	}
	return inst.Boundary().Lookup(symbol)
}
