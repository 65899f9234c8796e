// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/modhost/modhost/pkg/hostapi"

	"github.com/charmbracelet/log"
)

// DefaultGroup is the group used when a module registers with an empty
// group name.
const DefaultGroup = "default"

var (
	// ErrNotOwner is returned when a module tries to remove a command it
	// does not own.
	ErrNotOwner = errors.New("command is owned by another module")
	// ErrGroupNotFound is returned for unknown group names.
	ErrGroupNotFound = errors.New("command group not found")
	// ErrInvalidCommand is returned for executors without a name.
	ErrInvalidCommand = errors.New("invalid command")
)

type (
	// Info describes a registered command.
	Info struct {
		Name        string
		Description string
		Group       string
		Owner       string
	}

	// GroupInfo describes a command group.
	GroupInfo struct {
		Name     string
		Enabled  bool
		Commands int
	}

	// Registry is the command ownership sink. It is safe for concurrent use.
	Registry struct {
		mu         sync.RWMutex
		groups     map[string]*group
		groupOrder []string
		byName     map[string]*entry
		publisher  Publisher
		flushed    bool
		logger     *log.Logger
	}

	// Option configures a Registry.
	Option func(*Registry)

	group struct {
		name    string
		enabled bool
		names   []string
	}

	entry struct {
		executor hostapi.CommandExecutor
		info     Info
	}
)

// WithPublisher sets the front-end publisher. The default only logs.
func WithPublisher(p Publisher) Option {
	return func(r *Registry) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		groups: make(map[string]*group),
		byName: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "commands"})
	}
	if r.publisher == nil {
		r.publisher = &LogPublisher{Logger: r.logger}
	}
	return r
}

// Register adds executor to groupName on behalf of owner. A command name is
// unique across all groups.
func (r *Registry) Register(groupName string, executor hostapi.CommandExecutor, owner string) error {
	if executor == nil || executor.Name() == "" {
		return fmt.Errorf("%w: executor must have a name", ErrInvalidCommand)
	}
	if groupName == "" {
		groupName = DefaultGroup
	}
	name := executor.Name()

	r.mu.Lock()
	if existing, ok := r.byName[name]; ok {
		r.mu.Unlock()
		if existing.info.Group != groupName {
			return fmt.Errorf("%w: %q is already registered in group %q by %s", hostapi.ErrCommandConflict, name, existing.info.Group, existing.info.Owner)
		}
		return fmt.Errorf("%w: %q is already registered by %s", hostapi.ErrCommandConflict, name, existing.info.Owner)
	}

	g := r.groupLocked(groupName)
	e := &entry{
		executor: executor,
		info: Info{
			Name:        name,
			Description: executor.Description(),
			Group:       groupName,
			Owner:       owner,
		},
	}
	r.byName[name] = e
	g.names = append(g.names, name)
	publish := r.flushed && g.enabled
	r.mu.Unlock()

	r.logger.Debug("command registered", "command", name, "group", groupName, "owner", owner)
	if publish {
		r.upsert(e.info)
	}
	return nil
}

// Remove withdraws executor if owner owns it.
func (r *Registry) Remove(executor hostapi.CommandExecutor, owner string) error {
	if executor == nil {
		return fmt.Errorf("%w: nil executor", ErrInvalidCommand)
	}
	return r.RemoveByName(executor.Name(), owner)
}

// RemoveByName withdraws the command called name if owner owns it.
func (r *Registry) RemoveByName(name, owner string) error {
	r.mu.Lock()
	e, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", hostapi.ErrCommandNotFound, name)
	}
	if e.info.Owner != owner {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s belongs to %s", ErrNotOwner, name, e.info.Owner)
	}
	publish := r.removeLocked(e)
	r.mu.Unlock()

	if publish {
		r.delete(name)
	}
	return nil
}

// RemoveAll withdraws every command owned by owner and returns them.
func (r *Registry) RemoveAll(owner string) []Info {
	r.mu.Lock()
	var (
		removed   []Info
		published []string
	)
	for _, gName := range r.groupOrder {
		for _, name := range slices.Clone(r.groups[gName].names) {
			e := r.byName[name]
			if e.info.Owner != owner {
				continue
			}
			if r.removeLocked(e) {
				published = append(published, name)
			}
			removed = append(removed, e.info)
		}
	}
	r.mu.Unlock()

	for _, name := range published {
		r.delete(name)
	}
	if len(removed) > 0 {
		r.logger.Debug("commands removed", "owner", owner, "count", len(removed))
	}
	return removed
}

// Lookup resolves name, skipping commands in disabled groups.
func (r *Registry) Lookup(name string) (hostapi.CommandExecutor, Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[name]
	if !ok || !r.groups[e.info.Group].enabled {
		return nil, Info{}, false
	}
	return e.executor, e.info, true
}

// Commands lists all commands in group order, then registration order.
func (r *Registry) Commands() []Info {
	return r.filter(func(Info) bool { return true })
}

// CommandsOf lists the commands owned by owner.
func (r *Registry) CommandsOf(owner string) []Info {
	return r.filter(func(i Info) bool { return i.Owner == owner })
}

// Groups lists command groups in creation order.
func (r *Registry) Groups() []GroupInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]GroupInfo, 0, len(r.groupOrder))
	for _, name := range r.groupOrder {
		g := r.groups[name]
		out = append(out, GroupInfo{Name: g.name, Enabled: g.enabled, Commands: len(g.names)})
	}
	return out
}

// SetGroupEnabled enables or disables a whole group. Disabled groups are
// withdrawn from the front end and skipped by Lookup.
func (r *Registry) SetGroupEnabled(name string, enabled bool) error {
	r.mu.Lock()
	g, ok := r.groups[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	changed := g.enabled != enabled
	g.enabled = enabled
	var infos []Info
	if changed && r.flushed {
		for _, n := range g.names {
			infos = append(infos, r.byName[n].info)
		}
	}
	r.mu.Unlock()

	for _, info := range infos {
		if enabled {
			r.upsert(info)
		} else {
			r.delete(info.Name)
		}
	}
	return nil
}

// DeleteGroup removes a group and every command in it.
func (r *Registry) DeleteGroup(name string) error {
	r.mu.Lock()
	g, ok := r.groups[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	var published []string
	for _, n := range g.names {
		delete(r.byName, n)
		if r.flushed && g.enabled {
			published = append(published, n)
		}
	}
	delete(r.groups, name)
	r.groupOrder = slices.DeleteFunc(r.groupOrder, func(s string) bool { return s == name })
	r.mu.Unlock()

	for _, n := range published {
		r.delete(n)
	}
	return nil
}

// Flush publishes every enabled command once. Until Flush is called,
// registrations are only recorded; afterwards each change is published
// as it happens.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.Lock()
	r.flushed = true
	r.mu.Unlock()

	var errs []error
	for _, info := range r.enabledCommands() {
		if err := r.publisher.Upsert(ctx, info); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", info.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Dispatch invokes the command called name. A panicking executor is
// recovered and reported as an error.
func (r *Registry) Dispatch(ctx context.Context, name string, args []string, out io.Writer, source string) (err error) {
	executor, info, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", hostapi.ErrCommandNotFound, name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command panicked", "command", name, "owner", info.Owner, "panic", rec)
			err = fmt.Errorf("command %s (%s) panicked: %v", name, info.Owner, rec)
		}
	}()

	return executor.Invoke(ctx, &hostapi.CommandContext{
		Command: name,
		Args:    args,
		Out:     out,
		Source:  source,
	})
}

func (r *Registry) groupLocked(name string) *group {
	g, ok := r.groups[name]
	if !ok {
		g = &group{name: name, enabled: true}
		r.groups[name] = g
		r.groupOrder = append(r.groupOrder, name)
	}
	return g
}

// removeLocked deletes e and reports whether the front end must be told.
func (r *Registry) removeLocked(e *entry) bool {
	g := r.groups[e.info.Group]
	g.names = slices.DeleteFunc(g.names, func(n string) bool { return n == e.info.Name })
	delete(r.byName, e.info.Name)
	return r.flushed && g.enabled
}

func (r *Registry) filter(keep func(Info) bool) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Info
	for _, gName := range r.groupOrder {
		for _, n := range r.groups[gName].names {
			if info := r.byName[n].info; keep(info) {
				out = append(out, info)
			}
		}
	}
	return out
}

func (r *Registry) enabledCommands() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Info
	for _, gName := range r.groupOrder {
		g := r.groups[gName]
		if !g.enabled {
			continue
		}
		for _, n := range g.names {
			out = append(out, r.byName[n].info)
		}
	}
	return out
}

func (r *Registry) upsert(info Info) {
	if err := r.publisher.Upsert(context.Background(), info); err != nil {
		r.logger.Warn("failed to publish command", "command", info.Name, "err", err)
	}
}

func (r *Registry) delete(name string) {
	if err := r.publisher.Delete(context.Background(), name); err != nil {
		r.logger.Warn("failed to withdraw command", "command", name, "err", err)
	}
}
