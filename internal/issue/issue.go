// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ManifestInvalidId Id = iota + 1
	DependencyUnresolvedId
	DuplicateModuleId
	HookFaultId
	UnloadRefusedId
	CleanupFailureId
	ConfigLoadFailedId
	ModulesDirUnreadableId
)

type MarkdownMsg string

type Issue struct {
	id    Id          // ID used to lookup the issue
	name  string      // slug accepted by "modhost explain"
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Name() string {
	return i.name
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	manifestInvalidIssue = &Issue{
		id:   ManifestInvalidId,
		name: "manifest-invalid",
		mdMsg: `
# Invalid module manifest

A package in the modules directory has no readable manifest, or the
manifest does not match the module schema. The package is skipped and never
retried during this load.

## Manifest files (first match wins)
1. module.cue
2. module.yaml / module.yml
3. module.toml

## Things you can try
- Validate the package on its own:
~~~
$ modhost module validate ./modules/my-module
~~~
- Check that ` + "`name`" + `, ` + "`version`" + ` (semver) and ` + "`entry`" + ` are set:
~~~yaml
name: my-module
version: 1.0.0
entry: "builtin:echo"
~~~`,
	}

	dependencyUnresolvedIssue = &Issue{
		id:   DependencyUnresolvedId,
		name: "dependency-unresolved",
		mdMsg: `
# Load-before target unresolved

A module lists names in ` + "`load_before`" + ` that never became loaded. Either a
target is missing from the modules directory, failed to load itself, or
the modules form a cycle.

## Things you can try
- Preview the load order without starting anything:
~~~
$ modhost module order ./modules
~~~
- Install the missing module, or remove it from ` + "`load_before`" + `
- Break cycles: two modules cannot each require the other first`,
	}

	duplicateModuleIssue = &Issue{
		id:   DuplicateModuleId,
		name: "duplicate-module",
		mdMsg: `
# Duplicate module name

Two packages declare the same ` + "`name`" + `. The first one in directory order
is loaded; the second is rejected and the loaded one is left untouched.

## Things you can try
- List packages and their names:
~~~
$ modhost module list ./modules
~~~
- Remove the stale copy or rename one of the modules`,
	}

	hookFaultIssue = &Issue{
		id:   HookFaultId,
		name: "hook-fault",
		mdMsg: `
# Module hook failed

A module returned an error from, or panicked in, one of its lifecycle hooks
(` + "`OnLoad`" + `, ` + "`OnEnable`" + `, ` + "`OnDisable`" + `). The host caught it and kept running.

- A failed ` + "`OnLoad`" + ` is rolled back: the module is unloaded again.
- A failed ` + "`OnEnable`" + ` or ` + "`OnDisable`" + ` leaves the enabled flag as it was.
  Nothing is retried automatically.

## Things you can try
- Run with ` + "`MODHOST_LOG_LEVEL=debug`" + ` to see the module's own logs and the panic stack
- Fix the module and load it again from the console:
~~~
> module load ./modules/my-module
~~~`,
	}

	unloadRefusedIssue = &Issue{
		id:   UnloadRefusedId,
		name: "unload-refused",
		mdMsg: `
# Unload refused

Enabled modules are never unloaded directly. Disable the module first; the
console's ` + "`module unload`" + ` does both steps for you.

~~~
> module disable my-module
> module unload my-module
~~~`,
	}

	cleanupFailureIssue = &Issue{
		id:   CleanupFailureId,
		name: "cleanup-failure",
		mdMsg: `
# Cleanup incomplete

The module was unloaded, but something it started did not stop within the
grace period (` + "`unload.grace_period`" + `, 3s by default).

- Subprocesses are interrupted, then killed.
- Goroutines cannot be killed; ones that ignore cancellation are abandoned
  and keep running until the host exits.

## Things you can try
- List live workers from the console:
~~~
> workers
~~~
- Make module workers return when their context is cancelled
- Raise ` + "`unload.grace_period`" + ` for slow shutdowns`,
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		name: "config-invalid",
		mdMsg: `
# Configuration could not be loaded

The configuration file is unreadable or does not match the schema.

## Things you can try
- Show the effective configuration and where it came from:
~~~
$ modhost config show
~~~
- Compare with a minimal file:
~~~cue
modules_dir: "./modules"
log: level: "info"
unload: grace_period: "3s"
~~~`,
	}

	modulesDirUnreadableIssue = &Issue{
		id:   ModulesDirUnreadableId,
		name: "modules-dir-unreadable",
		mdMsg: `
# Modules directory unreadable

The host could not list the modules directory. An empty directory is fine;
a missing or unreadable one is not.

## Things you can try
- Create it, or point ` + "`modules_dir`" + ` (or ` + "`MODHOST_MODULES_DIR`" + `) elsewhere
- Check the directory permissions`,
	}

	issues = map[Id]*Issue{
		manifestInvalidIssue.Id():      manifestInvalidIssue,
		dependencyUnresolvedIssue.Id(): dependencyUnresolvedIssue,
		duplicateModuleIssue.Id():      duplicateModuleIssue,
		hookFaultIssue.Id():            hookFaultIssue,
		unloadRefusedIssue.Id():        unloadRefusedIssue,
		cleanupFailureIssue.Id():       cleanupFailureIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		modulesDirUnreadableIssue.Id(): modulesDirUnreadableIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, iss := range issues {
		out = append(out, iss)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds an entry by its slug.
func Lookup(name string) (*Issue, bool) {
	for _, iss := range issues {
		if iss.name == name {
			return iss, true
		}
	}
	return nil, false
}
