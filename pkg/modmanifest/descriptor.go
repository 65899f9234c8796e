// SPDX-License-Identifier: MPL-2.0

package modmanifest

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// EntryBuiltin resolves the entry target in the compiled-in catalog.
	EntryBuiltin EntryKind = "builtin"
	// EntryScript runs manifest-declared commands through the embedded shell.
	EntryScript EntryKind = "script"
	// EntryExec starts an executable inside the package as a subprocess.
	EntryExec EntryKind = "exec"

	maxNameLength = 128
)

var (
	// ErrInvalidName is the sentinel wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid module name")
	// ErrInvalidVersion is the sentinel wrapped by InvalidVersionError.
	ErrInvalidVersion = errors.New("invalid module version")
	// ErrInvalidEntryPoint is the sentinel wrapped by InvalidEntryPointError.
	ErrInvalidEntryPoint = errors.New("invalid entry point")

	namePattern       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._-]*$`)
	commandPattern    = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	capabilityPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.:-]*$`)
)

type (
	// Name is a module name, unique within a host.
	Name string

	// Version is a semantic version with an optional "v" prefix.
	Version string

	// EntryPoint names how a module is instantiated ("builtin:<id>",
	// "script" or "exec:<relative path>").
	EntryPoint string

	// EntryKind is the prefix of an EntryPoint.
	EntryKind string

	// CommandSpec declares a script command of a script module.
	CommandSpec struct {
		Name        string `json:"name" yaml:"name" toml:"name"`
		Group       string `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
		Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
		Script      string `json:"script" yaml:"script" toml:"script"`
	}

	// Descriptor is a parsed manifest. Treat it as immutable once returned
	// by a Parse function.
	Descriptor struct {
		Name         Name          `json:"name" yaml:"name" toml:"name"`
		Version      Version       `json:"version" yaml:"version" toml:"version"`
		Description  string        `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
		Entry        EntryPoint    `json:"entry" yaml:"entry" toml:"entry"`
		LoadBefore   []Name        `json:"load_before,omitempty" yaml:"load_before,omitempty" toml:"load_before,omitempty"`
		Capabilities []string      `json:"capabilities,omitempty" yaml:"capabilities,omitempty" toml:"capabilities,omitempty"`
		Commands     []CommandSpec `json:"commands,omitempty" yaml:"commands,omitempty" toml:"commands,omitempty"`

		// Dir is the package directory the manifest was read from.
		Dir string `json:"-" yaml:"-" toml:"-"`
		// Source is the manifest file path.
		Source string `json:"-" yaml:"-" toml:"-"`
	}

	// InvalidNameError is returned when a Name does not match the naming rules.
	InvalidNameError struct {
		Value  Name
		Reason string
	}

	// InvalidVersionError is returned when a Version is not valid semver.
	InvalidVersionError struct {
		Value Version
	}

	// InvalidEntryPointError is returned for unknown or malformed entry points.
	InvalidEntryPointError struct {
		Value EntryPoint
	}
)

// String returns the module name.
func (n Name) String() string { return string(n) }

// Validate checks the naming rules: a leading letter, then letters, digits,
// dots, underscores or dashes, at most 128 characters.
func (n Name) Validate() error {
	switch {
	case n == "":
		return &InvalidNameError{Value: n, Reason: "must not be empty"}
	case len(n) > maxNameLength:
		return &InvalidNameError{Value: n, Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	case !namePattern.MatchString(string(n)):
		return &InvalidNameError{Value: n, Reason: "must start with a letter and contain only letters, digits, '.', '_' or '-'"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidName for errors.Is() compatibility.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// String returns the version as written.
func (v Version) String() string { return string(v) }

// Canonical returns the version in golang.org/x/mod/semver form ("v1.2.3").
func (v Version) Canonical() string {
	return semver.Canonical("v" + strings.TrimPrefix(string(v), "v"))
}

// Validate returns an error wrapping ErrInvalidVersion if v is not semver.
func (v Version) Validate() error {
	if v == "" || v.Canonical() == "" {
		return &InvalidVersionError{Value: v}
	}
	return nil
}

// Compare orders two versions by semver precedence.
func (v Version) Compare(other Version) int {
	return semver.Compare(v.Canonical(), other.Canonical())
}

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid module version %q: expected semantic version such as 1.2.3", e.Value)
}

// Unwrap returns ErrInvalidVersion for errors.Is() compatibility.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// String returns the entry point as written.
func (e EntryPoint) String() string { return string(e) }

// Kind returns the entry point kind, or "" when the prefix is unknown.
func (e EntryPoint) Kind() EntryKind {
	s := string(e)
	switch {
	case s == string(EntryScript):
		return EntryScript
	case strings.HasPrefix(s, string(EntryBuiltin)+":"):
		return EntryBuiltin
	case strings.HasPrefix(s, string(EntryExec)+":"):
		return EntryExec
	}
	return ""
}

// Target returns the part after "<kind>:"; empty for script entries.
func (e EntryPoint) Target() string {
	_, target, _ := strings.Cut(string(e), ":")
	return target
}

// Validate checks that e has a known kind and a non-empty target where one
// is required.
func (e EntryPoint) Validate() error {
	switch e.Kind() {
	case EntryScript:
		return nil
	case EntryBuiltin, EntryExec:
		if strings.TrimSpace(e.Target()) == "" {
			return &InvalidEntryPointError{Value: e}
		}
		return nil
	}
	return &InvalidEntryPointError{Value: e}
}

// Error implements the error interface.
func (e *InvalidEntryPointError) Error() string {
	return fmt.Sprintf("invalid entry point %q: expected builtin:<id>, script or exec:<path>", e.Value)
}

// Unwrap returns ErrInvalidEntryPoint for errors.Is() compatibility.
func (e *InvalidEntryPointError) Unwrap() error { return ErrInvalidEntryPoint }

// DependsOn reports whether name appears in the load-before list.
func (d *Descriptor) DependsOn(name Name) bool {
	return slices.Contains(d.LoadBefore, name)
}

// Validate runs every field check and returns all problems joined.
func (d *Descriptor) Validate() error {
	var errs []error

	if err := d.Name.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := d.Version.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := d.Entry.Validate(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[Name]bool, len(d.LoadBefore))
	for i, dep := range d.LoadBefore {
		if err := dep.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("load_before[%d]: %w", i, err))
			continue
		}
		if dep == d.Name {
			errs = append(errs, fmt.Errorf("load_before[%d]: module cannot depend on itself", i))
		}
		if seen[dep] {
			errs = append(errs, fmt.Errorf("load_before[%d]: duplicate entry %q", i, dep))
		}
		seen[dep] = true
	}

	for i, capName := range d.Capabilities {
		if !capabilityPattern.MatchString(capName) {
			errs = append(errs, fmt.Errorf("capabilities[%d]: invalid capability %q", i, capName))
		}
	}

	errs = append(errs, d.validateCommands()...)

	return errors.Join(errs...)
}

func (d *Descriptor) validateCommands() []error {
	var errs []error

	if d.Entry.Kind() == EntryScript && len(d.Commands) == 0 {
		errs = append(errs, errors.New("commands: script modules must declare at least one command"))
	}
	if d.Entry.Kind() != EntryScript && len(d.Commands) > 0 {
		errs = append(errs, errors.New("commands: only script modules may declare commands in the manifest"))
	}

	names := make(map[string]bool, len(d.Commands))
	for i, c := range d.Commands {
		if !commandPattern.MatchString(c.Name) {
			errs = append(errs, fmt.Errorf("commands[%d].name: invalid command name %q", i, c.Name))
		}
		if strings.TrimSpace(c.Script) == "" {
			errs = append(errs, fmt.Errorf("commands[%d].script: must not be empty", i))
		}
		if names[c.Name] {
			errs = append(errs, fmt.Errorf("commands[%d].name: duplicate command %q", i, c.Name))
		}
		names[c.Name] = true
	}
	return errs
}
