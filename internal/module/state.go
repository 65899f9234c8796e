// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"fmt"
)

const (
	// StateDiscovered is a package found on disk but not yet instantiated.
	StateDiscovered State = iota
	// StateLoaded is an instance bound to a fresh boundary.
	StateLoaded
	// StateRegistered is an instance present in the host registry.
	StateRegistered
	// StateEnabled is a registered instance whose OnEnable succeeded.
	StateEnabled
	// StateDisabled is a registered instance whose OnDisable succeeded.
	StateDisabled
	// StateUnloaded is terminal: the boundary is closed.
	StateUnloaded
)

// ErrInvalidState is returned when a State value is not a defined state.
var ErrInvalidState = errors.New("invalid module state")

type (
	// State is the lifecycle state of a module instance.
	State int32

	// InvalidStateError wraps ErrInvalidState.
	InvalidStateError struct {
		Value State
	}
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateLoaded:
		return "loaded"
	case StateRegistered:
		return "registered"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// Validate returns an error wrapping ErrInvalidState for unknown values.
func (s State) Validate() error {
	if s < StateDiscovered || s > StateUnloaded {
		return &InvalidStateError{Value: s}
	}
	return nil
}

// IsTerminal reports whether s is StateUnloaded.
func (s State) IsTerminal() bool {
	return s == StateUnloaded
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid module state %d", e.Value)
}

// Unwrap returns ErrInvalidState for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
