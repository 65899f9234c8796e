// SPDX-License-Identifier: MPL-2.0

package isolate

import (
	"errors"
	"fmt"
)

const (
	// StateOpen accepts exports, lookups and new workers.
	StateOpen State = iota
	// StateClosing is set by Seal and while Close stops workers.
	StateClosing
	// StateClosed is terminal.
	StateClosed
)

// ErrInvalidState is returned when a State value is not a defined state.
var ErrInvalidState = errors.New("invalid boundary state")

type (
	// State is the lifecycle state of a Boundary.
	State int32

	// InvalidStateError wraps ErrInvalidState.
	InvalidStateError struct {
		Value State
	}
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Validate returns an error wrapping ErrInvalidState for unknown values.
func (s State) Validate() error {
	switch s {
	case StateOpen, StateClosing, StateClosed:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid boundary state %d (valid: 0=open, 1=closing, 2=closed)", e.Value)
}

// Unwrap returns ErrInvalidState for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
