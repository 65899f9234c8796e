// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

// Lifecycle states, in the order a healthy server passes through them.
const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	// StateFailed is terminal; LastError holds the cause.
	StateFailed
)

// ErrInvalidState is returned by Validate for values outside the lifecycle.
var ErrInvalidState = errors.New("invalid server state")

var stateNames = [...]string{
	StateCreated:  "created",
	StateStarting: "starting",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateStopped:  "stopped",
	StateFailed:   "failed",
}

// State is a server lifecycle state.
type State int32

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Validate rejects values outside the lifecycle.
func (s State) Validate() error {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Errorf("%w: %d", ErrInvalidState, int32(s))
	}
	return nil
}

// IsTerminal reports whether s is stopped or failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
