// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDependencyUnresolved is returned when load-before targets are not
	// registered and cannot become registered.
	ErrDependencyUnresolved = errors.New("dependency unresolved")
	// ErrUnloadRefused is returned when unloading an enabled module.
	ErrUnloadRefused = errors.New("unload refused")
)

type (
	// Result is the outcome of one lifecycle call.
	Result struct {
		// Module is the module name, or the package path when the manifest
		// could not be read.
		Module string
		// OK reports success. A call that changes nothing can still succeed.
		OK bool
		// Changed reports whether the call changed any state.
		Changed bool
		// Reason is a human-readable summary for operators.
		Reason string
		// Err holds the failure, or a cleanup problem on a successful unload.
		Err error
	}

	// DependencyError lists the load-before targets that kept a module
	// from loading.
	DependencyError struct {
		Module  string
		Missing []string
		// Cycle is set when the module is part of a load-before cycle; it
		// lists the cycle starting and ending at Module.
		Cycle []string
	}
)

func succeeded(name string, changed bool, format string, args ...any) Result {
	return Result{Module: name, OK: true, Changed: changed, Reason: fmt.Sprintf(format, args...)}
}

func failed(name string, err error) Result {
	return Result{Module: name, Reason: err.Error(), Err: err}
}

// String implements fmt.Stringer.
func (r Result) String() string {
	status := "ok"
	if !r.OK {
		status = "failed"
	}
	return fmt.Sprintf("%s: %s (%s)", r.Module, r.Reason, status)
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("%s: circular load-before %s", e.Module, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("%s: load-before target not available: %s", e.Module, strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrDependencyUnresolved.
func (e *DependencyError) Unwrap() error { return ErrDependencyUnresolved }

// Circular reports whether the module is part of a cycle.
func (e *DependencyError) Circular() bool { return len(e.Cycle) > 0 }

// Failed returns the results that did not succeed.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}
