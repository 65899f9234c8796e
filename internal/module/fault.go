// SPDX-License-Identifier: MPL-2.0

package module

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrHookFault is the sentinel wrapped by HookFaultError.
var ErrHookFault = errors.New("module hook failed")

// HookFaultError reports an error returned by, or a panic raised in, a
// lifecycle hook.
type HookFaultError struct {
	Module string
	Hook   string
	Cause  error
	// Panic holds the recovered value when the hook panicked.
	Panic any
	// Stack is the goroutine stack captured at the panic.
	Stack string
}

// Error implements the error interface.
func (e *HookFaultError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s: %s panicked: %v", e.Module, e.Hook, e.Panic)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Module, e.Hook, e.Cause)
}

// Unwrap exposes ErrHookFault and the hook's own error.
func (e *HookFaultError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrHookFault}
	}
	return []error{ErrHookFault, e.Cause}
}

// guard runs fn and converts a returned error or a panic into a
// HookFaultError.
func guard(moduleName, hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookFaultError{Module: moduleName, Hook: hook, Panic: r, Stack: string(debug.Stack())}
		}
	}()
	if hookErr := fn(); hookErr != nil {
		return &HookFaultError{Module: moduleName, Hook: hook, Cause: hookErr}
	}
	return nil
}
