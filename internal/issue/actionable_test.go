// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{"operation only", &ActionableError{Operation: "load module"}, "failed to load module"},
		{
			"operation with resource",
			&ActionableError{Operation: "load module", Resource: "./modules/echo"},
			"failed to load module: ./modules/echo",
		},
		{
			"full context",
			&ActionableError{Operation: "load module", Resource: "./modules/echo", Cause: errors.New("no manifest")},
			"failed to load module: ./modules/echo: no manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := NewErrorContext().WithOperation("unload module").Wrap(fmt.Errorf("wrapped: %w", sentinel)).BuildError()
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is does not reach the cause")
	}

	var ae *ActionableError
	if !errors.As(err, &ae) || ae.Operation != "unload module" {
		t.Errorf("errors.As = %+v", ae)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("permission denied")
	err := NewErrorContext().
		WithOperation("read modules directory").
		WithResource("/srv/modules").
		WithSuggestion("Check permissions").
		WithSuggestions("Create the directory", "Set modules_dir").
		WithIssue(ModulesDirUnreadableId).
		Wrap(fmt.Errorf("open: %w", root)).
		Build()

	short := err.Format(false)
	for _, want := range []string{
		"failed to read modules directory: /srv/modules: open: permission denied",
		"\n  • Check permissions",
		"\n  • Set modules_dir",
		"modhost explain modules-dir-unreadable",
	} {
		if !strings.Contains(short, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, short)
		}
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) includes the error chain")
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:\n  1. open: permission denied\n  2. permission denied") {
		t.Errorf("Format(true) chain missing:\n%s", verbose)
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithResource("x").Wrap(errors.New("boom"))
	if ctx.Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if err := ctx.BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want untyped nil", err)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should be nil")
	}
	err := WrapWithContext(errors.New("x"), "start host", "config.cue")
	if err.Error() != "failed to start host: config.cue: x" {
		t.Errorf("Error() = %q", err.Error())
	}
}
