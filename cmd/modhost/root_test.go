// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/issue"
)

type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	return s.cfg, s.err
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, provider ConfigProvider, stdin string, args ...string) cliResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{
		Config: provider,
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error: %v", err)
	}

	root := NewRootCommand(app)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "dev"

		got := getVersionString()
		want := "dev (built from source)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	ae := issue.NewErrorContext().
		WithOperation("load module").
		WithResource("./modules/echo").
		WithSuggestion("Check the manifest").
		WithIssue(issue.ManifestInvalidId).
		Wrap(errors.New("bad name")).
		BuildError()

	tests := []struct {
		name    string
		err     error
		verbose bool
		want    []string
		notWant []string
	}{
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: []string{"boom"},
		},
		{
			name:    "actionable error",
			err:     ae,
			want:    []string{"failed to load module: ./modules/echo: bad name", "Check the manifest", "modhost explain manifest-invalid"},
			notWant: []string{"Error chain"},
		},
		{
			name:    "actionable error verbose",
			err:     ae,
			verbose: true,
			want:    []string{"Error chain", "1. bad name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := formatErrorForDisplay(tt.err, tt.verbose)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("output should not contain %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() = %q", got)
	}
	cause := errors.New("boom")
	err := &ExitError{Code: 1, Err: cause}
	if err.Error() != "boom" || !errors.Is(err, cause) {
		t.Errorf("ExitError should wrap its cause, got %q", err.Error())
	}
}

func TestConfigErrorIsReported(t *testing.T) {
	t.Parallel()

	loadErr := issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource("/etc/modhost.cue").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(errors.New("syntax error")).
		BuildError()

	res := runCLI(t, staticConfig{err: loadErr}, "", "config", "show")
	if exitCode(res.err) != 1 {
		t.Fatalf("exit code = %d, want 1 (err: %v)", exitCode(res.err), res.err)
	}
	if !strings.Contains(res.stderr, "failed to load configuration: /etc/modhost.cue") {
		t.Errorf("stderr = %q", res.stderr)
	}
	if !strings.Contains(res.stderr, "modhost explain config-invalid") {
		t.Errorf("stderr should point at the explain command: %q", res.stderr)
	}
}
