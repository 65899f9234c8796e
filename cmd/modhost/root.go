// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modhost.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/modhost/modhost/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modhost",
		Short: "A host for hot-loadable modules",
		Long: TitleStyle.Render("modhost") + SubtitleStyle.Render(" - A host for hot-loadable modules") + `

modhost discovers module packages in a directory, orders them by their
load_before declarations and runs them with isolated lifecycles. Modules
can be loaded, enabled, disabled and unloaded while the host runs.

` + SubtitleStyle.Render("Examples:") + `
  modhost run                  Start the host and the operator console
  modhost module list          Show the packages in the modules directory
  modhost module order         Show the order modules would load in
  modhost module validate DIR  Check one package manifest
  modhost explain hook-fault   Explain an error kind`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $HOME/.config/modhost/config.cue)")

	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.AddCommand(newRunCommand(app))
	rootCmd.AddCommand(newModuleCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newExplainCommand())
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if code := execute(context.Background()); code != 0 {
		os.Exit(code)
	}
}

// execute runs the CLI against os.Args and returns the process exit code.
func execute(ctx context.Context) int {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return 1
	}

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		ctx,
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// reportError prints err on the command's stderr, with suggestions for
// actionable errors, and returns an ExitError with code 1.
func reportError(cmd *cobra.Command, app *App, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", errorIcon, formatErrorForDisplay(err, app.verbose))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: 1}
}
