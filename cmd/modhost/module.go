// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/modhost/modhost/internal/issue"
	"github.com/modhost/modhost/internal/loader"
	"github.com/modhost/modhost/internal/manager"
	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/spf13/cobra"
)

// newModuleCommand creates the `modhost module` command tree. These
// commands read packages from disk and never start a host.
func newModuleCommand(app *App) *cobra.Command {
	moduleCmd := &cobra.Command{
		Use:   "module",
		Short: "Inspect module packages",
		Long: `Inspect module packages without starting the host.

Examples:
  modhost module list
  modhost module list ./modules
  modhost module validate ./modules/echo
  modhost module order`,
		Aliases: []string{"modules", "mod"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	moduleCmd.AddCommand(&cobra.Command{
		Use:   "list [dir]",
		Short: "List the packages in a modules directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listModules(cmd, app, args)
		},
	})

	moduleCmd.AddCommand(&cobra.Command{
		Use:   "validate <dir>",
		Short: "Validate one package manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateModule(cmd, app, args[0])
		},
	})

	moduleCmd.AddCommand(&cobra.Command{
		Use:   "order [dir]",
		Short: "Show the order the packages would load in",
		Long: `Show the order the packages in a modules directory would load in,
assuming every load succeeds. Packages whose load_before targets can never
be registered, including cycles, are listed with the reason.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showLoadOrder(cmd, app, args)
		},
	})

	return moduleCmd
}

// modulesDirArg returns the directory argument, or the configured modules
// directory when none was given.
func modulesDirArg(cmd *cobra.Command, app *App, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := app.loadConfig(cmd.Context())
	if err != nil {
		return "", err
	}
	return cfg.ModulesDir, nil
}

func discoverPackages(dir string) ([]loader.Candidate, error) {
	candidates, err := loader.Discover(dir)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("discover modules").
			WithResource(dir).
			WithIssue(issue.ModulesDirUnreadableId).
			Wrap(err).
			BuildError()
	}
	return candidates, nil
}

func listModules(cmd *cobra.Command, app *App, args []string) error {
	stdout := cmd.OutOrStdout()

	dir, err := modulesDirArg(cmd, app, args)
	if err != nil {
		return reportError(cmd, app, err)
	}
	candidates, err := discoverPackages(dir)
	if err != nil {
		return reportError(cmd, app, err)
	}

	fmt.Fprintln(stdout, TitleStyle.Render("Modules"))
	fmt.Fprintf(stdout, "%s Path: %s\n\n", infoIcon, modulePathStyle.Render(dir))

	if len(candidates) == 0 {
		fmt.Fprintf(stdout, "%s No packages found\n", infoIcon)
		return nil
	}

	l := loader.New(loader.Config{})
	invalid := 0
	for _, c := range candidates {
		d, err := l.Describe(c.Path)
		if err != nil {
			invalid++
			fmt.Fprintf(stdout, "%s %s\n", errorIcon, moduleNameStyle.Render(c.Name()))
			fmt.Fprintf(stdout, "   %s\n", ErrorStyle.Render(err.Error()))
			continue
		}
		printDescriptor(stdout, d)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s %d package(s), %d invalid\n", infoIcon, len(candidates), invalid)
	return nil
}

func printDescriptor(w io.Writer, d *modmanifest.Descriptor) {
	fmt.Fprintf(w, "%s %s %s\n", successIcon, moduleNameStyle.Render(string(d.Name)), moduleVersionStyle.Render(string(d.Version)))
	if d.Description != "" {
		fmt.Fprintf(w, "   %s\n", SubtitleStyle.Render(d.Description))
	}
	fmt.Fprintf(w, "   %s%s\n", moduleLabelStyle.Render("entry"), d.Entry)
	if len(d.LoadBefore) > 0 {
		names := make([]string, len(d.LoadBefore))
		for i, n := range d.LoadBefore {
			names[i] = string(n)
		}
		fmt.Fprintf(w, "   %s%s\n", moduleLabelStyle.Render("load before"), strings.Join(names, ", "))
	}
	if len(d.Capabilities) > 0 {
		fmt.Fprintf(w, "   %s%s\n", moduleLabelStyle.Render("capabilities"), strings.Join(d.Capabilities, ", "))
	}
	if len(d.Commands) > 0 {
		cmds := make([]string, len(d.Commands))
		for i, c := range d.Commands {
			cmds[i] = c.Name
		}
		fmt.Fprintf(w, "   %s%s\n", moduleLabelStyle.Render("commands"), strings.Join(cmds, ", "))
	}
}

func validateModule(cmd *cobra.Command, app *App, dir string) error {
	stdout := cmd.OutOrStdout()

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return reportError(cmd, app, issue.NewErrorContext().
			WithOperation("validate module").
			WithResource(dir).
			WithSuggestion("Pass the package directory, not the manifest file").
			Wrap(err).
			BuildError())
	}

	d, err := modmanifest.ParseDir(dir)
	if err != nil {
		return reportError(cmd, app, issue.NewErrorContext().
			WithOperation("validate module").
			WithResource(dir).
			WithSuggestion("The package needs one of module.cue, module.yaml, module.yml or module.toml").
			WithIssue(issue.ManifestInvalidId).
			Wrap(err).
			BuildError())
	}

	fmt.Fprintln(stdout, TitleStyle.Render("Module Validation"))
	fmt.Fprintf(stdout, "%s Manifest: %s\n\n", infoIcon, modulePathStyle.Render(d.Source))
	printDescriptor(stdout, d)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s %s is valid\n", successIcon, d.Name)
	return nil
}

func showLoadOrder(cmd *cobra.Command, app *App, args []string) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	dir, err := modulesDirArg(cmd, app, args)
	if err != nil {
		return reportError(cmd, app, err)
	}
	candidates, err := discoverPackages(dir)
	if err != nil {
		return reportError(cmd, app, err)
	}

	mgr := manager.New(manager.Deps{Loader: loader.New(loader.Config{})})
	plan := mgr.Plan(candidates)

	fmt.Fprintln(stdout, TitleStyle.Render("Load Order"))
	fmt.Fprintf(stdout, "%s Path: %s\n\n", infoIcon, modulePathStyle.Render(dir))

	if len(plan.Order) == 0 {
		fmt.Fprintf(stdout, "%s Nothing would load\n", infoIcon)
	}
	for i, d := range plan.Order {
		fmt.Fprintf(stdout, "  %d. %s %s\n", i+1, moduleNameStyle.Render(string(d.Name)), moduleVersionStyle.Render(string(d.Version)))
	}

	if len(plan.Failed) == 0 {
		return nil
	}

	fmt.Fprintln(stderr)
	fmt.Fprintf(stderr, "%s %d package(s) would fail:\n\n", warningIcon, len(plan.Failed))
	for _, r := range plan.Failed {
		fmt.Fprintf(stderr, "  %s %s\n", errorIcon, moduleNameStyle.Render(r.Module))
		fmt.Fprintf(stderr, "     %s\n", r.Reason)
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: 1}
}
