// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"

	"github.com/modhost/modhost/internal/host"

	"github.com/spf13/cobra"
)

type runOptions struct {
	modulesDir string
	noConsole  bool
	ssh        bool
}

// newRunCommand creates the `modhost run` command.
func newRunCommand(app *App) *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the host",
		Long: `Start the host: discover the packages in the modules directory, load
them in load_before order and enable them.

The operator console reads commands from stdin until EOF. Type 'help' for
the list of console commands and 'stop' to shut the host down. The host
also stops on SIGINT and SIGTERM, disabling and unloading every module
before it exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHost(cmd, app, opts)
		},
	}

	runCmd.Flags().StringVar(&opts.modulesDir, "modules-dir", "", "override the configured modules directory")
	runCmd.Flags().BoolVar(&opts.noConsole, "no-console", false, "do not read console commands from stdin")
	runCmd.Flags().BoolVar(&opts.ssh, "ssh", false, "serve the console over SSH even if disabled in the config")
	return runCmd
}

func runHost(cmd *cobra.Command, app *App, opts runOptions) error {
	ctx := cmd.Context()

	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return reportError(cmd, app, err)
	}
	if opts.modulesDir != "" {
		cfg.ModulesDir = opts.modulesDir
	}
	if opts.ssh {
		cfg.Console.SSH.Enabled = true
	}

	h, err := host.New(ctx, host.Options{
		Config:    cfg,
		LogOutput: cmd.ErrOrStderr(),
	})
	if err != nil {
		return reportError(cmd, app, err)
	}

	var in io.Reader
	if cfg.Console.Stdin && !opts.noConsole {
		in = cmd.InOrStdin()
	}
	if err := h.Run(ctx, in, cmd.OutOrStdout()); err != nil {
		return reportError(cmd, app, err)
	}
	return nil
}
