// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `modhost config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modhost configuration",
		Long: `Manage modhost configuration.

Configuration is stored in:
  - Linux: ~/.config/modhost/config.cue
  - macOS: ~/Library/Application Support/modhost/config.cue
  - Windows: %APPDATA%\modhost\config.cue

A config.cue in the working directory is used when none of these exists.
MODHOST_* environment variables override the file, e.g.
MODHOST_LOG_LEVEL=debug or MODHOST_CONSOLE_SSH_ENABLED=true.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return reportError(cmd, app, err)
			}
			showConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	})

	var initDir string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd, app, initDir)
		},
	}
	initCmd.Flags().StringVar(&initDir, "dir", "", "directory to write config.cue into (default is the platform config directory)")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return reportError(cmd, app, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config directory: %s\n", cfgDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return reportError(cmd, app, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	none := SubtitleStyle.Render("(none)")

	list := func(items []string) string {
		if len(items) == 0 {
			return none
		}
		return valueStyle.Render(strings.Join(items, ", "))
	}
	field := func(indent, key, value string) {
		fmt.Fprintf(w, "%s%s: %s\n", indent, keyStyle.Render(key), value)
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if cfg.Source != "" {
		field("", "Config file", cfg.Source)
	} else {
		field("", "Config file", SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	field("", "modules_dir", valueStyle.Render(cfg.ModulesDir))
	field("", "data_dir", valueStyle.Render(cfg.DataDir))
	field("", "disabled_modules", list(cfg.DisabledModules))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("log"))
	field("  ", "level", valueStyle.Render(cfg.Log.Level))
	field("  ", "format", valueStyle.Render(cfg.Log.Format))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("unload"))
	field("  ", "grace_period", valueStyle.Render(cfg.Unload.GracePeriod.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("datastore"))
	field("  ", "path", valueStyle.Render(cfg.DatastorePath()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("watch"))
	field("  ", "enabled", valueStyle.Render(fmt.Sprintf("%v", cfg.Watch.Enabled)))
	field("  ", "debounce", valueStyle.Render(cfg.Watch.Debounce.String()))
	field("  ", "ignore", list(cfg.Watch.Ignore))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("console"))
	field("  ", "stdin", valueStyle.Render(fmt.Sprintf("%v", cfg.Console.Stdin)))
	fmt.Fprintf(w, "  %s:\n", keyStyle.Render("ssh"))
	field("    ", "enabled", valueStyle.Render(fmt.Sprintf("%v", cfg.Console.SSH.Enabled)))
	field("    ", "address", valueStyle.Render(fmt.Sprintf("%s:%d", cfg.Console.SSH.Host, cfg.Console.SSH.Port)))
	if cfg.Console.SSH.Token != "" {
		field("    ", "token", valueStyle.Render("****"))
	} else {
		field("    ", "token", SubtitleStyle.Render("(generated at startup)"))
	}
}

func initConfig(cmd *cobra.Command, app *App, dir string) error {
	if dir == "" {
		cfgDir, err := config.ConfigDir()
		if err != nil {
			return reportError(cmd, app, err)
		}
		dir = cfgDir
	}

	path, err := config.CreateDefaultConfig(dir)
	if err != nil {
		return reportError(cmd, app, issue.WrapWithContext(err, "create default configuration", dir))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration at %s\n", successIcon, path)
	return nil
}
