// SPDX-License-Identifier: MPL-2.0

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/modhost/modhost/internal/command"
	"github.com/modhost/modhost/internal/manager"
	"github.com/modhost/modhost/internal/module"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"
)

// DefaultPrompt is written before each line when a prompt is enabled.
const DefaultPrompt = "modhost> "

// ErrUsage is returned for malformed console lines.
var ErrUsage = errors.New("usage")

type (
	// Lifecycle is the subset of the module manager the console drives.
	Lifecycle interface {
		LoadOne(ctx context.Context, path string) manager.Result
		Enable(ctx context.Context, name string) manager.Result
		Disable(ctx context.Context, name string) manager.Result
		Unload(ctx context.Context, name string) manager.Result
		EnableAll(ctx context.Context, skip ...string) []manager.Result
		DisableAll(ctx context.Context) []manager.Result
		UnloadAll(ctx context.Context) []manager.Result
		List() []*module.Instance
	}

	// Dispatcher runs module commands.
	Dispatcher interface {
		Dispatch(ctx context.Context, name string, args []string, out io.Writer, source string) error
		Commands() []command.Info
	}

	// Config holds the console's collaborators.
	Config struct {
		Modules  Lifecycle
		Commands Dispatcher
		// ModulesDir resolves relative package paths given to "module load".
		ModulesDir string
		// Stop is called by the "stop" verb. Nil disables the verb.
		Stop   func()
		Logger *log.Logger
	}

	// Console executes operator lines. It is safe for concurrent use by
	// several front ends; lifecycle calls serialize inside the manager.
	Console struct {
		modules    Lifecycle
		commands   Dispatcher
		modulesDir string
		stop       func()
		logger     *log.Logger
	}
)

// New creates a console.
func New(cfg Config) *Console {
	c := &Console{
		modules:    cfg.Modules,
		commands:   cfg.Commands,
		modulesDir: cfg.ModulesDir,
		stop:       cfg.Stop,
		logger:     cfg.Logger,
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Serve reads lines from in until EOF or ctx is done, writing replies to
// out. Errors from individual lines are written to out and never end the
// session. prompt may be empty.
func (c *Console) Serve(ctx context.Context, in io.Reader, out io.Writer, source, prompt string) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if prompt != "" {
			fmt.Fprint(out, prompt)
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if err := c.Execute(ctx, line, out, source); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

// Execute runs one console line.
func (c *Console) Execute(ctx context.Context, line string, out io.Writer, source string) error {
	fields, err := shell.Fields(line, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if len(fields) == 0 {
		return nil
	}

	c.logger.Debug("console", "source", source, "line", line)

	verb, args := fields[0], fields[1:]
	switch verb {
	case "module", "modules", "mod":
		return c.module(ctx, args, out)
	case "workers":
		c.workers(out)
		return nil
	case "commands":
		c.listCommands(out)
		return nil
	case "stop", "shutdown":
		if c.stop == nil {
			return fmt.Errorf("%w: stop is not available here", ErrUsage)
		}
		fmt.Fprintln(out, "stopping")
		c.stop()
		return nil
	case "help", "?":
		writeHelp(out)
		return nil
	default:
		return c.commands.Dispatch(ctx, verb, args, out, source)
	}
}

func (c *Console) module(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: module <load|unload|enable|disable|list> [name|all]", ErrUsage)
	}
	action := args[0]
	if action == "list" {
		c.listModules(out)
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: module %s <name|all>", ErrUsage, action)
	}
	target := args[1]
	all := target == "all"

	switch action {
	case "load":
		if all {
			return fmt.Errorf("%w: module load <package>", ErrUsage)
		}
		writeResults(out, c.modules.LoadOne(ctx, c.packagePath(target)))
	case "enable":
		if all {
			writeResults(out, c.modules.EnableAll(ctx)...)
		} else {
			writeResults(out, c.modules.Enable(ctx, target))
		}
	case "disable":
		if all {
			writeResults(out, c.modules.DisableAll(ctx)...)
		} else {
			writeResults(out, c.modules.Disable(ctx, target))
		}
	case "unload":
		if all {
			writeResults(out, c.modules.DisableAll(ctx)...)
			writeResults(out, c.modules.UnloadAll(ctx)...)
			return nil
		}
		if res := c.modules.Disable(ctx, target); !res.OK || res.Changed {
			writeResults(out, res)
			if !res.OK {
				return nil
			}
		}
		writeResults(out, c.modules.Unload(ctx, target))
	default:
		return fmt.Errorf("%w: unknown module action %q", ErrUsage, action)
	}
	return nil
}

func (c *Console) packagePath(target string) string {
	if filepath.IsAbs(target) || c.modulesDir == "" || strings.ContainsRune(target, filepath.Separator) {
		return target
	}
	return filepath.Join(c.modulesDir, target)
}

func (c *Console) listModules(out io.Writer) {
	instances := c.modules.List()
	if len(instances) == 0 {
		fmt.Fprintln(out, "no modules loaded")
		return
	}
	for _, inst := range instances {
		status := "disabled"
		if inst.Enabled() {
			status = "enabled"
		}
		d := inst.Descriptor()
		fmt.Fprintf(out, "• %s %s (%s, %s)\n", inst.Name(), d.Version, status, d.Entry)
	}
}

func (c *Console) workers(out io.Writer) {
	total := 0
	for _, inst := range c.modules.List() {
		for _, w := range inst.Boundary().Workers() {
			total++
			if w.PID > 0 {
				fmt.Fprintf(out, "• %s/%s %s pid=%d up %s\n", inst.Name(), w.Name, w.Kind, w.PID, w.Uptime().Round(time.Second))
				continue
			}
			fmt.Fprintf(out, "• %s/%s %s up %s\n", inst.Name(), w.Name, w.Kind, w.Uptime().Round(time.Second))
		}
	}
	if total == 0 {
		fmt.Fprintln(out, "no live workers")
	}
}

func (c *Console) listCommands(out io.Writer) {
	infos := c.commands.Commands()
	if len(infos) == 0 {
		fmt.Fprintln(out, "no commands registered")
		return
	}
	for _, info := range infos {
		if info.Description != "" {
			fmt.Fprintf(out, "• %s [%s/%s] %s\n", info.Name, info.Owner, info.Group, info.Description)
			continue
		}
		fmt.Fprintf(out, "• %s [%s/%s]\n", info.Name, info.Owner, info.Group)
	}
}

func writeResults(out io.Writer, results ...manager.Result) {
	if len(results) == 0 {
		fmt.Fprintln(out, "nothing to do")
		return
	}
	for _, r := range results {
		fmt.Fprintln(out, r.Reason)
	}
}

func writeHelp(out io.Writer) {
	fmt.Fprint(out, `module load <package>          load a package from the modules directory
module enable <name|all>       enable modules
module disable <name|all>      disable modules
module unload <name|all>       disable, then unload modules
module list                    list loaded modules
workers                        list live module workers
commands                       list module commands
stop                           shut the host down
<command> [args...]            run a module command
`)
}
