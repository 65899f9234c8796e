// SPDX-License-Identifier: MPL-2.0

package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modhost/modhost/pkg/hostapi"
	"github.com/modhost/modhost/pkg/modmanifest"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// ScriptModule registers the commands declared in a script manifest.
	// Scripts are parsed when the module is built, so syntax errors surface
	// as load failures rather than at first invocation.
	ScriptModule struct {
		hostapi.BaseModule
		desc     *modmanifest.Descriptor
		commands []*scriptCommand
	}

	scriptCommand struct {
		spec modmanifest.CommandSpec
		prog *syntax.File
		dir  string
		host hostapi.Host
	}

	// ExitStatusError is returned when a script exits non-zero.
	ExitStatusError struct {
		Command string
		Code    uint8
	}
)

// NewScriptModule parses every command script of d.
func NewScriptModule(d *modmanifest.Descriptor) (*ScriptModule, error) {
	m := &ScriptModule{desc: d}
	parser := syntax.NewParser()
	for _, spec := range d.Commands {
		prog, err := parser.Parse(strings.NewReader(spec.Script), spec.Name)
		if err != nil {
			return nil, fmt.Errorf("parse script of command %s: %w", spec.Name, err)
		}
		m.commands = append(m.commands, &scriptCommand{spec: spec, prog: prog, dir: d.Dir})
	}
	return m, nil
}

// OnLoad registers every declared command.
func (m *ScriptModule) OnLoad(_ context.Context, host hostapi.Host) error {
	for _, c := range m.commands {
		c.host = host
		if err := host.RegisterCommand(c.spec.Group, c); err != nil {
			return fmt.Errorf("register %s: %w", c.spec.Name, err)
		}
	}
	return nil
}

// Error implements the error interface.
func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("command %s exited with status %d", e.Command, e.Code)
}

func (c *scriptCommand) Name() string { return c.spec.Name }

func (c *scriptCommand) Description() string { return c.spec.Description }

// Invoke runs the script with the invocation arguments as positional
// parameters. It stops when either the caller's context or the module's
// context ends.
func (c *scriptCommand) Invoke(ctx context.Context, cc *hostapi.CommandContext) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.host.Context(), cancel)
	defer stop()

	env := append(os.Environ(),
		"MODHOST_MODULE="+string(c.host.Descriptor().Name),
		"MODHOST_COMMAND="+c.spec.Name,
		"MODHOST_SOURCE="+cc.Source,
	)
	if dataDir, err := c.host.DataDir(); err == nil {
		env = append(env, "MODHOST_DATA_DIR="+dataDir)
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, cc.Out, cc.Out),
		interp.ExecHandlers(c.traceExec),
		// "--" keeps arguments such as "-v" from being read as shell options.
		interp.Params(append([]string{"--"}, cc.Args...)...),
	}
	if c.dir != "" {
		opts = append(opts, interp.Dir(c.dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("create interpreter: %w", err)
	}

	if err := runner.Run(ctx, c.prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitStatusError{Command: c.spec.Name, Code: uint8(status)}
		}
		return fmt.Errorf("run %s: %w", c.spec.Name, err)
	}
	return nil
}

func (c *scriptCommand) traceExec(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		c.host.Logger().Debug("script exec", "command", c.spec.Name, "argv", args)
		return next(ctx, args)
	}
}
