// SPDX-License-Identifier: MPL-2.0

package hostapi

import (
	"context"
	"io"
)

type (
	// CommandExecutor is a command a module publishes to the front end.
	CommandExecutor interface {
		Name() string
		Description() string
		Invoke(ctx context.Context, cc *CommandContext) error
	}

	// CommandContext carries one invocation.
	CommandContext struct {
		// Command is the invoked name.
		Command string
		// Args are the invocation arguments.
		Args []string
		// Out receives the command's reply.
		Out io.Writer
		// Source identifies who invoked the command (e.g. "console", "ssh:alice").
		Source string
	}

	// CommandFunc adapts a function to CommandExecutor.
	CommandFunc struct {
		CommandName string
		Summary     string
		Fn          func(ctx context.Context, cc *CommandContext) error
	}
)

// Name returns the command name.
func (c *CommandFunc) Name() string { return c.CommandName }

// Description returns the summary line.
func (c *CommandFunc) Description() string { return c.Summary }

// Invoke calls Fn.
func (c *CommandFunc) Invoke(ctx context.Context, cc *CommandContext) error {
	return c.Fn(ctx, cc)
}
