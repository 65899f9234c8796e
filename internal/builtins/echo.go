// SPDX-License-Identifier: MPL-2.0

package builtins

import (
	"context"
	"fmt"
	"strings"

	"github.com/modhost/modhost/pkg/hostapi"
)

// GreetingSymbol is exported by Echo for other modules to resolve as
// "<name>.greeting".
const GreetingSymbol = "greeting"

// Echo registers an "echo" command that prints its arguments.
type Echo struct {
	hostapi.BaseModule
}

// OnLoad registers the command and exports a greeting function.
func (e *Echo) OnLoad(_ context.Context, host hostapi.Host) error {
	greet := func(who string) string { return "hello, " + who }
	if err := host.Export(GreetingSymbol, greet); err != nil {
		return err
	}
	return host.RegisterCommand("", &hostapi.CommandFunc{
		CommandName: "echo",
		Summary:     "print the arguments",
		Fn: func(_ context.Context, cc *hostapi.CommandContext) error {
			_, err := fmt.Fprintln(cc.Out, strings.Join(cc.Args, " "))
			return err
		},
	})
}
