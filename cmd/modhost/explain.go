// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/modhost/modhost/internal/issue"

	"github.com/spf13/cobra"
)

// newExplainCommand creates the `modhost explain` command, which renders
// the catalog entry of an error kind.
func newExplainCommand() *cobra.Command {
	var style string

	explainCmd := &cobra.Command{
		Use:   "explain [kind]",
		Short: "Explain an error kind",
		Long: `Explain an error kind reported by modhost.

Without an argument, lists the known kinds.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				fmt.Fprintln(out, TitleStyle.Render("Error kinds"))
				fmt.Fprintln(out)
				for _, iss := range issue.Values() {
					fmt.Fprintf(out, "  %s %s\n", infoIcon, CmdStyle.Render(iss.Name()))
				}
				return nil
			}

			iss, ok := issue.Lookup(strings.ToLower(args[0]))
			if !ok {
				names := make([]string, 0, len(issue.Values()))
				for _, v := range issue.Values() {
					names = append(names, v.Name())
				}
				return fmt.Errorf("unknown error kind %q (known: %s)", args[0], strings.Join(names, ", "))
			}

			rendered, err := iss.Render(style)
			if err != nil {
				return fmt.Errorf("render %s: %w", iss.Name(), err)
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}

	explainCmd.Flags().StringVar(&style, "style", "dark", "glamour style (dark, light, notty, ...)")
	return explainCmd
}
