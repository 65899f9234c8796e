// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/modhost/modhost/cmd/modhost"

func main() {
	cmd.Execute()
}
