// SPDX-License-Identifier: MPL-2.0

// Package console implements the operator command line shared by the stdin
// and SSH front ends.
//
// A line is split into fields with shell quoting rules. The first field
// selects a console verb (module, workers, commands, stop, help); any other
// word is dispatched to the module command of that name.
package console
