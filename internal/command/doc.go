// SPDX-License-Identifier: MPL-2.0

// Package command implements the command ownership sink.
//
// Every command is registered with the name of the module that owns it,
// inside a named group. Unloading a module sweeps its commands with
// RemoveAll. Changes are forwarded to a Publisher, the seam where an
// external front end keeps its own command list in sync.
package command
