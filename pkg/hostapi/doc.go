// SPDX-License-Identifier: MPL-2.0

// Package hostapi is the contract between the module host and the modules
// it runs.
//
// A module implements Module and receives a Host handle in OnLoad. The
// handle is scoped to that one module: commands it registers are owned by
// it, workers it starts are rooted in its isolation boundary, and all of
// them are swept when the module is unloaded.
package hostapi
