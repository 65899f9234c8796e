// SPDX-License-Identifier: MPL-2.0

// Package host is the composition root of a running modhost process.
//
// New builds the collaborators from a configuration: logger, data store,
// command registry, loader and manager. Start discovers and loads the
// modules directory, hands the capability set to the front end, publishes
// commands and enables everything not listed in disabled_modules. Shutdown
// reverses that and is safe to call more than once.
package host
