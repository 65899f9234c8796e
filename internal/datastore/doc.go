// SPDX-License-Identifier: MPL-2.0

// Package datastore persists module key/value data in a single SQLite file.
//
// Each module sees only its own namespace through hostapi.Store. Rows are
// keyed by (module, key), so a module that is unloaded and loaded again
// finds its data where it left it.
package datastore
