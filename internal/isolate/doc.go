// SPDX-License-Identifier: MPL-2.0

// Package isolate provides the per-module isolation boundary.
//
// Go cannot unload code, so a Boundary scopes everything else a module owns:
// a cancellable context, a symbol table, and the goroutine and subprocess
// workers started on the module's behalf. Close cancels the context, waits a
// bounded grace period for each worker, then kills surviving processes and
// abandons surviving goroutines. After Close, symbol lookups fail.
package isolate
