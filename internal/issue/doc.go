// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable, user-facing errors and a catalog of
// Markdown explanations for the host's failure kinds, rendered by
// "modhost explain".
package issue
