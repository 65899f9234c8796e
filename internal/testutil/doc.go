// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that fail the test on error,
// plus WriteModulePackage for building module packages on disk.
package testutil
