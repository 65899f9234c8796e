// SPDX-License-Identifier: MPL-2.0

// Package loader finds module packages on disk, reads their manifests and
// binds each one to a fresh isolation boundary.
//
// The loader never touches the registry; ordering and bookkeeping belong to
// the manager.
package loader
