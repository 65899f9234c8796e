// SPDX-License-Identifier: MPL-2.0

// Package modmanifest parses and validates module manifests.
//
// A module package is a directory holding exactly one manifest. The manifest
// can be written as module.cue (validated against an embedded CUE schema),
// module.yaml / module.yml, or module.toml. All three decode into the same
// immutable Descriptor and pass the same Go-side validation.
package modmanifest
