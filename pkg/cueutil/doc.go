// SPDX-License-Identifier: MPL-2.0

// Package cueutil wraps the schema-first CUE parsing flow shared by module
// manifests and host configuration:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with a schema definition
//  3. Validate, then decode to a Go struct or map
//
// # Usage
//
//	//go:embed module_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Descriptor](schema, data, "#Module",
//	    cueutil.WithFilename("module.cue"))
package cueutil
