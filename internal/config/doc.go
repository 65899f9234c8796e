// SPDX-License-Identifier: MPL-2.0

// Package config loads the host configuration using Viper with CUE as the
// file format.
//
// The file is config.cue in the platform config directory
// ($XDG_CONFIG_HOME/modhost on Linux, ~/Library/Application Support/modhost
// on macOS, %APPDATA%\modhost on Windows), or config.cue in the working
// directory. It is validated against the embedded #Config schema
// (config_schema.cue). MODHOST_* environment variables override file
// values, e.g. MODHOST_LOG_LEVEL=debug or MODHOST_UNLOAD_GRACE_PERIOD=5s.
package config
