// SPDX-License-Identifier: MPL-2.0

// Package builtins holds the modules compiled into the modhost binary.
// Manifests reach them through "builtin:<id>" entry points.
package builtins

import (
	"github.com/modhost/modhost/internal/entrypoint"
	"github.com/modhost/modhost/pkg/hostapi"
)

const (
	// EchoID is the catalog id of the echo module.
	EchoID = "echo"
	// TickerID is the catalog id of the ticker module.
	TickerID = "ticker"
	// KVID is the catalog id of the key/value module.
	KVID = "kv"
)

// Register adds every builtin to c.
func Register(c *entrypoint.Catalog) {
	c.Register(EchoID, func() hostapi.Module { return &Echo{} })
	c.Register(TickerID, func() hostapi.Module { return NewTicker(DefaultTickInterval) })
	c.Register(KVID, func() hostapi.Module { return &KV{} })
}
