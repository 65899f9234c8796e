// SPDX-License-Identifier: MPL-2.0

package hostapi

import "context"

type (
	// Module is the lifecycle interface every module implements. Hooks may
	// return an error or panic; the host converts both into a hook fault and
	// never lets them escape.
	Module interface {
		// OnLoad runs once after the module is registered. The Host handle
		// stays valid until the module is unloaded.
		OnLoad(ctx context.Context, host Host) error
		// OnEnable runs on every transition to enabled.
		OnEnable(ctx context.Context) error
		// OnDisable runs on every transition to disabled.
		OnDisable(ctx context.Context) error
	}

	// Factory creates a fresh Module value for one load.
	Factory func() Module

	// BaseModule provides no-op hooks. Embed it and override what you need.
	BaseModule struct{}
)

// OnLoad does nothing.
func (BaseModule) OnLoad(context.Context, Host) error { return nil }

// OnEnable does nothing.
func (BaseModule) OnEnable(context.Context) error { return nil }

// OnDisable does nothing.
func (BaseModule) OnDisable(context.Context) error { return nil }
