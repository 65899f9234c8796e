// SPDX-License-Identifier: MPL-2.0

package command

import (
	"context"

	"github.com/charmbracelet/log"
)

type (
	// Publisher mirrors command changes into an external front end.
	Publisher interface {
		Upsert(ctx context.Context, info Info) error
		Delete(ctx context.Context, name string) error
	}

	// LogPublisher only logs changes. It is used when no front end is
	// attached.
	LogPublisher struct {
		Logger *log.Logger
	}
)

// Upsert logs the published command.
func (p *LogPublisher) Upsert(_ context.Context, info Info) error {
	p.Logger.Debug("publish command", "command", info.Name, "group", info.Group, "owner", info.Owner)
	return nil
}

// Delete logs the withdrawn command.
func (p *LogPublisher) Delete(_ context.Context, name string) error {
	p.Logger.Debug("withdraw command", "command", name)
	return nil
}
