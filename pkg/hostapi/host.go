// SPDX-License-Identifier: MPL-2.0

package hostapi

import (
	"context"
	"errors"
	"os/exec"

	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/charmbracelet/log"
)

var (
	// ErrUnavailableDuringLoad is returned by command registration before the
	// module's OnLoad hook has started.
	ErrUnavailableDuringLoad = errors.New("command registration is not available before OnLoad")
	// ErrCommandConflict is returned when a command name is already owned.
	ErrCommandConflict = errors.New("command already registered")
	// ErrCommandNotFound is returned when no enabled command matches a name.
	ErrCommandNotFound = errors.New("command not found")
)

type (
	// Host is the per-module handle given to OnLoad.
	Host interface {
		// Descriptor returns the module's parsed manifest.
		Descriptor() *modmanifest.Descriptor
		// DataDir returns the module's private data directory, creating it
		// on first call.
		DataDir() (string, error)
		// Logger returns a logger tagged with the module name.
		Logger() *log.Logger
		// Context is cancelled when the module is unloaded.
		Context() context.Context

		// RegisterCommand publishes executor under group ("" for the
		// default group).
		RegisterCommand(group string, executor CommandExecutor) error
		// RemoveCommand withdraws a single executor owned by this module.
		RemoveCommand(executor CommandExecutor) error
		// RemoveAllCommands withdraws every executor owned by this module.
		RemoveAllCommands()

		// Go starts fn as a worker rooted in the module's boundary and
		// returns its worker ID. fn must return once ctx is done.
		Go(name string, fn func(ctx context.Context) error) (string, error)
		// StartProcess starts cmd as a worker rooted in the module's
		// boundary and returns its worker ID. The process is interrupted,
		// then killed, when stopped.
		StartProcess(name string, cmd *exec.Cmd) (string, error)
		// StopWorker cancels one worker and waits for it within the host's
		// grace period.
		StopWorker(id string) error

		// Export publishes a value in the module's symbol table.
		Export(symbol string, value any) error
		// Lookup resolves a symbol exported by this module or, qualified as
		// "<module>.<symbol>", by another loaded module.
		Lookup(symbol string) (any, error)

		// Store returns the module's namespace in the host data store.
		Store() Store
	}

	// Store is a per-module key/value namespace.
	Store interface {
		Get(ctx context.Context, key string) ([]byte, bool, error)
		Put(ctx context.Context, key string, value []byte) error
		Delete(ctx context.Context, key string) error
		Keys(ctx context.Context) ([]string, error)
	}
)
