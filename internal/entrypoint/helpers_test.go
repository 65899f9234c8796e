// SPDX-License-Identifier: MPL-2.0

package entrypoint

import (
	"io"
	"testing"
	"time"

	"github.com/modhost/modhost/internal/command"
	"github.com/modhost/modhost/internal/isolate"
	"github.com/modhost/modhost/internal/module"
	"github.com/modhost/modhost/pkg/hostapi"
	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/charmbracelet/log"
)

func newInstance(t *testing.T, d *modmanifest.Descriptor, m hostapi.Module, cmds *command.Registry) *module.Instance {
	t.Helper()
	logger := log.New(io.Discard)
	b := isolate.New(string(d.Name), isolate.WithGracePeriod(100*time.Millisecond), isolate.WithLogger(logger))
	t.Cleanup(func() { _ = b.Close() })
	return module.New(module.Config{
		Descriptor: d,
		Module:     m,
		Boundary:   b,
		Commands:   cmds,
		DataRoot:   t.TempDir(),
		Logger:     logger,
	})
}
