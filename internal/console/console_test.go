// SPDX-License-Identifier: MPL-2.0

package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modhost/modhost/internal/builtins"
	"github.com/modhost/modhost/internal/command"
	"github.com/modhost/modhost/internal/entrypoint"
	"github.com/modhost/modhost/internal/loader"
	"github.com/modhost/modhost/internal/manager"
	"github.com/modhost/modhost/internal/module"
	"github.com/modhost/modhost/internal/registry"
	"github.com/modhost/modhost/internal/testutil"
	"github.com/modhost/modhost/pkg/hostapi"

	"github.com/charmbracelet/log"
)

type fixture struct {
	console *Console
	mgr     *manager.Manager
	stopped atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	testutil.WriteModulePackage(t, root, testutil.ModulePackage{Name: "echo"})
	testutil.WriteModulePackage(t, root, testutil.ModulePackage{Name: "kv"})

	logger := log.New(io.Discard)
	catalog := entrypoint.NewCatalog()
	builtins.Register(catalog)
	cmds := command.New(command.WithLogger(logger))

	f := &fixture{}
	f.mgr = manager.New(manager.Deps{
		Loader: loader.New(loader.Config{
			Catalog:     catalog,
			Commands:    cmds,
			DataRoot:    t.TempDir(),
			GracePeriod: 50 * time.Millisecond,
			Logger:      logger,
		}),
		Registry: registry.New[*module.Instance](),
		Logger:   logger,
	})
	f.console = New(Config{
		Modules:    f.mgr,
		Commands:   cmds,
		ModulesDir: root,
		Stop:       func() { f.stopped.Store(true) },
		Logger:     logger,
	})
	t.Cleanup(func() {
		ctx := context.Background()
		f.mgr.DisableAll(ctx)
		f.mgr.UnloadAll(ctx)
	})
	return f
}

func (f *fixture) run(t *testing.T, line string) string {
	t.Helper()
	var out bytes.Buffer
	if err := f.console.Execute(context.Background(), line, &out, "test"); err != nil {
		t.Fatalf("Execute(%q) error: %v", line, err)
	}
	return out.String()
}

func TestModuleLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	steps := []struct {
		line string
		want string
	}{
		{"module load echo", "loaded echo 1.0.0\n"},
		{"module enable echo", "enabled echo\n"},
		{"module enable echo", "echo is already enabled\n"},
		{`echo hi "there friend"`, "hi there friend\n"},
		{"module list", "• echo 1.0.0 (enabled, builtin:echo)\n"},
		{"module unload echo", "disabled echo\nunloaded echo\n"},
		{"module list", "no modules loaded\n"},
		{"commands", "no commands registered\n"},
		{"workers", "no live workers\n"},
	}
	for _, step := range steps {
		if got := f.run(t, step.line); got != step.want {
			t.Errorf("%q = %q, want %q", step.line, got, step.want)
		}
	}
}

func TestUnloadUnknownModule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	got := f.run(t, "module unload ghost")
	if !strings.Contains(got, "module not found") || strings.Contains(got, "unloaded") {
		t.Errorf("unload ghost = %q", got)
	}
}

func TestLoadDuplicateName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.run(t, "module load echo")
	got := f.run(t, "module load echo")
	if !strings.Contains(got, "duplicate module") {
		t.Errorf("second load = %q", got)
	}
	if len(f.mgr.List()) != 1 {
		t.Errorf("loaded modules = %d, want 1", len(f.mgr.List()))
	}
}

func TestBroadcast(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.run(t, "module load echo")
	f.run(t, "module load kv")

	if got := f.run(t, "module enable all"); got != "enabled echo\nenabled kv\n" {
		t.Errorf("enable all = %q", got)
	}
	want := "disabled echo\ndisabled kv\nunloaded kv\nunloaded echo\n"
	if got := f.run(t, "module unload all"); got != want {
		t.Errorf("unload all = %q, want %q", got, want)
	}
	if len(f.mgr.List()) != 0 {
		t.Errorf("modules left after unload all: %d", len(f.mgr.List()))
	}
}

func TestUsageErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, line := range []string{"module", "module enable", "module bounce echo", "module load all", `echo "open`} {
		err := f.console.Execute(context.Background(), line, io.Discard, "test")
		if !errors.Is(err, ErrUsage) {
			t.Errorf("Execute(%q) error = %v, want ErrUsage", line, err)
		}
	}

	err := f.console.Execute(context.Background(), "frobnicate", io.Discard, "test")
	if !errors.Is(err, hostapi.ErrCommandNotFound) {
		t.Errorf("unknown command error = %v", err)
	}
}

func TestStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.run(t, "stop")
	if !f.stopped.Load() {
		t.Error("stop verb did not call Stop")
	}

	c := New(Config{Modules: f.mgr})
	if err := c.Execute(context.Background(), "stop", io.Discard, "test"); !errors.Is(err, ErrUsage) {
		t.Errorf("stop without handler = %v", err)
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := strings.NewReader("module load echo\n\nmodule enable echo\nnope\necho done\n")
	var out bytes.Buffer

	if err := f.console.Serve(context.Background(), in, &out, "test", ""); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"loaded echo", "enabled echo", "error: ", "done\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	pr, pw := io.Pipe()
	defer testutil.MustClose(t, pw)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.console.Serve(ctx, pr, io.Discard, "test", DefaultPrompt) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
