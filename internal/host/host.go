// SPDX-License-Identifier: MPL-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/modhost/modhost/internal/builtins"
	"github.com/modhost/modhost/internal/command"
	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/console"
	"github.com/modhost/modhost/internal/datastore"
	"github.com/modhost/modhost/internal/entrypoint"
	"github.com/modhost/modhost/internal/issue"
	"github.com/modhost/modhost/internal/loader"
	"github.com/modhost/modhost/internal/logging"
	"github.com/modhost/modhost/internal/manager"
	"github.com/modhost/modhost/internal/module"
	"github.com/modhost/modhost/internal/registry"
	"github.com/modhost/modhost/internal/sshserver"
	"github.com/modhost/modhost/internal/watch"
	"github.com/modhost/modhost/pkg/hostapi"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("host already started")

type (
	// Options configures New. Only Config is required.
	Options struct {
		Config *config.Config
		// LogOutput receives log lines (default: stderr).
		LogOutput io.Writer
		// Catalog supplies builtin entry points. Nil means the compiled-in
		// builtins.
		Catalog *entrypoint.Catalog
		// Publisher receives command list changes for the front end.
		Publisher command.Publisher
	}

	// Host owns every long-lived component of a modhost process.
	Host struct {
		cfg     *config.Config
		logger  *log.Logger
		store   *datastore.Store
		cmds    *command.Registry
		mgr     *manager.Manager
		console *console.Console

		mu       sync.Mutex
		started  bool
		ssh      *sshserver.Server
		watchCtx context.CancelFunc
		watchWG  sync.WaitGroup

		stopOnce     sync.Once
		stopCh       chan struct{}
		shutdownOnce sync.Once
		shutdownErr  error
	}
)

// New builds the host. Nothing is loaded until Start.
func New(ctx context.Context, opts Options) (*Host, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("host: config is required")
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}

	logger, err := logging.New(out, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	logging.InstallDefault(logger)

	store, err := datastore.Open(ctx, cfg.DatastorePath())
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("open module data store").
			WithResource(cfg.DatastorePath()).
			WithSuggestion("Check that data_dir is writable").
			Wrap(err).
			BuildError()
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = entrypoint.NewCatalog()
		builtins.Register(catalog)
	}

	cmds := command.New(
		command.WithLogger(logger.WithPrefix("commands")),
		command.WithPublisher(opts.Publisher),
	)

	h := &Host{
		cfg:    cfg,
		logger: logger,
		store:  store,
		cmds:   cmds,
		stopCh: make(chan struct{}),
	}
	h.mgr = manager.New(manager.Deps{
		Loader: loader.New(loader.Config{
			Catalog:     catalog,
			Commands:    cmds,
			Stores:      func(name string) hostapi.Store { return store.Namespace(name) },
			DataRoot:    cfg.ModuleDataRoot(),
			GracePeriod: cfg.Unload.GracePeriod,
			Logger:      logger,
		}),
		Registry: registry.New[*module.Instance](),
		Logger:   logger.WithPrefix("modules"),
	})
	h.console = console.New(console.Config{
		Modules:    h.mgr,
		Commands:   cmds,
		ModulesDir: cfg.ModulesDir,
		Stop:       h.Stop,
		Logger:     logger.WithPrefix("console"),
	})
	return h, nil
}

// Manager returns the module manager.
func (h *Host) Manager() *manager.Manager { return h.mgr }

// Commands returns the command registry.
func (h *Host) Commands() *command.Registry { return h.cmds }

// Console returns the operator console.
func (h *Host) Console() *console.Console { return h.console }

// Store returns the module data store.
func (h *Host) Store() *datastore.Store { return h.store }

// Logger returns the root logger.
func (h *Host) Logger() *log.Logger { return h.logger }

// SSH returns the SSH console, or nil when it is disabled or not started.
func (h *Host) SSH() *sshserver.Server {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ssh
}

// Stopped is closed once Stop has been called.
func (h *Host) Stopped() <-chan struct{} { return h.stopCh }

// Stop asks Run to shut the host down. It does not wait.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Start loads and enables the modules directory, then starts the optional
// front ends. Module failures are logged and returned in the results; only
// an unreadable modules directory or a front end that cannot start is an
// error.
func (h *Host) Start(ctx context.Context) ([]manager.Result, error) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	h.started = true
	h.mu.Unlock()

	h.logBanner()

	candidates, err := loader.Discover(h.cfg.ModulesDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		h.logger.Warn("modules directory does not exist, starting empty", "dir", h.cfg.ModulesDir)
	case err != nil:
		return nil, issue.NewErrorContext().
			WithOperation("discover modules").
			WithResource(h.cfg.ModulesDir).
			WithIssue(issue.ModulesDirUnreadableId).
			Wrap(err).
			BuildError()
	}

	results := h.mgr.LoadAll(ctx, candidates)

	caps := h.mgr.Capabilities().Seal()
	h.logger.Info("capabilities requested", "count", len(caps), "capabilities", caps)

	if err := h.cmds.Flush(ctx); err != nil {
		h.logger.Warn("publishing commands failed", "err", err)
	}

	results = append(results, h.mgr.EnableAll(ctx, h.cfg.DisabledModules...)...)

	failed := manager.Failed(results)
	h.logger.Info("modules ready", "loaded", len(h.mgr.List()), "failed", len(failed))

	if err := h.startSSH(ctx); err != nil {
		return results, err
	}
	if err := h.startWatch(); err != nil {
		h.logger.Warn("hot discovery disabled", "err", err)
	}
	return results, nil
}

// Run starts the host, serves the console on in (when not nil) and blocks
// until ctx is done or Stop is called. It always shuts down before
// returning.
func (h *Host) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if _, err := h.Start(ctx); err != nil {
		return multierr.Append(err, h.Shutdown(context.Background()))
	}

	if in != nil {
		consoleCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := h.console.Serve(consoleCtx, in, out, "stdin", ""); err != nil {
				h.logger.Warn("stdin console ended", "err", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		h.logger.Info("shutting down", "reason", context.Cause(ctx))
	case <-h.stopCh:
		h.logger.Info("shutting down", "reason", "stop requested")
	}
	return h.Shutdown(context.Background())
}

// Shutdown stops the front ends, disables and unloads every module and
// closes the data store. Later calls return the first call's result.
func (h *Host) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.Stop()
		var errs error

		h.mu.Lock()
		srv, cancelWatch := h.ssh, h.watchCtx
		h.mu.Unlock()
		if cancelWatch != nil {
			cancelWatch()
			h.watchWG.Wait()
		}
		if srv != nil {
			errs = multierr.Append(errs, srv.Stop())
		}

		for _, r := range h.mgr.DisableAll(ctx) {
			if !r.OK {
				h.logger.Warn("disable failed during shutdown", "module", r.Module, "reason", r.Reason)
			}
		}
		for _, r := range h.mgr.UnloadAll(ctx) {
			if !r.OK || r.Err != nil {
				errs = multierr.Append(errs, fmt.Errorf("unload %s: %w", r.Module, r.Err))
			}
		}

		errs = multierr.Append(errs, h.store.Close())
		h.shutdownErr = errs
		h.logger.Info("host stopped")
	})
	return h.shutdownErr
}

func (h *Host) startSSH(ctx context.Context) error {
	sshCfg := h.cfg.Console.SSH
	if !sshCfg.Enabled {
		return nil
	}
	srv, err := sshserver.New(sshserver.Config{
		Host:        sshserver.HostAddress(sshCfg.Host),
		Port:        sshCfg.Port,
		Token:       sshserver.TokenValue(sshCfg.Token),
		HostKeyPath: filepath.Join(h.cfg.DataDir, "ssh_host_ed25519"),
		Prompt:      console.DefaultPrompt,
	}, h.console, h.logger.WithPrefix("ssh"))
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start SSH console: %w", err)
	}
	if sshCfg.Token == "" {
		h.logger.Info("SSH console token generated", "token", string(srv.Token()))
	}

	h.mu.Lock()
	h.ssh = srv
	h.mu.Unlock()
	return nil
}

func (h *Host) startWatch() error {
	if !h.cfg.Watch.Enabled {
		return nil
	}
	w, err := watch.New(watch.Config{
		Dir:      h.cfg.ModulesDir,
		Ignore:   h.cfg.Watch.Ignore,
		Debounce: h.cfg.Watch.Debounce,
		OnChange: h.onPackagesChanged,
		Logger:   h.logger.WithPrefix("watch"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.watchCtx = cancel
	h.mu.Unlock()

	h.watchWG.Go(func() {
		if err := w.Run(ctx); err != nil {
			h.logger.Error("modules directory watcher stopped", "err", err)
		}
	})
	h.logger.Info("watching modules directory", "dir", w.Dir())
	return nil
}

// onPackagesChanged loads and enables packages that appeared. Removed
// packages are only reported; unloading stays an operator decision.
func (h *Host) onPackagesChanged(ctx context.Context, events []watch.Event) error {
	for _, ev := range events {
		loaded := h.loadedFrom(ev.Path)
		switch {
		case ev.Removed && loaded != "":
			h.logger.Warn("package directory removed while loaded", "module", loaded, "path", ev.Path)
		case ev.Removed, loaded != "", !ev.HasManifest:
			continue
		default:
			res := h.mgr.LoadOne(ctx, ev.Path)
			if !res.OK {
				h.logger.Warn("new package failed to load", "path", ev.Path, "reason", res.Reason)
				continue
			}
			if slices.Contains(h.cfg.DisabledModules, res.Module) {
				continue
			}
			if res := h.mgr.Enable(ctx, res.Module); !res.OK {
				h.logger.Warn("new module failed to enable", "module", res.Module, "reason", res.Reason)
			}
		}
	}
	return nil
}

func (h *Host) loadedFrom(path string) string {
	for _, inst := range h.mgr.List() {
		dir, err := filepath.Abs(inst.Descriptor().Dir)
		if err == nil && dir == path {
			return inst.Name()
		}
	}
	return ""
}

func (h *Host) logBanner() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	h.logger.Info("modhost starting",
		"go", runtime.Version(),
		"os", runtime.GOOS,
		"arch", runtime.GOARCH,
		"cpus", runtime.NumCPU(),
		"heap_mb", mem.HeapAlloc>>20,
		"sys_mb", mem.Sys>>20,
		"modules_dir", h.cfg.ModulesDir,
	)
}
