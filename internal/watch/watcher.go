// SPDX-License-Identifier: MPL-2.0

// Package watch reports module packages appearing in or disappearing from
// the modules directory.
//
// The modules directory and each package directory directly under it are
// watched; deeper levels are not. Events are grouped per package and
// delivered once the directory has been quiet for the debounce period, so
// a package copied in file by file is reported once, with its manifest.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modhost/modhost/pkg/modmanifest"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period used when Config.Debounce is not set.
const defaultDebounce = 500 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores are package names never reported: hidden directories,
// editor leftovers and OS metadata.
var defaultIgnores = []string{
	".*",
	"*.swp",
	"*.swo",
	"*~",
	"*.tmp",
	"_*",
}

type (
	// Event describes one package directory after the debounce window.
	Event struct {
		// Path is the package directory.
		Path string
		// Name is the directory name inside the modules directory.
		Name string
		// Removed is set when the directory no longer exists.
		Removed bool
		// HasManifest reports whether a manifest file is present.
		HasManifest bool
	}

	// Config holds the parameters for a Watcher.
	Config struct {
		// Dir is the modules directory.
		Dir string
		// Ignore are doublestar patterns matched against package directory
		// names, merged with the built-in ignores.
		Ignore []string
		// Debounce is the quiet period before OnChange fires. Zero or
		// negative values fall back to 500ms.
		Debounce time.Duration
		// OnChange receives the packages touched since the last call, sorted
		// by name. It is never called concurrently with itself.
		OnChange func(ctx context.Context, events []Event) error
		Logger   *log.Logger
	}

	// Watcher monitors the modules directory. Run must be called exactly
	// once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		dir      string
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg and starts watching the modules directory and the
// package directories already in it.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch: modules directory is required")
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve modules directory: %w", err)
	}
	if err := validatePatterns(cfg.Ignore); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		dir:      dir,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	if err := w.addDirectories(); err != nil {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	return w, nil
}

// Dir returns the absolute modules directory.
func (w *Watcher) Dir() string { return w.dir }

// Run blocks until ctx is cancelled, delivering debounced package events.
// It returns nil on cancellation and an error when the watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	// fire runs on the timer goroutine. A callback still running from the
	// previous window reschedules instead of overlapping.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		names := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(names) == 0 {
			return
		}

		events := make([]Event, 0, len(names))
		for _, name := range names {
			events = append(events, w.describe(name))
		}
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, events); err != nil {
				w.logger.Warn("package change handler failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			name, ok := w.packageName(evt.Name)
			if !ok {
				continue
			}
			if evt.Has(fsnotify.Create) && evt.Name == filepath.Join(w.dir, name) {
				w.addPackageDir(evt.Name)
			}

			mu.Lock()
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isResourceExhausted(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// packageName maps an event path to the package directory it belongs to.
func (w *Watcher) packageName(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	name, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if w.isIgnored(name) {
		return "", false
	}
	return name, true
}

func (w *Watcher) describe(name string) Event {
	path := filepath.Join(w.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Event{Path: path, Name: name, Removed: true}
	}
	return Event{Path: path, Name: name, HasManifest: modmanifest.HasManifest(path)}
}

// addDirectories registers the modules directory and every package
// directory in it.
func (w *Watcher) addDirectories() error {
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add modules directory %q: %w", w.dir, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch: read modules directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && !w.isIgnored(e.Name()) {
			w.addPackageDir(filepath.Join(w.dir, e.Name()))
		}
	}
	return nil
}

func (w *Watcher) addPackageDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("cannot watch package directory", "path", path, "err", err)
	}
}

func (w *Watcher) isIgnored(name string) bool {
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, name); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid ignore pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
