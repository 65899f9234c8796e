// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/modhost/modhost/internal/testutil"
)

// recorder collects OnChange batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]Event
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, events []Event) error {
	r.mu.Lock()
	r.batches = append(r.batches, slices.Clone(events))
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) []Event {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func run(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
}

func TestNewPackageIsReportedOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{Dir: dir, Debounce: 100 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	run(t, w)

	// Directory first, manifest a little later, as a copy would do.
	pkg := filepath.Join(dir, "echo")
	testutil.MustMkdirAll(t, pkg, 0o755)
	time.Sleep(20 * time.Millisecond)
	testutil.MustWriteFile(t, filepath.Join(pkg, "README"), []byte("x"), 0o644)
	time.Sleep(20 * time.Millisecond)
	testutil.MustWriteFile(t, filepath.Join(pkg, "module.yaml"), []byte("name: echo\n"), 0o644)

	events := rec.wait(t)
	want := []Event{{Path: filepath.Join(w.Dir(), "echo"), Name: "echo", HasManifest: true}}
	if !slices.Equal(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}

	time.Sleep(250 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("callbacks = %d, want 1", n)
	}
}

func TestExistingPackageChangesAndRemoval(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteModulePackage(t, dir, testutil.ModulePackage{Name: "kv"})

	rec := newRecorder()
	w, err := New(Config{Dir: dir, Debounce: 50 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	run(t, w)

	// Package directories present at startup are watched too.
	testutil.MustWriteFile(t, filepath.Join(dir, "kv", "notes.txt"), []byte("x"), 0o644)
	if events := rec.wait(t); len(events) != 1 || events[0].Name != "kv" || events[0].Removed {
		t.Errorf("change events = %+v", events)
	}

	if err := os.RemoveAll(filepath.Join(dir, "kv")); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	events := rec.wait(t)
	if len(events) != 1 || !events[0].Removed || events[0].HasManifest {
		t.Errorf("removal events = %+v", events)
	}
}

func TestIgnoredPackages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{
		Dir:      dir,
		Ignore:   []string{"scratch-*"},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	run(t, w)

	for _, name := range []string{".git", "scratch-1", "file.swp"} {
		testutil.MustMkdirAll(t, filepath.Join(dir, name), 0o755)
	}
	testutil.MustMkdirAll(t, filepath.Join(dir, "real"), 0o755)

	events := rec.wait(t)
	if len(events) != 1 || events[0].Name != "real" || events[0].HasManifest {
		t.Errorf("events = %+v, want only real without manifest", events)
	}
}

func TestSlowHandlerDoesNotOverlap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var (
		mu      sync.Mutex
		active  int
		overlap bool
		seen    []string
	)
	done := make(chan struct{}, 8)
	w, err := New(Config{
		Dir:      dir,
		Debounce: 20 * time.Millisecond,
		OnChange: func(_ context.Context, events []Event) error {
			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			for _, e := range events {
				seen = append(seen, e.Name)
			}
			mu.Unlock()

			time.Sleep(150 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			done <- struct{}{}
			return errors.New("handler errors are only logged")
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	run(t, w)

	testutil.MustMkdirAll(t, filepath.Join(dir, "a"), 0o755)
	time.Sleep(60 * time.Millisecond)
	testutil.MustMkdirAll(t, filepath.Join(dir, "b"), 0o755)

	for range 2 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for handler")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Error("OnChange calls overlapped")
	}
	slices.Sort(seen)
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Errorf("seen = %v, want [a b]", seen)
	}
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	run(t, w)
	time.Sleep(10 * time.Millisecond)

	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New() without Dir succeeded")
	}
	if _, err := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("New() on a missing directory succeeded")
	}
	if _, err := New(Config{Dir: t.TempDir(), Ignore: []string{"[unclosed"}}); err == nil {
		t.Error("New() with a bad pattern succeeded")
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	ignores := DefaultIgnores()
	ignores[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores returned the package slice")
	}

	w := &Watcher{ignores: DefaultIgnores()}
	for name, want := range map[string]bool{
		".git":      true,
		"_disabled": true,
		"x.swp":     true,
		"echo":      false,
		"kv-store":  false,
	} {
		if got := w.isIgnored(name); got != want {
			t.Errorf("isIgnored(%q) = %v, want %v", name, got, want)
		}
	}
}
