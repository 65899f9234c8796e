// SPDX-License-Identifier: MPL-2.0

package datastore

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "modhost.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestNamespaceRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	ctx := context.Background()
	alpha := s.Namespace("alpha")
	beta := s.Namespace("beta")

	if err := alpha.Put(ctx, "color", []byte("blue")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := alpha.Put(ctx, "color", []byte("green")); err != nil {
		t.Fatalf("Put() overwrite error: %v", err)
	}
	if err := alpha.Put(ctx, "empty", nil); err != nil {
		t.Fatalf("Put(nil) error: %v", err)
	}

	v, ok, err := alpha.Get(ctx, "color")
	if err != nil || !ok || string(v) != "green" {
		t.Errorf("Get(color) = %q, %v, %v", v, ok, err)
	}
	if _, ok, err := beta.Get(ctx, "color"); err != nil || ok {
		t.Errorf("other namespace sees key: ok=%v err=%v", ok, err)
	}

	keys, err := alpha.Keys(ctx)
	if err != nil || !slices.Equal(keys, []string{"color", "empty"}) {
		t.Errorf("Keys() = %v, %v", keys, err)
	}

	if err := alpha.Delete(ctx, "color"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := alpha.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
	if _, ok, _ := alpha.Get(ctx, "color"); ok {
		t.Error("key still present after Delete")
	}
	if err := alpha.Put(ctx, " ", []byte("x")); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Put(blank) error = %v, want ErrEmptyKey", err)
	}
}

func TestEntriesAndPurge(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	_ = s.Namespace("b").Put(ctx, "k", []byte("12345"))
	_ = s.Namespace("a").Put(ctx, "k2", []byte("1"))
	_ = s.Namespace("a").Put(ctx, "k1", []byte("12"))

	entries, err := s.Entries(ctx, "")
	if err != nil {
		t.Fatalf("Entries() error: %v", err)
	}
	want := []Entry{
		{Module: "a", Key: "k1", Size: 2, UpdatedAt: fixed},
		{Module: "a", Key: "k2", Size: 1, UpdatedAt: fixed},
		{Module: "b", Key: "k", Size: 5, UpdatedAt: fixed},
	}
	equal := slices.EqualFunc(entries, want, func(a, b Entry) bool {
		return a.Module == b.Module && a.Key == b.Key && a.Size == b.Size && a.UpdatedAt.Equal(b.UpdatedAt)
	})
	if !equal {
		t.Errorf("Entries() = %+v, want %+v", entries, want)
	}

	n, err := s.Purge(ctx, "a")
	if err != nil || n != 2 {
		t.Errorf("Purge(a) = %d, %v", n, err)
	}
	if entries, _ := s.Entries(ctx, "a"); len(entries) != 0 {
		t.Errorf("entries after purge = %v", entries)
	}
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	s, path := openTestStore(t)
	ctx := context.Background()
	if err := s.Namespace("m").Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if _, _, err := s.Namespace("m").Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close error = %v, want ErrClosed", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()
	v, ok, err := reopened.Namespace("m").Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Errorf("Get after reopen = %q, %v, %v", v, ok, err)
	}
}

func TestUpSection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"markers", "-- +migrate Up\nCREATE x;\n-- +migrate Down\nDROP x;", "CREATE x;"},
		{"no markers", "CREATE y;\n", "CREATE y;"},
		{"up only", "-- +migrate Up\nCREATE z;", "CREATE z;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := upSection(tt.in); got != tt.want {
				t.Errorf("upSection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "  "); err == nil {
		t.Error("Open(blank) should fail")
	}
}
