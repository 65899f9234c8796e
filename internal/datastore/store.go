// SPDX-License-Identifier: MPL-2.0

package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/modhost/modhost/pkg/hostapi"

	_ "modernc.org/sqlite"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("data store closed")
	// ErrEmptyKey is returned for blank keys.
	ErrEmptyKey = errors.New("key is required")
)

var _ hostapi.Store = (*Namespace)(nil)

type (
	// Store is the host data store.
	Store struct {
		db  atomic.Pointer[sql.DB]
		now func() time.Time
	}

	// Namespace is one module's view of the store.
	Namespace struct {
		store  *Store
		module string
	}

	// Entry is a stored row.
	Entry struct {
		Module    string
		Key       string
		Size      int
		UpdatedAt time.Time
	}
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens or creates the SQLite file at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("data store path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data store directory: %w", err)
	}

	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s := &Store{now: time.Now}
	s.db.Store(db)
	return s, nil
}

// Close closes the database handle. It is safe to call more than once.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if db := s.db.Swap(nil); db != nil {
		return db.Close()
	}
	return nil
}

// Namespace returns the namespace of module.
func (s *Store) Namespace(module string) *Namespace {
	return &Namespace{store: s, module: module}
}

// Entries lists stored rows, optionally restricted to one module, ordered
// by module and key.
func (s *Store) Entries(ctx context.Context, module string) ([]Entry, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT module, key, length(value), updated_at FROM module_kv`
	var args []any
	if module != "" {
		query += ` WHERE module = ?`
		args = append(args, module)
	}
	query += ` ORDER BY module, key`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			updatedAt int64
		)
		if err := rows.Scan(&e.Module, &e.Key, &e.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.UpdatedAt = fromMillis(updatedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes every key of module.
func (s *Store) Purge(ctx context.Context, module string) (int64, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM module_kv WHERE module = ?`, module)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", module, err)
	}
	return res.RowsAffected()
}

func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrClosed
	}
	db := s.db.Load()
	if db == nil {
		return nil, ErrClosed
	}
	return db, nil
}

// Get returns the value of key and whether it exists.
func (n *Namespace) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := n.store.handle(ctx)
	if err != nil {
		return nil, false, err
	}

	var value []byte
	err = db.QueryRowContext(ctx, `SELECT value FROM module_kv WHERE module = ? AND key = ?`, n.module, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", n.module, key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (n *Namespace) Put(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	db, err := n.store.handle(ctx)
	if err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO module_kv (module, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(module, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		n.module, key, value, toMillis(n.store.now()),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", n.module, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	db, err := n.store.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM module_kv WHERE module = ? AND key = ?`, n.module, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", n.module, key, err)
	}
	return nil
}

// Keys lists the namespace's keys in order.
func (n *Namespace) Keys(ctx context.Context) ([]string, error) {
	db, err := n.store.handle(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT key FROM module_kv WHERE module = ? ORDER BY key`, n.module)
	if err != nil {
		return nil, fmt.Errorf("keys of %s: %w", n.module, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
