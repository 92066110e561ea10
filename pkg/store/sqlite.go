package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteBackend = "sqlite"

// SQLiteBackend keeps stores in two SQLite tables.
// Writes are serialized with a mutex; SQLite allows a single writer.
type SQLiteBackend struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// OpenSQLite opens (or creates) a SQLite database at path.
// If path is empty, a shared in-memory database is opened.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS stores (
			name TEXT PRIMARY KEY,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			store TEXT NOT NULL,
			key TEXT NOT NULL,
			data BLOB,
			PRIMARY KEY (store, key)
		)`,
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	return &SQLiteBackend{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

// Open registers the store name and returns a handle to it.
func (b *SQLiteBackend) Open(ctx context.Context, name string) (Handle, error) {
	if err := validateName(name); err != nil {
		observe(sqliteBackend, "open", err)
		return nil, err
	}

	b.writeMutex.Lock()
	defer b.writeMutex.Unlock()
	_, err := b.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)", name, time.Now().Unix())
	observe(sqliteBackend, "open", err)
	if err != nil {
		return nil, &StoreError{Op: "open", Backend: sqliteBackend, Store: name, Err: err}
	}
	return &sqliteHandle{backend: b, name: name}, nil
}

// Names lists the registered store names.
func (b *SQLiteBackend) Names(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT name FROM stores ORDER BY name")
	if err != nil {
		observe(sqliteBackend, "names", err)
		return nil, &StoreError{Op: "names", Backend: sqliteBackend, Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			observe(sqliteBackend, "names", err)
			return nil, &StoreError{Op: "names", Backend: sqliteBackend, Err: err}
		}
		names = append(names, name)
	}
	err = rows.Err()
	observe(sqliteBackend, "names", err)
	if err != nil {
		return nil, &StoreError{Op: "names", Backend: sqliteBackend, Err: err}
	}
	return names, nil
}

// Drop deletes the store and its entries in one transaction.
func (b *SQLiteBackend) Drop(ctx context.Context, name string) (bool, error) {
	b.writeMutex.Lock()
	defer b.writeMutex.Unlock()

	var existed bool
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE store = ?", name)
		if err != nil {
			return err
		}
		entries, _ := res.RowsAffected()

		res, err = tx.ExecContext(ctx, "DELETE FROM stores WHERE name = ?", name)
		if err != nil {
			return err
		}
		stores, _ := res.RowsAffected()

		existed = entries > 0 || stores > 0
		return nil
	})
	observe(sqliteBackend, "drop", err)
	if err != nil {
		return false, &StoreError{Op: "drop", Backend: sqliteBackend, Store: name, Err: err}
	}
	return existed, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteHandle struct {
	backend *SQLiteBackend
	name    string
}

func (h *sqliteHandle) Name() string {
	return h.name
}

func (h *sqliteHandle) Get(ctx context.Context, key Key) (*Entry, error) {
	var data []byte
	err := h.backend.db.QueryRowContext(ctx,
		"SELECT data FROM entries WHERE store = ? AND key = ?", h.name, key.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			observe(sqliteBackend, "get", ErrNotFound)
			return nil, ErrNotFound
		}
		observe(sqliteBackend, "get", err)
		return nil, &StoreError{Op: "get", Backend: sqliteBackend, Store: h.name, Err: err}
	}

	entry, err := decodeEntry(data)
	observe(sqliteBackend, "get", err)
	if err != nil {
		return nil, &StoreError{Op: "get", Backend: sqliteBackend, Store: h.name, Err: err}
	}
	return entry, nil
}

func (h *sqliteHandle) Put(ctx context.Context, key Key, entry *Entry) error {
	return h.put(ctx, "put", []Record{{Key: key, Entry: entry}})
}

func (h *sqliteHandle) PutAll(ctx context.Context, records []Record) error {
	return h.put(ctx, "put_all", records)
}

func (h *sqliteHandle) put(ctx context.Context, op string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	encoded := make([][]byte, len(records))
	var size int
	for i, r := range records {
		data, err := encodeEntry(r.Entry)
		if err != nil {
			observe(sqliteBackend, op, err)
			return &StoreError{Op: op, Backend: sqliteBackend, Store: h.name, Err: err}
		}
		encoded[i] = data
		size += len(data)
	}

	h.backend.writeMutex.Lock()
	defer h.backend.writeMutex.Unlock()

	err := h.backend.withTx(ctx, func(tx *sql.Tx) error {
		if op == "put" {
			var one int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM stores WHERE name = ?", h.name).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
		} else if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)", h.name, time.Now().Unix()); err != nil {
			return err
		}
		for i, r := range records {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO entries (store, key, data) VALUES (?, ?, ?)",
				h.name, r.Key.String(), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
	observe(sqliteBackend, op, err)
	if err != nil {
		return &StoreError{Op: op, Backend: sqliteBackend, Store: h.name, Err: err}
	}

	StoredBytes.WithLabelValues(sqliteBackend).Add(float64(size))
	return nil
}

func (h *sqliteHandle) Keys(ctx context.Context) ([]string, error) {
	rows, err := h.backend.db.QueryContext(ctx,
		"SELECT key FROM entries WHERE store = ? ORDER BY key", h.name)
	if err != nil {
		observe(sqliteBackend, "keys", err)
		return nil, &StoreError{Op: "keys", Backend: sqliteBackend, Store: h.name, Err: err}
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			observe(sqliteBackend, "keys", err)
			return nil, &StoreError{Op: "keys", Backend: sqliteBackend, Store: h.name, Err: err}
		}
		keys = append(keys, key)
	}
	err = rows.Err()
	observe(sqliteBackend, "keys", err)
	if err != nil {
		return nil, &StoreError{Op: "keys", Backend: sqliteBackend, Store: h.name, Err: err}
	}
	return keys, nil
}
