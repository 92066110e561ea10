package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelDBBackend = "leveldb"

// LevelDBBackend keeps all stores in one LevelDB database.
//
// Layout:
//
//	s:<name>             store registration (empty value)
//	e:<name>\x00<key>    JSON entry
type LevelDBBackend struct {
	db *leveldb.DB

	// mu serializes writes that check the store registration
	mu sync.Mutex
}

// OpenLevelDB opens (or creates) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDBBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("leveldb path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBBackend{db: db}, nil
}

func nameKey(name string) []byte {
	return []byte("s:" + name)
}

func entryPrefix(name string) []byte {
	return []byte("e:" + name + "\x00")
}

func entryKey(name string, key Key) []byte {
	return append(entryPrefix(name), key.String()...)
}

// Open registers the store name and returns a handle to it.
func (b *LevelDBBackend) Open(ctx context.Context, name string) (Handle, error) {
	if err := validateName(name); err != nil {
		observe(levelDBBackend, "open", err)
		return nil, err
	}

	err := b.db.Put(nameKey(name), nil, nil)
	observe(levelDBBackend, "open", err)
	if err != nil {
		return nil, &StoreError{Op: "open", Backend: levelDBBackend, Store: name, Err: err}
	}
	return &levelDBHandle{backend: b, name: name}, nil
}

// Names lists the registered store names.
func (b *LevelDBBackend) Names(ctx context.Context) ([]string, error) {
	it := b.db.NewIterator(util.BytesPrefix([]byte("s:")), nil)
	defer it.Release()

	var names []string
	for it.Next() {
		names = append(names, string(bytes.TrimPrefix(it.Key(), []byte("s:"))))
	}
	err := it.Error()
	observe(levelDBBackend, "names", err)
	if err != nil {
		return nil, &StoreError{Op: "names", Backend: levelDBBackend, Err: err}
	}
	// Iteration order is already sorted by key
	return names, nil
}

// Drop deletes the registration and every entry of the store in one batch.
func (b *LevelDBBackend) Drop(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existed, err := b.db.Has(nameKey(name), nil)
	if err != nil {
		observe(levelDBBackend, "drop", err)
		return false, &StoreError{Op: "drop", Backend: levelDBBackend, Store: name, Err: err}
	}

	batch := new(leveldb.Batch)
	batch.Delete(nameKey(name))

	it := b.db.NewIterator(util.BytesPrefix(entryPrefix(name)), nil)
	for it.Next() {
		existed = true
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		observe(levelDBBackend, "drop", err)
		return false, &StoreError{Op: "drop", Backend: levelDBBackend, Store: name, Err: err}
	}

	err = b.db.Write(batch, nil)
	observe(levelDBBackend, "drop", err)
	if err != nil {
		return false, &StoreError{Op: "drop", Backend: levelDBBackend, Store: name, Err: err}
	}
	return existed, nil
}

// Close closes the database.
func (b *LevelDBBackend) Close() error {
	return b.db.Close()
}

type levelDBHandle struct {
	backend *LevelDBBackend
	name    string
}

func (h *levelDBHandle) Name() string {
	return h.name
}

func (h *levelDBHandle) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := h.backend.db.Get(entryKey(h.name, key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			observe(levelDBBackend, "get", ErrNotFound)
			return nil, ErrNotFound
		}
		observe(levelDBBackend, "get", err)
		return nil, &StoreError{Op: "get", Backend: levelDBBackend, Store: h.name, Err: err}
	}

	entry, err := decodeEntry(data)
	observe(levelDBBackend, "get", err)
	if err != nil {
		return nil, &StoreError{Op: "get", Backend: levelDBBackend, Store: h.name, Err: err}
	}
	return entry, nil
}

func (h *levelDBHandle) Put(ctx context.Context, key Key, entry *Entry) error {
	return h.put("put", []Record{{Key: key, Entry: entry}})
}

func (h *levelDBHandle) PutAll(ctx context.Context, records []Record) error {
	return h.put("put_all", records)
}

func (h *levelDBHandle) put(op string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()

	batch := new(leveldb.Batch)
	if op == "put" {
		registered, err := h.backend.db.Has(nameKey(h.name), nil)
		if err == nil && !registered {
			err = ErrNotFound
		}
		if err != nil {
			observe(levelDBBackend, op, err)
			return &StoreError{Op: op, Backend: levelDBBackend, Store: h.name, Err: err}
		}
	} else {
		batch.Put(nameKey(h.name), nil)
	}
	var size int
	for _, r := range records {
		data, err := encodeEntry(r.Entry)
		if err != nil {
			observe(levelDBBackend, op, err)
			return &StoreError{Op: op, Backend: levelDBBackend, Store: h.name, Err: err}
		}
		batch.Put(entryKey(h.name, r.Key), data)
		size += len(data)
	}

	err := h.backend.db.Write(batch, nil)
	observe(levelDBBackend, op, err)
	if err != nil {
		return &StoreError{Op: op, Backend: levelDBBackend, Store: h.name, Err: err}
	}

	StoredBytes.WithLabelValues(levelDBBackend).Add(float64(size))
	return nil
}

func (h *levelDBHandle) Keys(ctx context.Context) ([]string, error) {
	prefix := entryPrefix(h.name)
	it := h.backend.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	keys := []string{}
	for it.Next() {
		keys = append(keys, string(bytes.TrimPrefix(it.Key(), prefix)))
	}
	err := it.Error()
	observe(levelDBBackend, "keys", err)
	if err != nil {
		return nil, &StoreError{Op: "keys", Backend: levelDBBackend, Store: h.name, Err: err}
	}
	return keys, nil
}
