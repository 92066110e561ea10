package store

import (
	"context"
	"sort"
	"sync"
)

const memoryBackend = "memory"

// MemoryBackend keeps stores in process memory. It is safe for concurrent use.
type MemoryBackend struct {
	mu     sync.RWMutex
	stores map[string]map[string]*Entry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		stores: make(map[string]map[string]*Entry),
	}
}

// Open returns the named store, creating it if absent.
func (m *MemoryBackend) Open(ctx context.Context, name string) (Handle, error) {
	err := validateName(name)
	observe(memoryBackend, "open", err)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[name]; !ok {
		m.stores[name] = make(map[string]*Entry)
	}
	return &memoryHandle{backend: m, name: name}, nil
}

// Names lists existing store names.
func (m *MemoryBackend) Names(ctx context.Context) ([]string, error) {
	observe(memoryBackend, "names", nil)

	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Drop deletes the named store.
func (m *MemoryBackend) Drop(ctx context.Context, name string) (bool, error) {
	observe(memoryBackend, "drop", nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stores[name]
	delete(m.stores, name)
	return ok, nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}

type memoryHandle struct {
	backend *MemoryBackend
	name    string
}

func (h *memoryHandle) Name() string {
	return h.name
}

func (h *memoryHandle) Get(ctx context.Context, key Key) (*Entry, error) {
	h.backend.mu.RLock()
	entry, ok := h.backend.stores[h.name][key.String()]
	h.backend.mu.RUnlock()

	if !ok {
		observe(memoryBackend, "get", ErrNotFound)
		return nil, ErrNotFound
	}
	observe(memoryBackend, "get", nil)
	return entry.Clone(), nil
}

func (h *memoryHandle) Put(ctx context.Context, key Key, entry *Entry) error {
	return h.put("put", []Record{{Key: key, Entry: entry}})
}

func (h *memoryHandle) PutAll(ctx context.Context, records []Record) error {
	return h.put("put_all", records)
}

func (h *memoryHandle) put(op string, records []Record) error {
	// Copy everything first so a bad record leaves the store untouched
	copies := make(map[string]*Entry, len(records))
	for _, r := range records {
		if r.Entry == nil {
			err := &StoreError{Op: op, Backend: memoryBackend, Store: h.name, Err: ErrInvalidEntry}
			observe(memoryBackend, op, err)
			return err
		}
		copies[r.Key.String()] = r.Entry.Clone()
	}

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	entries, ok := h.backend.stores[h.name]
	if !ok {
		if op == "put" {
			err := &StoreError{Op: op, Backend: memoryBackend, Store: h.name, Err: ErrNotFound}
			observe(memoryBackend, op, err)
			return err
		}
		entries = make(map[string]*Entry, len(copies))
		h.backend.stores[h.name] = entries
	}
	for k, e := range copies {
		entries[k] = e
		StoredBytes.WithLabelValues(memoryBackend).Add(float64(len(e.Body)))
	}
	observe(memoryBackend, op, nil)
	return nil
}

func (h *memoryHandle) Keys(ctx context.Context) ([]string, error) {
	observe(memoryBackend, "keys", nil)

	h.backend.mu.RLock()
	defer h.backend.mu.RUnlock()
	keys := make([]string, 0, len(h.backend.stores[h.name]))
	for k := range h.backend.stores[h.name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
