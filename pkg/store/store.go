package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Record pairs a key with the entry to store under it.
type Record struct {
	Key   Key
	Entry *Entry
}

// Handle is an opened named store.
type Handle interface {
	// Name returns the store name.
	Name() string

	// Get returns the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put stores entry under key, replacing any previous entry.
	// Put on a store that has been dropped fails with ErrNotFound.
	Put(ctx context.Context, key Key, entry *Entry) error

	// PutAll stores every record atomically: either all records are
	// committed or none are. PutAll registers the store again if it was dropped.
	PutAll(ctx context.Context, records []Record) error

	// Keys returns the key strings held by the store, sorted.
	Keys(ctx context.Context) ([]string, error)
}

// Backend manages the set of named stores.
// Dropping a store invalidates Put on every handle to it, so a late write
// from a superseded generation cannot bring its store back.
type Backend interface {
	// Open returns the store with the given name, creating it if absent.
	Open(ctx context.Context, name string) (Handle, error)

	// Names lists existing store names, sorted.
	Names(ctx context.Context) ([]string, error)

	// Drop deletes a store and all its entries.
	// It reports whether the store existed.
	Drop(ctx context.Context, name string) (bool, error)

	// Close releases resources held by the backend.
	Close() error
}

// Driver names a storage backend.
type Driver string

const (
	// DriverMemory keeps stores in process memory.
	DriverMemory Driver = "memory"

	// DriverRedis keeps stores in Redis hashes.
	DriverRedis Driver = "redis"

	// DriverLevelDB keeps stores in a LevelDB database.
	DriverLevelDB Driver = "leveldb"

	// DriverSQLite keeps stores in a SQLite database.
	DriverSQLite Driver = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Path is the database path for leveldb and sqlite
	Path string
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Driver:      DriverMemory,
		RedisAddr:   "localhost:6379",
		RedisPrefix: DefaultRedisPrefix,
	}
}

// New creates the backend selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case DriverMemory, "":
		return NewMemoryBackend(), nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		b := NewRedisBackend(client, cfg.RedisPrefix)
		b.owned = true
		return b, nil
	case DriverLevelDB:
		return OpenLevelDB(cfg.Path)
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
