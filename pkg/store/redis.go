package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const (
	redisBackend = "redis"

	// DefaultRedisPrefix namespaces all keys written by the Redis backend.
	DefaultRedisPrefix = "offline-cache"
)

// putIfRegistered writes hash fields only while the store name is still in
// the names set. KEYS[1] is the names set, KEYS[2] the store hash, ARGV[1] the
// store name, the remaining ARGV are field/value pairs.
var putIfRegistered = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[2], unpack(ARGV, 2))
return 1
`)

// RedisBackend keeps each store in a Redis hash and the store names in a set.
//
// Layout:
//
//	<prefix>:stores        SET  of store names
//	<prefix>:store:<name>  HASH key string -> JSON entry
type RedisBackend struct {
	redis  *redis.Client
	prefix string
	owned  bool
}

// NewRedisBackend creates a backend on an existing Redis client.
// The client is not closed by Close.
func NewRedisBackend(redisClient *redis.Client, prefix string) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (b *RedisBackend) namesKey() string {
	return b.prefix + ":stores"
}

func (b *RedisBackend) storeKey(name string) string {
	return b.prefix + ":store:" + name
}

// Open registers the store name and returns a handle to it.
func (b *RedisBackend) Open(ctx context.Context, name string) (Handle, error) {
	if err := validateName(name); err != nil {
		observe(redisBackend, "open", err)
		return nil, err
	}

	if err := b.redis.SAdd(ctx, b.namesKey(), name).Err(); err != nil {
		observe(redisBackend, "open", err)
		return nil, &StoreError{Op: "open", Backend: redisBackend, Store: name, Err: fmt.Errorf("redis sadd: %w", err)}
	}
	observe(redisBackend, "open", nil)
	return &redisHandle{backend: b, name: name}, nil
}

// Names lists the registered store names.
func (b *RedisBackend) Names(ctx context.Context) ([]string, error) {
	names, err := b.redis.SMembers(ctx, b.namesKey()).Result()
	observe(redisBackend, "names", err)
	if err != nil {
		return nil, &StoreError{Op: "names", Backend: redisBackend, Err: fmt.Errorf("redis smembers: %w", err)}
	}
	sort.Strings(names)
	return names, nil
}

// Drop deletes the store hash and unregisters its name in one transaction.
func (b *RedisBackend) Drop(ctx context.Context, name string) (bool, error) {
	var del, srem *redis.IntCmd
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, b.storeKey(name))
		srem = pipe.SRem(ctx, b.namesKey(), name)
		return nil
	})
	observe(redisBackend, "drop", err)
	if err != nil {
		return false, &StoreError{Op: "drop", Backend: redisBackend, Store: name, Err: fmt.Errorf("redis tx: %w", err)}
	}
	return del.Val() > 0 || srem.Val() > 0, nil
}

// Close closes the Redis client if the backend created it.
func (b *RedisBackend) Close() error {
	if b.owned {
		return b.redis.Close()
	}
	return nil
}

type redisHandle struct {
	backend *RedisBackend
	name    string
}

func (h *redisHandle) Name() string {
	return h.name
}

func (h *redisHandle) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := h.backend.redis.HGet(ctx, h.backend.storeKey(h.name), key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observe(redisBackend, "get", ErrNotFound)
			return nil, ErrNotFound
		}
		observe(redisBackend, "get", err)
		return nil, &StoreError{Op: "get", Backend: redisBackend, Store: h.name, Err: fmt.Errorf("redis hget: %w", err)}
	}

	entry, err := decodeEntry(data)
	observe(redisBackend, "get", err)
	if err != nil {
		return nil, &StoreError{Op: "get", Backend: redisBackend, Store: h.name, Err: err}
	}
	return entry, nil
}

func (h *redisHandle) Put(ctx context.Context, key Key, entry *Entry) error {
	return h.put(ctx, "put", []Record{{Key: key, Entry: entry}})
}

func (h *redisHandle) PutAll(ctx context.Context, records []Record) error {
	return h.put(ctx, "put_all", records)
}

// put writes all records and the name registration inside MULTI/EXEC.
func (h *redisHandle) put(ctx context.Context, op string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(records)*2)
	var size int
	for _, r := range records {
		data, err := encodeEntry(r.Entry)
		if err != nil {
			observe(redisBackend, op, err)
			return &StoreError{Op: op, Backend: redisBackend, Store: h.name, Err: err}
		}
		values = append(values, r.Key.String(), data)
		size += len(data)
	}

	if op == "put" {
		keys := []string{h.backend.namesKey(), h.backend.storeKey(h.name)}
		written, err := putIfRegistered.Run(ctx, h.backend.redis, keys, append([]interface{}{h.name}, values...)...).Int()
		if err == nil && written == 0 {
			err = ErrNotFound
		}
		observe(redisBackend, op, err)
		if errors.Is(err, ErrNotFound) {
			return &StoreError{Op: op, Backend: redisBackend, Store: h.name, Err: err}
		}
		if err != nil {
			return &StoreError{Op: op, Backend: redisBackend, Store: h.name, Err: fmt.Errorf("redis eval: %w", err)}
		}
		StoredBytes.WithLabelValues(redisBackend).Add(float64(size))
		return nil
	}

	_, err := h.backend.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, h.backend.namesKey(), h.name)
		pipe.HSet(ctx, h.backend.storeKey(h.name), values...)
		return nil
	})
	observe(redisBackend, op, err)
	if err != nil {
		return &StoreError{Op: op, Backend: redisBackend, Store: h.name, Err: fmt.Errorf("redis tx: %w", err)}
	}

	StoredBytes.WithLabelValues(redisBackend).Add(float64(size))
	return nil
}

func (h *redisHandle) Keys(ctx context.Context) ([]string, error) {
	keys, err := h.backend.redis.HKeys(ctx, h.backend.storeKey(h.name)).Result()
	observe(redisBackend, "keys", err)
	if err != nil {
		return nil, &StoreError{Op: "keys", Backend: redisBackend, Store: h.name, Err: fmt.Errorf("redis hkeys: %w", err)}
	}
	sort.Strings(keys)
	return keys, nil
}
