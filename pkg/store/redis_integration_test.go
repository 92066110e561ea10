//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisBackend_Integration(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	runBackendSuite(t, func(t *testing.T) Backend {
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("FlushDB() error = %v", err)
		}
		return NewRedisBackend(client, "it")
	})
}

func TestRedisBackend_Integration_DropIsAtomic(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	b := NewRedisBackend(client, "it")
	ctx := context.Background()

	h, err := b.Open(ctx, "v1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := h.PutAll(ctx, []Record{
		{Key: testKey("/"), Entry: newTestEntry("root")},
		{Key: testKey("/app.js"), Entry: newTestEntry("app")},
	}); err != nil {
		t.Fatalf("PutAll() error = %v", err)
	}

	if _, err := b.Drop(ctx, "v1"); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}

	exists, err := client.Exists(ctx, b.storeKey("v1")).Result()
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists != 0 {
		t.Error("store hash still exists after Drop")
	}
	member, err := client.SIsMember(ctx, b.namesKey(), "v1").Result()
	if err != nil {
		t.Fatalf("SIsMember() error = %v", err)
	}
	if member {
		t.Error("store name still registered after Drop")
	}
}
