package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/Sternrassler/offline-cache/pkg/store"
)

var supportedLevels = map[string]struct{}{
	"debug":   {},
	"info":    {},
	"warn":    {},
	"warning": {},
	"error":   {},
}

// Validate rejects configurations the proxy cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	s := c.Server
	if s.Port <= 0 || s.Port > 65535 {
		return newFieldError("server.port", "must be between 1 and 65535")
	}
	if strings.TrimSpace(s.Origin) == "" {
		return newFieldError("server.origin", "is required")
	}
	origin, err := url.Parse(s.Origin)
	if err != nil || (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		return newFieldError("server.origin", "must be an absolute http(s) URL")
	}
	if s.ShutdownTimeout.DurationValue() <= 0 {
		return newFieldError("server.shutdown_timeout", "must be greater than 0")
	}

	g := c.Generation
	if strings.TrimSpace(g.ID) == "" {
		return newFieldError("generation.id", "is required")
	}
	if strings.ContainsAny(g.ID, " \t\n") {
		return newFieldError("generation.id", "must not contain whitespace")
	}
	if g.InstallRetry.DurationValue() < 0 {
		return newFieldError("generation.install_retry", "must not be negative")
	}

	if !strings.HasPrefix(c.Router.RootDocument, "/") {
		return newFieldError("router.root_document", "must be an absolute path")
	}
	if c.Router.WriteTimeout.DurationValue() <= 0 {
		return newFieldError("router.write_timeout", "must be greater than 0")
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	f := c.Fetch
	if f.Timeout.DurationValue() <= 0 {
		return newFieldError("fetch.timeout", "must be greater than 0")
	}
	if f.MaxAttempts < 1 {
		return newFieldError("fetch.max_attempts", "must be at least 1")
	}
	if f.MaxConcurrency < 1 {
		return newFieldError("fetch.max_concurrency", "must be at least 1")
	}
	if f.AssetTimeout.DurationValue() <= 0 {
		return newFieldError("fetch.asset_timeout", "must be greater than 0")
	}
	if f.MaxBackoff.DurationValue() < f.InitialBackoff.DurationValue() {
		return newFieldError("fetch.max_backoff", "must not be below fetch.initial_backoff")
	}

	if _, ok := supportedLevels[strings.ToLower(c.Logging.Level)]; !ok {
		return newFieldError("logging.level", "must be debug, info, warn or error")
	}

	return nil
}

func (s StoreConfig) validate() error {
	switch store.Driver(strings.ToLower(s.Driver)) {
	case store.DriverMemory:
	case store.DriverRedis:
		if s.Redis.Addr == "" {
			return newFieldError("store.redis.addr", "is required for the redis driver")
		}
		if s.Redis.DB < 0 {
			return newFieldError("store.redis.db", "must not be negative")
		}
	case store.DriverLevelDB:
		if s.LevelDB.Path == "" {
			return newFieldError("store.leveldb.path", "is required for the leveldb driver")
		}
	case store.DriverSQLite:
		if s.SQLite.Path == "" {
			return newFieldError("store.sqlite.path", "is required for the sqlite driver")
		}
	default:
		return newFieldError("store.driver", "must be memory, redis, leveldb or sqlite")
	}
	return nil
}
