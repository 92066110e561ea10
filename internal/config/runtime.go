package config

import (
	"path/filepath"
	"strings"

	"github.com/Sternrassler/offline-cache/pkg/fetch"
	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/Sternrassler/offline-cache/pkg/precache"
	"github.com/Sternrassler/offline-cache/pkg/router"
	"github.com/Sternrassler/offline-cache/pkg/store"
)

// StoreOptions converts the store section for store.New.
func (c *Config) StoreOptions() store.Config {
	cfg := store.Config{
		Driver:        store.Driver(strings.ToLower(c.Store.Driver)),
		RedisAddr:     c.Store.Redis.Addr,
		RedisPassword: c.Store.Redis.Password,
		RedisDB:       c.Store.Redis.DB,
		RedisPrefix:   c.Store.Redis.Prefix,
	}
	switch cfg.Driver {
	case store.DriverLevelDB:
		cfg.Path = filepath.Clean(c.Store.LevelDB.Path)
	case store.DriverSQLite:
		cfg.Path = filepath.Clean(c.Store.SQLite.Path)
	}
	return cfg
}

// FetchOptions converts the fetch section for fetch.New.
func (c *Config) FetchOptions() fetch.Config {
	retry := fetch.DefaultRetryConfig()
	retry.MaxAttempts = c.Fetch.MaxAttempts
	retry.InitialBackoff = c.Fetch.InitialBackoff.DurationValue()
	retry.MaxBackoff = c.Fetch.MaxBackoff.DurationValue()

	return fetch.Config{
		Origin:    c.Server.Origin,
		UserAgent: c.Fetch.UserAgent,
		Timeout:   c.Fetch.Timeout.DurationValue(),
		Retry:     retry,
	}
}

// PrecacheOptions converts the fetch section for the precache loader.
func (c *Config) PrecacheOptions() precache.Config {
	return precache.Config{
		MaxConcurrency: c.Fetch.MaxConcurrency,
		Timeout:        c.Fetch.AssetTimeout.DurationValue(),
	}
}

// RouterOptions converts the router section for router.New.
func (c *Config) RouterOptions() router.Config {
	return router.Config{
		RootDocument: c.Router.RootDocument,
		WriteTimeout: c.Router.WriteTimeout.DurationValue(),
	}
}

// LoggingOptions converts the logging section for logging.Setup.
func (c *Config) LoggingOptions() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Logging.Level))
	cfg.Pretty = c.Logging.Pretty
	cfg.File = logging.FileConfig{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		Compress:   c.Logging.Compress,
	}
	return cfg
}

// LoadManifest returns the configured manifest: the manifest file if set,
// else the inline assets, else the default manifest.
func (c *Config) LoadManifest() (precache.Manifest, error) {
	var manifest precache.Manifest
	switch {
	case c.Manifest.Path != "":
		m, err := precache.LoadManifest(c.Manifest.Path)
		if err != nil {
			return precache.Manifest{}, err
		}
		manifest = m
	case len(c.Manifest.Assets) > 0:
		manifest = precache.Manifest{Assets: c.Manifest.Assets}
	default:
		manifest = precache.DefaultManifest()
	}

	if err := manifest.Validate(); err != nil {
		return precache.Manifest{}, err
	}
	return manifest, nil
}
