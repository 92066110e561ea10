// Package config loads the offline proxy configuration from a YAML file,
// OFFLINE_CACHE_* environment variables and defaults.
package config

import (
	"time"
)

// Duration accepts Go duration strings ("30s", "5m") or plain seconds.
type Duration time.Duration

// DurationValue returns the underlying time.Duration.
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Config is the complete proxy configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Generation GenerationConfig `mapstructure:"generation"`
	Manifest   ManifestConfig   `mapstructure:"manifest"`
	Router     RouterConfig     `mapstructure:"router"`
	Store      StoreConfig      `mapstructure:"store"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig describes the listening side and the proxied origin.
type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Origin          string   `mapstructure:"origin"`
	ShutdownTimeout Duration `mapstructure:"shutdown_timeout"`
}

// GenerationConfig identifies the generation this process installs.
type GenerationConfig struct {
	ID           string   `mapstructure:"id"`
	SkipWaiting  bool     `mapstructure:"skip_waiting"`
	InstallRetry Duration `mapstructure:"install_retry"`
}

// ManifestConfig names the manifest file or lists the assets inline.
// The file wins when both are set.
type ManifestConfig struct {
	Path   string   `mapstructure:"path"`
	Assets []string `mapstructure:"assets"`
}

// RouterConfig configures request routing.
type RouterConfig struct {
	RootDocument string   `mapstructure:"root_document"`
	WriteTimeout Duration `mapstructure:"write_timeout"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver  string       `mapstructure:"driver"`
	Redis   RedisConfig  `mapstructure:"redis"`
	LevelDB FileDBConfig `mapstructure:"leveldb"`
	SQLite  FileDBConfig `mapstructure:"sqlite"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// FileDBConfig configures a file based driver.
type FileDBConfig struct {
	Path string `mapstructure:"path"`
}

// FetchConfig configures network access to the origin.
type FetchConfig struct {
	Timeout        Duration `mapstructure:"timeout"`
	MaxAttempts    int      `mapstructure:"max_attempts"`
	InitialBackoff Duration `mapstructure:"initial_backoff"`
	MaxBackoff     Duration `mapstructure:"max_backoff"`
	MaxConcurrency int      `mapstructure:"max_concurrency"`
	AssetTimeout   Duration `mapstructure:"asset_timeout"`
	UserAgent      string   `mapstructure:"user_agent"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}
