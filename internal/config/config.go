// Package config loads daemon configuration from an optional YAML file,
// environment variables and defaults, in that order of increasing
// precedence for env over file.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/finledger/syncengine/internal/conflict"
)

// Store backends.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Config is the full daemon configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Offline OfflineConfig `mapstructure:"offline"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig points at the remote backend.
type ServerConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// StoreConfig selects and locates the local store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "bolt" or "sqlite"
	Path    string `mapstructure:"path"`
}

// SyncConfig tunes the sync cycle.
type SyncConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	TieTolerance time.Duration `mapstructure:"tie_tolerance"`
	Strategy     string        `mapstructure:"strategy"`
}

// RetryConfig bounds failed-write replay.
type RetryConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// OfflineConfig bounds the offline buffer.
type OfflineConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LogConfig controls log output. An empty File logs to stderr.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and SYNCENGINE_* environment variables apply (e.g. SYNCENGINE_SERVER_URL,
// SYNCENGINE_STORE_BACKEND).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.url", "http://localhost:8080")
	v.SetDefault("store.backend", BackendBolt)
	v.SetDefault("store.path", "syncengine.db")
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.tie_tolerance", 2*time.Second)
	v.SetDefault("sync.strategy", string(conflict.Merge))
	v.SetDefault("retry.interval", 30*time.Second)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("offline.capacity", 1000)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("SYNCENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", c.Server.URL)
	}

	switch c.Store.Backend {
	case BackendBolt, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (want %q or %q)", c.Store.Backend, BackendBolt, BackendSQLite)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.TieTolerance < 0 {
		return fmt.Errorf("tie tolerance must not be negative, got %s", c.Sync.TieTolerance)
	}
	if _, err := conflict.ParseStrategy(c.Sync.Strategy); err != nil {
		return fmt.Errorf("sync strategy: %w", err)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Offline.Capacity <= 0 {
		return fmt.Errorf("offline capacity must be positive, got %d", c.Offline.Capacity)
	}
	return nil
}
