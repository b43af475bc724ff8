package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings. Defaults are overridden by an optional
// YAML file, which is in turn overridden by LINKKEEP_* environment variables.
type Config struct {
	ListenAddr string `yaml:"listen_addr"` // ex: ":8080"
	DBPath     string `yaml:"db_path"`     // sqlite file, shared with the widget

	LogLevel  string `yaml:"log_level"`  // "debug" | "info" | "warn" | "error"
	PrettyLog bool   `yaml:"pretty_log"` // true => colored dev output, false => JSON

	ResolverTimeout    time.Duration `yaml:"resolver_timeout"`     // per preview fetch
	ThumbnailCacheSize int           `yaml:"thumbnail_cache_size"` // LRU entries
	RecentCount        int           `yaml:"recent_count"`         // size of the recent view
}

func defaults() *Config {
	return &Config{
		ListenAddr:         ":8080",
		DBPath:             "linkkeep.db",
		LogLevel:           "info",
		PrettyLog:          false,
		ResolverTimeout:    5 * time.Second,
		ThumbnailCacheSize: 512,
		RecentCount:        10,
	}
}

// Load builds the config. path may be empty; a missing file at a non-empty
// path is an error, since the caller asked for it explicitly.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.ThumbnailCacheSize <= 0 {
		return nil, fmt.Errorf("thumbnail_cache_size must be positive, got %d", cfg.ThumbnailCacheSize)
	}
	if cfg.RecentCount <= 0 {
		return nil, fmt.Errorf("recent_count must be positive, got %d", cfg.RecentCount)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LINKKEEP_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LINKKEEP_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LINKKEEP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LINKKEEP_PRETTY_LOG"); v != "" {
		cfg.PrettyLog = v == "true" || v == "1"
	}
	if v := os.Getenv("LINKKEEP_RESOLVER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ResolverTimeout = d
		}
	}
	if v := os.Getenv("LINKKEEP_THUMBNAIL_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ThumbnailCacheSize = n
		}
	}
	if v := os.Getenv("LINKKEEP_RECENT_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RecentCount = n
		}
	}
}
