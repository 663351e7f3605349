package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the tablescope configuration, loaded from
// ~/.config/tablescope/config.toml with environment-variable overrides.
//
// Example:
//
//	[catalog]
//	url = "https://catalog.example.com"
//	token = "..."
//
//	[cache]
//	backend = "file"          # file | redis | off
//	ttl = "1h"
//	redis_url = "redis://localhost:6379/0"
//
//	[store]
//	mongo_uri = "mongodb://localhost:27017"
//	database = "tablescope"
type Config struct {
	Catalog CatalogConfig `toml:"catalog"`
	Cache   CacheConfig   `toml:"cache"`
	Store   StoreConfig   `toml:"store"`
	Serve   ServeConfig   `toml:"serve"`
}

// CatalogConfig locates the catalog service.
type CatalogConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// CacheConfig selects and tunes the byte-cache backend.
type CacheConfig struct {
	Backend  string   `toml:"backend"` // file | redis | off
	TTL      duration `toml:"ttl"`
	RedisURL string   `toml:"redis_url"`
}

// StoreConfig locates the snapshot store. An empty MongoURI selects the
// in-memory store.
type StoreConfig struct {
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
}

// ServeConfig tunes the session server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// duration lets TTLs be written as "1h" / "30m" in TOML.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// TTLDuration returns the cache TTL as a time.Duration.
func (c CacheConfig) TTLDuration() time.Duration { return time.Duration(c.TTL) }

// LoadConfig reads the config file at path and applies env overrides.
// A missing file is not an error; defaults plus env apply.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Cache: CacheConfig{Backend: "file"},
		Store: StoreConfig{Database: appName},
		Serve: ServeConfig{Addr: ":8640"},
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// Env overrides for settings that change per invocation or carry secrets
	if v := os.Getenv("TABLESCOPE_CATALOG_URL"); v != "" {
		cfg.Catalog.URL = v
	}
	if v := os.Getenv("TABLESCOPE_CATALOG_TOKEN"); v != "" {
		cfg.Catalog.Token = v
	}
	if v := os.Getenv("TABLESCOPE_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("TABLESCOPE_REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("TABLESCOPE_MONGO_URI"); v != "" {
		cfg.Store.MongoURI = v
	}
	if v := os.Getenv("TABLESCOPE_SERVE_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}

	return cfg, nil
}
