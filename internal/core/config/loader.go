package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/pinwater/pinwatch/internal/scheduling/batch"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

// DateLayout is the date format accepted on the command line and in config.
const DateLayout = "2006-01-02"

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := defaults()
	cfg.derive()
	return cfg
}

// Load reads configuration from a YAML file. The file is decoded over the
// defaults, so absent keys keep their default and explicit zeros are kept.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.derive()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *AppConfig {
	cfg := &AppConfig{
		Pacing:  throttle.DefaultConfig(),
		Batch:   BatchConfig{Size: 5, Sentinels: append([]string(nil), batch.DefaultSentinels...)},
		Stale:   StaleConfig{ThresholdDays: 365},
		Fetch:   FetchConfig{Start: "2024-01-01"},
		Server:  ServerConfig{Port: 8080, Interval: 30 * time.Minute},
		Logging: LoggingConfig{Level: "info"},
	}
	cfg.Store.Backend = BackendFile
	cfg.Store.File.Path = "data/registry.json"
	cfg.Store.SQLite.Path = "data/registry.db"
	cfg.Fetch.Timeout = 120 * time.Second
	cfg.Metrics.Job = "pinwatch"
	return cfg
}

// derive fills values that default to another setting.
func (c *AppConfig) derive() {
	// server.batch_size 0 means "use batch.size".
	if c.Server.BatchSize == 0 {
		c.Server.BatchSize = c.Batch.Size
	}
}

// Validate checks values that defaults cannot repair.
func (c *AppConfig) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.File.Path == "" {
			return fmt.Errorf("store.file.path is required for the file backend")
		}
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.URL == "" {
			return fmt.Errorf("store.postgres.url is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.Redis.URL == "" {
			return fmt.Errorf("store.redis.url is required for the redis backend")
		}
	case BackendObjectStore:
		if c.Store.ObjectStore.Endpoint == "" || c.Store.ObjectStore.Bucket == "" {
			return fmt.Errorf("store.objectstore.endpoint and bucket are required for the objectstore backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if _, err := c.Fetch.StartDate(); err != nil {
		return fmt.Errorf("fetch.start must be YYYY-MM-DD: %w", err)
	}
	if c.Batch.Size < 0 || c.Server.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative")
	}
	for family, d := range c.Pacing.Intervals() {
		if d < 0 {
			return fmt.Errorf("pacing.%s must not be negative", family)
		}
	}
	if c.Server.Interval < time.Minute {
		return fmt.Errorf("server.interval must be at least 1m, got %s", c.Server.Interval)
	}
	return nil
}
