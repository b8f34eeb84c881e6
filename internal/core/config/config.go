package config

import (
	"time"

	"github.com/pinwater/pinwatch/internal/infra/fetcher"
	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/infra/storage/file"
	"github.com/pinwater/pinwatch/internal/infra/storage/objectstore"
	"github.com/pinwater/pinwatch/internal/infra/storage/postgres"
	redisstore "github.com/pinwater/pinwatch/internal/infra/storage/redis"
	"github.com/pinwater/pinwatch/internal/infra/storage/sqlite"
	"github.com/pinwater/pinwatch/internal/scheduling/metrics"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

// Store backends.
const (
	BackendFile        = "file"
	BackendMemory      = "memory"
	BackendSQLite      = "sqlite"
	BackendPostgres    = "postgres"
	BackendRedis       = "redis"
	BackendObjectStore = "objectstore"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Store   StoreConfig        `yaml:"store"`
	Probe   ProbeConfig        `yaml:"probe"`
	Pacing  throttle.Config    `yaml:"pacing"`
	Batch   BatchConfig        `yaml:"batch"`
	Stale   StaleConfig        `yaml:"stale"`
	Fetch   FetchConfig        `yaml:"fetch"`
	Metrics metrics.PushConfig `yaml:"metrics"`
	Server  ServerConfig       `yaml:"server"`
	Logging LoggingConfig      `yaml:"logging"`
}

// StoreConfig selects and configures the registry backend.
type StoreConfig struct {
	Backend     string             `yaml:"backend"`
	File        file.Config        `yaml:"file"`
	SQLite      sqlite.Config      `yaml:"sqlite"`
	Postgres    postgres.Config    `yaml:"postgres"`
	Redis       redisstore.Config  `yaml:"redis"`
	ObjectStore objectstore.Config `yaml:"objectstore"`
}

// ProbeConfig holds prober settings plus the jurisdiction probe query.
type ProbeConfig struct {
	probe.Config `yaml:",inline"`
	WQPTemplate  string `yaml:"wqp_template"`
}

// BatchConfig holds batch scheduler settings.
type BatchConfig struct {
	Size      int      `yaml:"size"`
	Sentinels []string `yaml:"sentinels"`
}

// StaleConfig holds staleness report settings.
type StaleConfig struct {
	ThresholdDays int `yaml:"threshold_days"`
}

// FetchConfig holds fetch adapter settings.
type FetchConfig struct {
	fetcher.Config `yaml:",inline"`
	Start          string `yaml:"start"` // YYYY-MM-DD
}

// StartDate parses Start.
func (f FetchConfig) StartDate() (time.Time, error) {
	return time.Parse(DateLayout, f.Start)
}

// ServerConfig holds serve-mode settings.
type ServerConfig struct {
	Port      int           `yaml:"port"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	Fast      bool          `yaml:"fast"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
