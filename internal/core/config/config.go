package config

import (
	"github.com/afridiag/fieldsync/internal/storage/redisstore"
	"github.com/afridiag/fieldsync/internal/storage/sqlite"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Remote  RemoteConfig  `yaml:"remote"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the local agent HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// RemoteConfig holds the remote authority settings.
type RemoteConfig struct {
	BaseURL string     `yaml:"base_url"`
	Auth    AuthConfig `yaml:"auth"`

	// Timeout is the interactive request budget. PredictionTimeout
	// applies to diagnosis submissions, which run model inference on the
	// backend and take longer.
	Timeout           Duration `yaml:"timeout"`
	PredictionTimeout Duration `yaml:"prediction_timeout"`
}

// AuthConfig holds worker credentials or a fixed API token. When Token is
// set it wins over the username/password flow.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// StorageConfig selects and configures the durable store backend.
type StorageConfig struct {
	Driver string            `yaml:"driver"` // sqlite, redis, memory
	SQLite sqlite.Config     `yaml:"sqlite"`
	Redis  redisstore.Config `yaml:"redis"`
}

// SyncConfig holds the background sync loop settings.
type SyncConfig struct {
	Interval      Duration `yaml:"interval"`
	ProbeInterval Duration `yaml:"probe_interval"`
	ProbePath     string   `yaml:"probe_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
