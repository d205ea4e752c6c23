package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is required")
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = Duration(10 * time.Second)
	}
	if cfg.Remote.PredictionTimeout == 0 {
		cfg.Remote.PredictionTimeout = Duration(45 * time.Second)
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "fieldsync.db"
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = Duration(15 * time.Minute)
	}
	if cfg.Sync.ProbeInterval == 0 {
		cfg.Sync.ProbeInterval = Duration(30 * time.Second)
	}
	if cfg.Sync.ProbePath == "" {
		cfg.Sync.ProbePath = "/api/v1/health"
	}
}
