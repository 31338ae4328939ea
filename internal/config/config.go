package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	SnapshotDir string `yaml:"snapshot_dir"`

	OpeningBookPath string `yaml:"opening_book_path"`
	SearchDepth     int    `yaml:"search_depth"`

	EngineBinaryPath     string `yaml:"engine_binary_path"`
	EngineMoveTimeMillis int    `yaml:"engine_move_time_ms"`
	EngineThreads        int    `yaml:"engine_threads"`
	EngineHashMB         int    `yaml:"engine_hash_mb"`

	SessionIdleTTLSec int `yaml:"session_idle_ttl"`
	ReapIntervalSec   int `yaml:"reap_interval"`
}

func (c *AppConfig) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSec) * time.Second
}

func (c *AppConfig) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSec) * time.Second
}

func (c *AppConfig) EngineMoveTime() time.Duration {
	return time.Duration(c.EngineMoveTimeMillis) * time.Millisecond
}

// Load builds the config from an optional YAML file (CONFIG_FILE) with
// environment variables layered on top. Env wins over file.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:           ":8000",
		SnapshotDir:          "data/sessions",
		SearchDepth:          2,
		EngineMoveTimeMillis: 100,
		SessionIdleTTLSec:    1800,
		ReapIntervalSec:      60,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_DIR")); v != "" {
		cfg.SnapshotDir = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENING_BOOK_PATH")); v != "" {
		cfg.OpeningBookPath = v
	}
	if v := strings.TrimSpace(os.Getenv("SEARCH_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SearchDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_BINARY_PATH")); v != "" {
		cfg.EngineBinaryPath = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVE_TIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineMoveTimeMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_IDLE_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionIdleTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("REAP_INTERVAL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReapIntervalSec = n
		}
	}

	return cfg, nil
}
