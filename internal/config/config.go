// Package config loads the daemon's YAML configuration file and applies
// environment-variable overrides, grounded on internal/scheduler.loadConfig
// in the teacher repo (read file, yaml.Unmarshal, then fill in defaults).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Database holds PostgreSQL connection settings.
type Database struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Name              string `yaml:"name"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	MinConnections    int    `yaml:"min_connections"`
	MaxConnections    int    `yaml:"max_connections"`
	ConnectionTimeout int    `yaml:"connection_timeout_seconds"`
}

// ConnectionString builds a lib/pq-compatible DSN.
func (d Database) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Redis holds cache connection settings (spec SPEC_FULL.md §4.13).
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Collector holds the continuous-collection daemon's schedule (spec §4.6).
type Collector struct {
	Symbol          string `yaml:"symbol"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// ThreeGate holds the engine's pattern directory and rate-limit settings.
type ThreeGate struct {
	PatternDir          string  `yaml:"pattern_dir"`
	MinSignalIntervalMin int    `yaml:"min_signal_interval_minutes"`
	DisableRateLimit    bool    `yaml:"disable_rate_limit"`
	DefaultMinConfidence float64 `yaml:"default_min_confidence"`
}

// HTTP holds the admin/status surface listen address (spec §4.12).
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Log holds structured-logging settings.
type Log struct {
	Level string `yaml:"level"`
}

// Config is the top-level daemon configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	Collector Collector `yaml:"collector"`
	ThreeGate ThreeGate `yaml:"three_gate"`
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
}

// MinSignalInterval returns the configured rate limit as a time.Duration.
func (c Config) MinSignalInterval() time.Duration {
	return time.Duration(c.ThreeGate.MinSignalIntervalMin) * time.Minute
}

// Timeout returns the database operation timeout.
func (d Database) Timeout() time.Duration {
	return time.Duration(d.ConnectionTimeout) * time.Second
}

// Load reads path as YAML, applies defaults for any zero-valued field, then
// overrides from environment variables (DB_HOST, DB_PORT, DB_NAME, DB_USER,
// DB_PASSWORD, REDIS_ADDR) when set, so a set environment variable takes
// precedence over both the file value and the hard default.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "trading_system"
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.MinConnections == 0 {
		cfg.Database.MinConnections = 3
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 15
	}
	if cfg.Database.ConnectionTimeout == 0 {
		cfg.Database.ConnectionTimeout = 60
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Collector.Symbol == "" {
		cfg.Collector.Symbol = "USDJPY=X"
	}
	if cfg.Collector.IntervalMinutes == 0 {
		cfg.Collector.IntervalMinutes = 5
	}
	if cfg.ThreeGate.PatternDir == "" {
		cfg.ThreeGate.PatternDir = "config/patterns"
	}
	if cfg.ThreeGate.MinSignalIntervalMin == 0 {
		cfg.ThreeGate.MinSignalIntervalMin = 15
	}
	if cfg.ThreeGate.DefaultMinConfidence == 0 {
		cfg.ThreeGate.DefaultMinConfidence = 0.6
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}
