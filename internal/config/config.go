// Package config loads redigo's process configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every setting redigo-server reads at startup.
type Config struct {
	Addr           string `env:"REDIGO_ADDR" envDefault:"127.0.0.1:6379"`
	MetricsAddr    string `env:"REDIGO_METRICS_ADDR" envDefault:""`
	MaxConnections int    `env:"REDIGO_MAX_CONNECTIONS" envDefault:"250"`

	// ConnectRatePerSec throttles how fast new connections are admitted,
	// independent of MaxConnections' cap on how many are held open at
	// once. Zero disables throttling.
	ConnectRatePerSec float64 `env:"REDIGO_CONNECT_RATE_PER_SEC" envDefault:"0"`
	ConnectBurst      int     `env:"REDIGO_CONNECT_BURST" envDefault:"50"`

	// CPURejectPercent and MemoryLimitBytes arm the resource guard's
	// emergency brake on new connections. Zero disables the respective
	// check; MemoryLimitBytes left at zero falls back to an
	// auto-detected cgroup limit, if any.
	CPURejectPercent float64 `env:"REDIGO_CPU_REJECT_PERCENT" envDefault:"0"`
	MemoryLimitBytes int64   `env:"REDIGO_MEMORY_LIMIT_BYTES" envDefault:"0"`

	LogLevel  string `env:"REDIGO_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"REDIGO_LOG_FORMAT" envDefault:"json"`
}

// Load reads .env (if present) then the environment, validating the
// result. Environment variables always win over .env file values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Missing .env is fine; the server runs on env vars alone.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("REDIGO_ADDR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("REDIGO_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.ConnectRatePerSec < 0 {
		return fmt.Errorf("REDIGO_CONNECT_RATE_PER_SEC must be >= 0, got %v", c.ConnectRatePerSec)
	}
	if c.CPURejectPercent < 0 || c.MemoryLimitBytes < 0 {
		return fmt.Errorf("REDIGO_CPU_REJECT_PERCENT and REDIGO_MEMORY_LIMIT_BYTES must be >= 0")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("REDIGO_LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("REDIGO_LOG_FORMAT must be one of json, pretty, got %q", c.LogFormat)
	}
	return nil
}

// Log emits the loaded configuration as a structured event.
func (c *Config) Log(logger zerolog.Logger) {
	logger.Info().
		Str("addr", c.Addr).
		Str("metrics_addr", c.MetricsAddr).
		Int("max_connections", c.MaxConnections).
		Float64("connect_rate_per_sec", c.ConnectRatePerSec).
		Int("connect_burst", c.ConnectBurst).
		Float64("cpu_reject_percent", c.CPURejectPercent).
		Int64("memory_limit_bytes", c.MemoryLimitBytes).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
