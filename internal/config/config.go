// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then environment variables, in increasing
// precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the sentinel server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Detection  DetectionConfig  `koanf:"detection"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Monitor    MonitorConfig    `koanf:"monitor"`
	Geo        GeoConfig        `koanf:"geo"`
	Audit      AuditConfig      `koanf:"audit"`
	Simulation SimulationConfig `koanf:"simulation"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

// DetectionConfig configures the detector pipeline.
type DetectionConfig struct {
	BruteForceThreshold  int           `koanf:"brute_force_threshold"`
	BruteForceWindow     time.Duration `koanf:"brute_force_window"`
	CardTestingThreshold int           `koanf:"card_testing_threshold"`
	CardTestingWindow    time.Duration `koanf:"card_testing_window"`
	MaxPayloadBytes      int           `koanf:"max_payload_bytes"`
	HistoryLimit         int           `koanf:"history_limit"`
}

// BreakerConfig configures the circuit breaker guarding the expensive
// detector stage.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	Window           time.Duration `koanf:"window"`
	CoolDown         time.Duration `koanf:"cool_down"`
}

// RateLimitConfig configures the adaptive per-IP block table.
type RateLimitConfig struct {
	BlockDuration time.Duration `koanf:"block_duration"`
}

// MetricsConfig configures the sliding windows and broadcast cadence.
type MetricsConfig struct {
	WindowMaxLen      int           `koanf:"window_max_len"`
	WindowMaxAge      time.Duration `koanf:"window_max_age"`
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`
}

// MonitorConfig configures health-check tasks.
type MonitorConfig struct {
	CheckTimeout time.Duration `koanf:"check_timeout"`
	StopTimeout  time.Duration `koanf:"stop_timeout"`
}

// GeoConfig configures geolocation enrichment. With an empty database
// path only local/unknown classification is available.
type GeoConfig struct {
	DatabasePath string `koanf:"database_path"`
}

// AuditConfig configures the persistent incident log.
type AuditConfig struct {
	Path string `koanf:"path"`
}

// SimulationConfig configures the synthetic attack runner.
type SimulationConfig struct {
	Enabled      bool    `koanf:"enabled"`
	EventsPerSec float64 `koanf:"events_per_second"`
}

// SecurityConfig configures the transport-level protections.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20, // 1 MB
		},
		Detection: DetectionConfig{
			BruteForceThreshold:  5,
			BruteForceWindow:     time.Minute,
			CardTestingThreshold: 3,
			CardTestingWindow:    5 * time.Minute,
			MaxPayloadBytes:      16 * 1024,
			HistoryLimit:         500,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Window:           time.Minute,
			CoolDown:         30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			BlockDuration: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			WindowMaxLen:      500,
			WindowMaxAge:      time.Hour,
			BroadcastInterval: 5 * time.Second,
		},
		Monitor: MonitorConfig{
			CheckTimeout: 10 * time.Second,
			StopTimeout:  10 * time.Second,
		},
		Geo: GeoConfig{
			DatabasePath: "",
		},
		Audit: AuditConfig{
			Path: "/data/security_events.json",
		},
		Simulation: SimulationConfig{
			Enabled:      true,
			EventsPerSec: 10,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks cross-field constraints not expressible as defaults.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Detection.BruteForceThreshold < 1 {
		return fmt.Errorf("detection.brute_force_threshold must be >= 1")
	}
	if c.Detection.CardTestingThreshold < 1 {
		return fmt.Errorf("detection.card_testing_threshold must be >= 1")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be >= 1")
	}
	if c.RateLimit.BlockDuration <= 0 {
		return fmt.Errorf("rate_limit.block_duration must be positive")
	}
	if c.Metrics.BroadcastInterval <= 0 {
		return fmt.Errorf("metrics.broadcast_interval must be positive")
	}
	if c.Audit.Path == "" {
		return fmt.Errorf("audit.path must not be empty")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Addr returns the listener address in host:port form.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
