// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaultConfig().Validate() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Metrics.BroadcastInterval != 5*time.Second {
		t.Errorf("default broadcast interval = %v, want 5s", cfg.Metrics.BroadcastInterval)
	}
	if cfg.RateLimit.BlockDuration != 5*time.Minute {
		t.Errorf("default block duration = %v, want 5m", cfg.RateLimit.BlockDuration)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"brute force threshold", func(c *Config) { c.Detection.BruteForceThreshold = 0 }},
		{"card testing threshold", func(c *Config) { c.Detection.CardTestingThreshold = 0 }},
		{"breaker threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }},
		{"block duration", func(c *Config) { c.RateLimit.BlockDuration = 0 }},
		{"broadcast interval", func(c *Config) { c.Metrics.BroadcastInterval = 0 }},
		{"audit path", func(c *Config) { c.Audit.Path = "" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 9090}
	if got := cfg.Addr(); got != "127.0.0.1:9090" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9090", got)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"BRUTE_FORCE_THRESHOLD", "detection.brute_force_threshold"},
		{"CARD_TESTING_WINDOW", "detection.card_testing_window"},
		{"BREAKER_FAILURE_THRESHOLD", "breaker.failure_threshold"},
		{"BLOCK_DURATION", "rate_limit.block_duration"},
		{"GEOIP_DB_PATH", "geo.database_path"},
		{"AUDIT_LOG_PATH", "audit.path"},
		{"SIMULATION_ENABLED", "simulation.enabled"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}
