// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinelhq/sentinel/internal/models"
)

// BruteForceConfig tunes the brute-force detector.
type BruteForceConfig struct {
	// Threshold is the number of failed logins within Window that triggers
	// a detection.
	Threshold int `json:"threshold"`

	// Window is the trailing interval over which failures are counted.
	Window time.Duration `json:"window"`
}

// DefaultBruteForceConfig returns sensible defaults.
func DefaultBruteForceConfig() BruteForceConfig {
	return BruteForceConfig{
		Threshold: 5,
		Window:    time.Minute,
	}
}

// BruteForceStage flags repeated failed logins from one source IP.
type BruteForceStage struct {
	config BruteForceConfig
	log    *ipLog
	now    func() time.Time
}

// NewBruteForceStage creates the stage with the given configuration.
func NewBruteForceStage(cfg BruteForceConfig) *BruteForceStage {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &BruteForceStage{
		config: cfg,
		log:    newIPLog(20),
		now:    time.Now,
	}
}

// Name implements Stage.
func (s *BruteForceStage) Name() string { return "brute_force" }

// Classify implements Stage.
func (s *BruteForceStage) Classify(_ context.Context, event *models.Event) (*Detection, error) {
	if event.EventType != "login_failed" && event.EventType != "login_failure" && event.EventType != "failed_login" {
		return nil, nil
	}
	if event.SourceIP == "" {
		return nil, nil
	}

	count := s.log.record(event.SourceIP, s.now(), s.config.Window)
	if count < s.config.Threshold {
		return nil, nil
	}

	return &Detection{
		AttackType:  "Brute Force",
		Severity:    SeverityHigh,
		Description: fmt.Sprintf("%d failed logins from %s within %s", count, event.SourceIP, s.config.Window),
		Evidence: map[string]interface{}{
			"failed_attempts": count,
			"window_seconds":  int(s.config.Window.Seconds()),
		},
	}, nil
}
