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

// CardTestingConfig tunes the card-testing detector.
type CardTestingConfig struct {
	// Threshold is the number of declined payments within Window that
	// triggers a detection.
	Threshold int `json:"threshold"`

	// Window is the trailing interval over which declines are counted.
	Window time.Duration `json:"window"`
}

// DefaultCardTestingConfig returns sensible defaults.
func DefaultCardTestingConfig() CardTestingConfig {
	return CardTestingConfig{
		Threshold: 3,
		Window:    5 * time.Minute,
	}
}

// CardTestingStage flags bursts of declined card payments from one source
// IP, the signature of an attacker validating stolen card numbers.
type CardTestingStage struct {
	config CardTestingConfig
	log    *ipLog
	now    func() time.Time
}

// NewCardTestingStage creates the stage with the given configuration.
func NewCardTestingStage(cfg CardTestingConfig) *CardTestingStage {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	return &CardTestingStage{
		config: cfg,
		log:    newIPLog(20),
		now:    time.Now,
	}
}

// Name implements Stage.
func (s *CardTestingStage) Name() string { return "card_testing" }

// Classify implements Stage.
func (s *CardTestingStage) Classify(_ context.Context, event *models.Event) (*Detection, error) {
	if !isPaymentFailure(event) || event.SourceIP == "" {
		return nil, nil
	}

	count := s.log.record(event.SourceIP, s.now(), s.config.Window)
	if count < s.config.Threshold {
		return nil, nil
	}

	return &Detection{
		AttackType:  "Card Testing",
		Severity:    SeverityCritical,
		Description: fmt.Sprintf("%d declined payments from %s within %s", count, event.SourceIP, s.config.Window),
		Evidence: map[string]interface{}{
			"declined_attempts": count,
			"window_seconds":    int(s.config.Window.Seconds()),
		},
	}, nil
}

func isPaymentFailure(event *models.Event) bool {
	switch event.EventType {
	case "payment_failed", "payment_failure", "card_declined":
		return true
	}
	if declined, ok := event.Data["card_declined"].(bool); ok && declined {
		return true
	}
	return false
}
