// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinelhq/sentinel/internal/models"
)

// XSSStage flags events whose payload values carry script-injection markers.
type XSSStage struct {
	patterns []string
}

// NewXSSStage creates the stage with the default pattern set.
func NewXSSStage() *XSSStage {
	return &XSSStage{
		patterns: []string{
			"<script", "javascript:", "onerror=", "onload=",
			"<img src", "document.cookie", "eval(",
		},
	}
}

// Name implements Stage.
func (s *XSSStage) Name() string { return "xss" }

// Classify implements Stage.
func (s *XSSStage) Classify(_ context.Context, event *models.Event) (*Detection, error) {
	for field, value := range stringValues(event.Data) {
		lowered := strings.ToLower(value)
		for _, pattern := range s.patterns {
			if strings.Contains(lowered, pattern) {
				return &Detection{
					AttackType:  "Cross-Site Scripting",
					Severity:    SeverityHigh,
					Description: fmt.Sprintf("script injection pattern in field %q", field),
					Evidence: map[string]interface{}{
						"field":   field,
						"pattern": pattern,
					},
				}, nil
			}
		}
	}
	return nil, nil
}
