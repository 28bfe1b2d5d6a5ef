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

// PathTraversalStage flags directory-traversal attempts in payload values.
type PathTraversalStage struct {
	patterns []string
}

// NewPathTraversalStage creates the stage with the default pattern set.
func NewPathTraversalStage() *PathTraversalStage {
	return &PathTraversalStage{
		patterns: []string{
			"../", "..\\", "%2e%2e%2f", "/etc/passwd", "c:\\windows",
		},
	}
}

// Name implements Stage.
func (s *PathTraversalStage) Name() string { return "path_traversal" }

// Classify implements Stage.
func (s *PathTraversalStage) Classify(_ context.Context, event *models.Event) (*Detection, error) {
	for field, value := range stringValues(event.Data) {
		lowered := strings.ToLower(value)
		for _, pattern := range s.patterns {
			if strings.Contains(lowered, pattern) {
				return &Detection{
					AttackType:  "Path Traversal",
					Severity:    SeverityMedium,
					Description: fmt.Sprintf("path traversal pattern in field %q", field),
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
