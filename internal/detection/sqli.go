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

// SQLInjectionStage flags events whose payload values contain SQL
// injection markers.
type SQLInjectionStage struct {
	patterns []string
}

// NewSQLInjectionStage creates the stage with the default pattern set.
func NewSQLInjectionStage() *SQLInjectionStage {
	return &SQLInjectionStage{
		patterns: []string{
			"' or ", "\" or ", "1=1", "union select", "; drop ",
			"--", "/*", "xp_cmdshell", "' or 1=1", "or 1=1--",
		},
	}
}

// Name implements Stage.
func (s *SQLInjectionStage) Name() string { return "sql_injection" }

// Classify implements Stage.
func (s *SQLInjectionStage) Classify(_ context.Context, event *models.Event) (*Detection, error) {
	for field, value := range stringValues(event.Data) {
		lowered := strings.ToLower(value)
		for _, pattern := range s.patterns {
			if strings.Contains(lowered, pattern) {
				return &Detection{
					AttackType:  "SQL Injection",
					Severity:    SeverityHigh,
					Description: fmt.Sprintf("SQL injection pattern in field %q", field),
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

// stringValues flattens the string-typed values of a payload mapping,
// including one level of nesting.
func stringValues(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case map[string]interface{}:
			for nk, nv := range val {
				if s, ok := nv.(string); ok {
					out[k+"."+nk] = s
				}
			}
		}
	}
	return out
}
