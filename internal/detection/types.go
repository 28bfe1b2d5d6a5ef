// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"context"

	"github.com/sentinelhq/sentinel/internal/models"
)

// Severity indicates the severity level of a detection.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// severityWeights maps each severity to its fixed numeric weight.
// Risk scoring and primary-attack selection both use this table.
var severityWeights = map[Severity]float64{
	SeverityLow:      0.2,
	SeverityMedium:   0.5,
	SeverityHigh:     0.75,
	SeverityCritical: 1.0,
}

// Weight returns the numeric weight of the severity, 0 for unknown values.
func (s Severity) Weight() float64 {
	return severityWeights[s]
}

// Detection is the result of one detector stage. Produced, never mutated.
type Detection struct {
	AttackType  string                 `json:"attack_type"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
}

// Stage is the capability contract implemented by every pipeline stage:
// classify an event, optionally producing a Detection. A nil Detection with
// a nil error means "no threat seen by this stage". Errors are isolated by
// the pipeline and treated as "no detection".
type Stage interface {
	// Name identifies the stage in logs and metrics.
	Name() string

	// Classify evaluates the event. Returns a Detection if the stage
	// recognizes an attack, nil otherwise.
	Classify(ctx context.Context, event *models.Event) (*Detection, error)
}
