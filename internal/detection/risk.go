// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"errors"
	"fmt"

	"github.com/sentinelhq/sentinel/internal/models"
)

// ErrNoDetections reports that risk scoring was asked to score an empty
// detection set, which is a caller contract violation.
var ErrNoDetections = errors.New("detection: cannot score zero detections")

// upgradeThreshold is the aggregate score at which the output severity is
// upgraded to CRITICAL even when the primary attack is not critical:
// enough lower-severity detections together are treated as critical.
const upgradeThreshold = 0.95

// additionalWeight is the score contribution of each detection beyond the
// primary one.
const additionalWeight = 0.1

// Score combines a non-empty detection set into one normalized risk score.
//
// The primary attack is the detection with the maximum severity weight,
// ties broken by pipeline order. The aggregate is the primary weight plus
// a fixed increment per additional detection, capped at 1.0, so it is
// monotonically non-decreasing in the maximum weight present.
func Score(detections []Detection) (models.RiskScore, error) {
	if len(detections) == 0 {
		return models.RiskScore{}, ErrNoDetections
	}

	primary := Primary(detections)

	score := primary.Severity.Weight() + additionalWeight*float64(len(detections)-1)
	if score > 1.0 {
		score = 1.0
	}

	factors := make([]string, 0, len(detections))
	for _, d := range detections {
		factors = append(factors, fmt.Sprintf("%s (%s)", d.AttackType, d.Severity))
	}

	severity := primary.Severity
	if score >= upgradeThreshold {
		severity = SeverityCritical
	}

	return models.RiskScore{
		Score:    score,
		Severity: string(severity),
		Factors:  factors,
	}, nil
}

// Primary returns the detection with the maximum severity weight, ties
// broken by first-encountered (pipeline) order.
func Primary(detections []Detection) Detection {
	primary := detections[0]
	for _, d := range detections[1:] {
		if d.Severity.Weight() > primary.Severity.Weight() {
			primary = d
		}
	}
	return primary
}
