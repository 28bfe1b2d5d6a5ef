// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/sentinelhq/sentinel/internal/models"
)

// AnomalyClassifier is the capability behind the expensive anomaly stage.
// Implementations may call out to a model service and are expected to be
// slow and occasionally unavailable; the pipeline guards every call with
// the circuit breaker.
type AnomalyClassifier interface {
	Classify(ctx context.Context, event *models.Event) (*Detection, error)
}

// AnomalyStage adapts an AnomalyClassifier to the Stage contract.
type AnomalyStage struct {
	classifier AnomalyClassifier
}

// NewAnomalyStage creates the stage around the given classifier.
func NewAnomalyStage(classifier AnomalyClassifier) *AnomalyStage {
	return &AnomalyStage{classifier: classifier}
}

// Name implements Stage.
func (s *AnomalyStage) Name() string { return "anomaly" }

// Classify implements Stage.
func (s *AnomalyStage) Classify(ctx context.Context, event *models.Event) (*Detection, error) {
	return s.classifier.Classify(ctx, event)
}

// HeuristicClassifier is the built-in AnomalyClassifier used when no
// external model service is configured. It flags payloads that are
// unusually large or deeply structured for their event type.
type HeuristicClassifier struct {
	// MaxPayloadBytes is the serialized-payload size above which an event
	// is considered anomalous. Default: 16KiB.
	MaxPayloadBytes int
}

// NewHeuristicClassifier returns a classifier with default thresholds.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{MaxPayloadBytes: 16 * 1024}
}

// Classify implements AnomalyClassifier.
func (c *HeuristicClassifier) Classify(ctx context.Context, event *models.Event) (*Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("anomaly: marshal payload: %w", err)
	}

	limit := c.MaxPayloadBytes
	if limit <= 0 {
		limit = 16 * 1024
	}
	if len(raw) <= limit {
		return nil, nil
	}

	return &Detection{
		AttackType:  "Behavioral Anomaly",
		Severity:    SeverityMedium,
		Description: fmt.Sprintf("payload size %d exceeds %d bytes for event type %q", len(raw), limit, event.EventType),
		Evidence: map[string]interface{}{
			"payload_bytes": len(raw),
			"limit_bytes":   limit,
		},
	}, nil
}
