// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"context"
	"errors"
	"time"

	"github.com/sentinelhq/sentinel/internal/breaker"
	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/metrics"
	"github.com/sentinelhq/sentinel/internal/models"
)

// Pipeline runs an ordered list of detector stages against each event.
//
// Execution policy:
//  1. The fast stages run synchronously in list order. Order is part of
//     the contract: early exit depends on it and stages are never
//     reordered or run in parallel.
//  2. A CRITICAL detection stops the run immediately; remaining stages,
//     the expensive stage included, are skipped.
//  3. The expensive stage runs last, through the circuit breaker. An open
//     circuit or a failure contributes no detection and never aborts the
//     run.
//  4. A stage error is logged and treated as "no detection from this
//     stage"; the run continues.
type Pipeline struct {
	stages    []Stage
	expensive Stage
	guard     *breaker.Breaker[*Detection]
	errWindow *metrics.Window
}

// NewPipeline creates a pipeline from the ordered fast stages plus the
// breaker-guarded expensive stage. Both expensive and guard may be nil,
// in which case only the fast stages run. errWindow, when non-nil,
// receives one sample per stage error for the sliding error-rate
// snapshot.
func NewPipeline(stages []Stage, expensive Stage, guard *breaker.Breaker[*Detection], errWindow *metrics.Window) *Pipeline {
	return &Pipeline{
		stages:    stages,
		expensive: expensive,
		guard:     guard,
		errWindow: errWindow,
	}
}

func (p *Pipeline) recordError(stageName string) {
	metrics.StageErrors.WithLabelValues(stageName).Inc()
	if p.errWindow != nil {
		p.errWindow.Record()
	}
}

// BreakerSnapshot exposes the guarded stage's breaker state for status
// reporting. Returns a zero-value ACTIVE snapshot when no guard is set.
func (p *Pipeline) BreakerSnapshot() breaker.Snapshot {
	if p.guard == nil {
		return breaker.Snapshot{Status: breaker.StatusActive}
	}
	return p.guard.Snapshot()
}

// Evaluate runs the event through the pipeline and returns all detections
// collected. An empty slice means "no threat".
func (p *Pipeline) Evaluate(ctx context.Context, event *models.Event) []Detection {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	var detections []Detection

	for _, stage := range p.stages {
		result, err := stage.Classify(ctx, event)
		if err != nil {
			p.recordError(stage.Name())
			logging.Error().Err(err).Str("stage", stage.Name()).Msg("detector stage failed")
			continue
		}
		if result == nil {
			continue
		}

		metrics.DetectionsTotal.WithLabelValues(stage.Name(), string(result.Severity)).Inc()
		detections = append(detections, *result)

		if result.Severity == SeverityCritical {
			logging.Debug().
				Str("stage", stage.Name()).
				Str("attack_type", result.AttackType).
				Msg("critical detection, skipping remaining stages")
			return detections
		}
	}

	if p.expensive != nil && p.guard != nil {
		result, err := p.guard.Execute(func() (*Detection, error) {
			return p.expensive.Classify(ctx, event)
		})
		switch {
		case errors.Is(err, breaker.ErrSkipped):
			logging.Debug().Str("stage", p.expensive.Name()).Msg("expensive stage skipped, circuit open")
		case err != nil:
			p.recordError(p.expensive.Name())
			logging.Warn().Err(err).Str("stage", p.expensive.Name()).Msg("expensive stage failed")
		case result != nil:
			metrics.DetectionsTotal.WithLabelValues(p.expensive.Name(), string(result.Severity)).Inc()
			detections = append(detections, *result)
		}
	}

	return detections
}
