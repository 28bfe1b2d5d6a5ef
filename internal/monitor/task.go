// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/metrics"
	"github.com/sentinelhq/sentinel/internal/models"
)

// historyLimit is the number of health results retained per target.
const historyLimit = 100

// Task is a supervised health-check loop for one target. It implements
// suture.Service via Serve.
type Task struct {
	config   models.MonitorConfig
	backend  Backend
	onResult func(models.WebsiteHealth)

	mu      sync.RWMutex
	history []models.WebsiteHealth
}

// NewTask creates a task for config. onResult receives every check
// result and may be nil.
func NewTask(config models.MonitorConfig, backend Backend, onResult func(models.WebsiteHealth)) *Task {
	return &Task{
		config:   config,
		backend:  backend,
		onResult: onResult,
		history:  make([]models.WebsiteHealth, 0, historyLimit),
	}
}

// String implements fmt.Stringer for supervisor logging.
func (t *Task) String() string {
	return "monitor:" + t.config.URL
}

// Serve runs the check loop until the context is canceled. The first
// check fires immediately so a newly registered target reports without
// waiting out a full interval.
func (t *Task) Serve(ctx context.Context) error {
	interval := t.config.Interval()
	logging.Info().
		Str("url", t.config.URL).
		Dur("interval", interval).
		Msg("monitor task started")

	t.check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("url", t.config.URL).Msg("monitor task stopped")
			return ctx.Err()
		case <-ticker.C:
			t.check(ctx)
		}
	}
}

func (t *Task) check(ctx context.Context) {
	health := t.backend.Check(ctx, t.config)
	metrics.MonitorChecks.WithLabelValues(health.Status).Inc()

	t.mu.Lock()
	if len(t.history) >= historyLimit {
		t.history = t.history[1:]
	}
	t.history = append(t.history, health)
	t.mu.Unlock()

	if health.Status != models.HealthStatusHealthy {
		logging.Warn().
			Str("url", health.URL).
			Str("status", health.Status).
			Int("status_code", health.StatusCode).
			Strs("errors", health.Errors).
			Msg("monitored target unhealthy")
	}

	if t.onResult != nil {
		t.onResult(health)
	}
}

// Latest returns the most recent health result, or false when no check
// has completed yet.
func (t *Task) Latest() (models.WebsiteHealth, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.history) == 0 {
		return models.WebsiteHealth{}, false
	}
	return t.history[len(t.history)-1], true
}

// History returns a copy of the retained health results, oldest first.
func (t *Task) History() []models.WebsiteHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.WebsiteHealth, len(t.history))
	copy(out, t.history)
	return out
}

// Config returns the task's monitor configuration.
func (t *Task) Config() models.MonitorConfig {
	return t.config
}
