// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package simulation drives synthetic attack traffic through the
// detection pipeline for demos and end-to-end verification. Events are
// submitted in-process, not over HTTP, so a simulation run exercises
// the pipeline without tripping transport-level limits.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sentinelhq/sentinel/internal/detection"
	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/models"
)

// ErrSimulationRunning reports a start request while a run is active.
var ErrSimulationRunning = errors.New("simulation: a run is already active")

// ErrUnknownScenario reports an unrecognized scenario name.
var ErrUnknownScenario = errors.New("simulation: unknown scenario")

// Scenario names accepted by Start.
const (
	ScenarioSQLI        = "sqli"
	ScenarioXSS         = "xss"
	ScenarioBruteForce  = "brute_force"
	ScenarioCardTesting = "card_testing"
	ScenarioAll         = "all"
)

// Config parameterizes one simulation run.
type Config struct {
	Scenario      string  `json:"scenario"`
	EventsPerType int     `json:"events_per_type"`
	EventsPerSec  float64 `json:"events_per_second"`
	SourceIP      string  `json:"source_ip,omitempty"`
}

// Broadcaster fans simulation status envelopes out to observers.
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

// Runner executes at most one simulation at a time against the
// processor. Pacing uses a token bucket so a burst never floods the
// pipeline.
type Runner struct {
	processor *detection.Processor
	hub       Broadcaster

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewRunner creates a runner submitting to processor.
func NewRunner(processor *detection.Processor, hub Broadcaster) *Runner {
	return &Runner{processor: processor, hub: hub}
}

// Start launches a run in the background. It fails with
// ErrSimulationRunning when a run is already active and with
// ErrUnknownScenario for an unrecognized scenario name.
func (r *Runner) Start(cfg Config) error {
	if !validScenario(cfg.Scenario) {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, cfg.Scenario)
	}
	if cfg.EventsPerType <= 0 {
		cfg.EventsPerType = 5
	}
	if cfg.EventsPerSec <= 0 {
		cfg.EventsPerSec = 10
	}
	if cfg.SourceIP == "" {
		cfg.SourceIP = fmt.Sprintf("198.51.100.%d", rand.Intn(254)+1)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrSimulationRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.running = true
	r.cancel = cancel

	go r.run(ctx, cfg)
	return nil
}

// Stop cancels the active run, if any.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) run(ctx context.Context, cfg Config) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.cancel = nil
		r.mu.Unlock()
	}()

	r.broadcastStatus("running", fmt.Sprintf("simulation started: %s", cfg.Scenario))
	logging.Info().
		Str("scenario", cfg.Scenario).
		Int("events_per_type", cfg.EventsPerType).
		Float64("events_per_second", cfg.EventsPerSec).
		Msg("simulation started")

	limiter := rate.NewLimiter(rate.Limit(cfg.EventsPerSec), 1)
	submitted, threats := 0, 0

	for _, event := range buildEvents(cfg) {
		if err := limiter.Wait(ctx); err != nil {
			r.broadcastStatus("failed", "simulation canceled")
			logging.Info().Str("scenario", cfg.Scenario).Msg("simulation canceled")
			return
		}
		outcome := r.processor.Submit(ctx, event)
		submitted++
		if outcome.Status != detection.StatusNoThreat {
			threats++
		}
	}

	r.broadcastStatus("completed", fmt.Sprintf("simulation finished: %d events, %d threats", submitted, threats))
	logging.Info().
		Str("scenario", cfg.Scenario).
		Int("submitted", submitted).
		Int("threats", threats).
		Msg("simulation finished")
}

func (r *Runner) broadcastStatus(status, message string) {
	if r.hub == nil {
		return
	}
	r.hub.Broadcast("simulation_status", map[string]string{
		"status":  status,
		"message": message,
	})
}

func validScenario(name string) bool {
	switch name {
	case ScenarioSQLI, ScenarioXSS, ScenarioBruteForce, ScenarioCardTesting, ScenarioAll:
		return true
	}
	return false
}

// buildEvents expands the configured scenario into a concrete event
// sequence. Payloads mirror common attack tooling so every fast stage
// has something to find.
func buildEvents(cfg Config) []*models.Event {
	var events []*models.Event
	add := func(scenario string) {
		switch scenario {
		case ScenarioSQLI:
			events = append(events, sqliEvents(cfg)...)
		case ScenarioXSS:
			events = append(events, xssEvents(cfg)...)
		case ScenarioBruteForce:
			events = append(events, bruteForceEvents(cfg)...)
		case ScenarioCardTesting:
			events = append(events, cardTestingEvents(cfg)...)
		}
	}

	if cfg.Scenario == ScenarioAll {
		for _, s := range []string{ScenarioSQLI, ScenarioXSS, ScenarioBruteForce, ScenarioCardTesting} {
			add(s)
		}
	} else {
		add(cfg.Scenario)
	}
	return events
}

func sqliEvents(cfg Config) []*models.Event {
	payloads := []map[string]interface{}{
		{"username": "admin' OR '1'='1--", "password": "pw"},
		{"query": "'; SELECT pg_sleep(2); --"},
		{"id": "1 UNION SELECT null, version(), null--"},
	}
	return eventsFromPayloads("simulated_sql_injection", payloads, cfg)
}

func xssEvents(cfg Config) []*models.Event {
	payloads := []map[string]interface{}{
		{"comment": "<script>console.log('SimulatedXSS')</script>"},
		{"search": "\"><img src=x onerror=console.error('SimulatedXSS')>"},
		{"profile": "javascript:console.warn('SimulatedXSS')"},
	}
	return eventsFromPayloads("simulated_xss", payloads, cfg)
}

func bruteForceEvents(cfg Config) []*models.Event {
	events := make([]*models.Event, 0, cfg.EventsPerType)
	for i := 0; i < cfg.EventsPerType; i++ {
		events = append(events, &models.Event{
			EventType: "login_failure",
			UserID:    "sim_victim",
			SourceIP:  cfg.SourceIP,
			Data: map[string]interface{}{
				"username": "sim_victim",
				"password": "[MASKED]",
				"attempt":  i + 1,
			},
		})
	}
	return events
}

func cardTestingEvents(cfg Config) []*models.Event {
	reasons := []string{
		"Insufficient Funds", "Invalid CVV", "Do Not Honor",
		"Expired Card", "Generic Decline",
	}
	events := make([]*models.Event, 0, cfg.EventsPerType)
	for i := 0; i < cfg.EventsPerType; i++ {
		events = append(events, &models.Event{
			EventType: "payment_failure",
			SourceIP:  cfg.SourceIP,
			Data: map[string]interface{}{
				"card_bin":      "411111",
				"payment_token": fmt.Sprintf("tok_fail_%08x", rand.Uint32()),
				"reason":        reasons[i%len(reasons)],
			},
		})
	}
	return events
}

func eventsFromPayloads(eventType string, payloads []map[string]interface{}, cfg Config) []*models.Event {
	events := make([]*models.Event, 0, cfg.EventsPerType)
	for i := 0; i < cfg.EventsPerType; i++ {
		events = append(events, &models.Event{
			EventType: eventType,
			SourceIP:  cfg.SourceIP,
			Data:      payloads[i%len(payloads)],
		})
	}
	return events
}
