// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package simulation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sentinelhq/sentinel/internal/detection"
	"github.com/sentinelhq/sentinel/internal/ratelimit"
)

type recordingHub struct {
	mu       sync.Mutex
	statuses []string
}

func (h *recordingHub) Broadcast(messageType string, data interface{}) {
	if messageType != "simulation_status" {
		return
	}
	payload, ok := data.(map[string]string)
	if !ok {
		return
	}
	h.mu.Lock()
	h.statuses = append(h.statuses, payload["status"])
	h.mu.Unlock()
}

func (h *recordingHub) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.statuses))
	copy(out, h.statuses)
	return out
}

func newTestRunner(hub Broadcaster) *Runner {
	processor := detection.NewProcessor(detection.ProcessorDeps{
		Pipeline: detection.NewPipeline(nil, nil, nil, nil),
		Limiter:  ratelimit.NewTable(time.Minute),
		History:  detection.NewHistory(100),
	})
	return NewRunner(processor, hub)
}

func TestBuildEventsPerScenario(t *testing.T) {
	tests := []struct {
		scenario string
		want     int
	}{
		{ScenarioSQLI, 4},
		{ScenarioXSS, 4},
		{ScenarioBruteForce, 4},
		{ScenarioCardTesting, 4},
		{ScenarioAll, 16},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			events := buildEvents(Config{Scenario: tt.scenario, EventsPerType: 4, SourceIP: "198.51.100.7"})
			if len(events) != tt.want {
				t.Errorf("len(events) = %d, want %d", len(events), tt.want)
			}
			for _, e := range events {
				if e.SourceIP != "198.51.100.7" {
					t.Errorf("event source IP = %q, want configured IP", e.SourceIP)
				}
			}
		})
	}
}

func TestBuildEventsTypes(t *testing.T) {
	cfg := Config{Scenario: ScenarioBruteForce, EventsPerType: 3, SourceIP: "198.51.100.8"}
	for _, e := range buildEvents(cfg) {
		if e.EventType != "login_failure" {
			t.Errorf("EventType = %q, want login_failure", e.EventType)
		}
		if e.UserID != "sim_victim" {
			t.Errorf("UserID = %q, want sim_victim", e.UserID)
		}
	}

	cfg.Scenario = ScenarioCardTesting
	for _, e := range buildEvents(cfg) {
		if e.EventType != "payment_failure" {
			t.Errorf("EventType = %q, want payment_failure", e.EventType)
		}
	}
}

func TestValidScenario(t *testing.T) {
	for _, name := range []string{ScenarioSQLI, ScenarioXSS, ScenarioBruteForce, ScenarioCardTesting, ScenarioAll} {
		if !validScenario(name) {
			t.Errorf("validScenario(%q) = false", name)
		}
	}
	for _, name := range []string{"", "ddos", "ALL"} {
		if validScenario(name) {
			t.Errorf("validScenario(%q) = true", name)
		}
	}
}

func TestStartUnknownScenario(t *testing.T) {
	runner := newTestRunner(nil)
	if err := runner.Start(Config{Scenario: "nope"}); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("Start() error = %v, want ErrUnknownScenario", err)
	}
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	runner := newTestRunner(nil)

	// A slow pace keeps the first run active while we try the second.
	if err := runner.Start(Config{Scenario: ScenarioSQLI, EventsPerType: 50, EventsPerSec: 1}); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	defer runner.Stop()

	if err := runner.Start(Config{Scenario: ScenarioXSS}); !errors.Is(err, ErrSimulationRunning) {
		t.Errorf("second Start() error = %v, want ErrSimulationRunning", err)
	}
}

func TestRunBroadcastsLifecycle(t *testing.T) {
	hub := &recordingHub{}
	runner := newTestRunner(hub)

	if err := runner.Start(Config{Scenario: ScenarioSQLI, EventsPerType: 2, EventsPerSec: 1000}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for runner.Running() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runner.Running() {
		t.Fatal("run never completed")
	}

	deadline = time.Now().Add(2 * time.Second)
	var statuses []string
	for time.Now().Before(deadline) {
		statuses = hub.snapshot()
		if len(statuses) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(statuses) < 2 || statuses[0] != "running" || statuses[len(statuses)-1] != "completed" {
		t.Errorf("statuses = %v, want running..completed", statuses)
	}
}

func TestStopCancelsRun(t *testing.T) {
	hub := &recordingHub{}
	runner := newTestRunner(hub)

	if err := runner.Start(Config{Scenario: ScenarioAll, EventsPerType: 100, EventsPerSec: 1}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runner.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for runner.Running() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runner.Running() {
		t.Fatal("run still active after Stop()")
	}

	statuses := hub.snapshot()
	if len(statuses) == 0 || statuses[len(statuses)-1] != "failed" {
		t.Errorf("statuses = %v, want terminal failed status", statuses)
	}
}
