// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/sentinelhq/sentinel/internal/models"
)

// fakeHost records scheduled services without running them.
type fakeHost struct {
	mu      sync.Mutex
	added   []suture.Service
	removed int
}

func newFakeHost() *fakeHost {
	return &fakeHost{}
}

func (h *fakeHost) AddMonitorService(svc suture.Service) suture.ServiceToken {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.added = append(h.added, svc)
	return suture.ServiceToken{}
}

func (h *fakeHost) RemoveAndWait(_ suture.ServiceToken, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed++
	return nil
}

func (h *fakeHost) addedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.added)
}

func (h *fakeHost) removedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removed
}

// fixedBackend returns a canned result per URL.
type fixedBackend struct {
	mu      sync.Mutex
	results map[string]models.WebsiteHealth
}

func (b *fixedBackend) Check(_ context.Context, config models.MonitorConfig) models.WebsiteHealth {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h, ok := b.results[config.URL]; ok {
		return h
	}
	return models.WebsiteHealth{URL: config.URL, Status: models.HealthStatusHealthy}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare domain gets https", "example.com", "https://example.com", false},
		{"localhost gets http", "localhost:8080", "http://localhost:8080", false},
		{"loopback ip gets http", "127.0.0.1:3000/health", "http://127.0.0.1:3000/health", false},
		{"private ip gets http", "192.168.1.10", "http://192.168.1.10", false},
		{"public ip gets https", "203.0.113.5", "https://203.0.113.5", false},
		{"explicit scheme kept", "http://example.com/status", "http://example.com/status", false},
		{"whitespace trimmed", "  example.com  ", "https://example.com", false},
		{"empty", "", "", true},
		{"unsupported scheme", "ftp://example.com", "", true},
		{"scheme without host", "https://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRegistryDuplicateStart(t *testing.T) {
	r := NewRegistry(newFakeHost(), &fixedBackend{}, nil, nil, time.Second)

	registered, err := r.Start(models.MonitorConfig{URL: "example.com", CheckInterval: 5})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if registered.URL != "https://example.com" {
		t.Errorf("normalized url = %q", registered.URL)
	}
	if registered.CheckInterval != models.MinCheckInterval {
		t.Errorf("CheckInterval = %d, want clamped to %d", registered.CheckInterval, models.MinCheckInterval)
	}

	// Same target under a different spelling is still a duplicate.
	if _, err := r.Start(models.MonitorConfig{URL: "https://example.com"}); !errors.Is(err, ErrAlreadyMonitoring) {
		t.Errorf("duplicate Start() error = %v, want ErrAlreadyMonitoring", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistryStopUnknown(t *testing.T) {
	r := NewRegistry(newFakeHost(), &fixedBackend{}, nil, nil, time.Second)
	if err := r.Stop("example.com"); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("Stop() error = %v, want ErrMonitorNotFound", err)
	}
}

func TestRegistryStopRemovesTask(t *testing.T) {
	host := newFakeHost()
	r := NewRegistry(host, &fixedBackend{}, nil, nil, time.Second)

	if _, err := r.Start(models.MonitorConfig{URL: "example.com"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Stop("example.com"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if host.removedCount() != 1 {
		t.Errorf("removed = %d, want 1", host.removedCount())
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}

	// The slot is free for re-registration.
	if _, err := r.Start(models.MonitorConfig{URL: "example.com"}); err != nil {
		t.Errorf("re-Start() error = %v", err)
	}
}

func TestRegistryStopAll(t *testing.T) {
	host := newFakeHost()
	r := NewRegistry(host, &fixedBackend{}, nil, nil, time.Second)

	for _, url := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		if _, err := r.Start(models.MonitorConfig{URL: url}); err != nil {
			t.Fatalf("Start(%s) error = %v", url, err)
		}
	}

	if err := r.StopAll(); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if host.removedCount() != 3 {
		t.Errorf("removed = %d, want 3", host.removedCount())
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(newFakeHost(), &fixedBackend{}, nil, nil, time.Second)
	for _, url := range []string{"c.example.com", "a.example.com", "b.example.com"} {
		if _, err := r.Start(models.MonitorConfig{URL: url}); err != nil {
			t.Fatalf("Start(%s) error = %v", url, err)
		}
	}

	list := r.List(false)
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}
	for i, want := range []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"} {
		if list[i].Config.URL != want {
			t.Errorf("List()[%d].URL = %q, want %q", i, list[i].Config.URL, want)
		}
	}
}

func TestRegistryIncidentTransitions(t *testing.T) {
	hub := &captureBroadcaster{}
	r := NewRegistry(newFakeHost(), &fixedBackend{}, hub, nil, time.Second)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	down := models.WebsiteHealth{URL: "https://x.example.com", Status: models.HealthStatusDown, LastCheck: ts, Errors: []string{"server error: 503"}}
	healthy := models.WebsiteHealth{URL: "https://x.example.com", Status: models.HealthStatusHealthy, LastCheck: ts}

	r.handleResult(healthy)
	r.handleResult(down)
	r.handleResult(down) // still down, no second incident
	r.handleResult(healthy)
	r.handleResult(down) // new outage, new incident

	incidents := r.Incidents()
	if len(incidents) != 2 {
		t.Fatalf("len(incidents) = %d, want 2", len(incidents))
	}
	for _, inc := range incidents {
		if inc.Type != IncidentDown {
			t.Errorf("incident type = %q, want DOWN", inc.Type)
		}
	}
	if incidents[0].Detail != "server error: 503" {
		t.Errorf("Detail = %q", incidents[0].Detail)
	}
	if hub.count("monitor_health") != 5 {
		t.Errorf("monitor_health broadcasts = %d, want 5", hub.count("monitor_health"))
	}
}

func TestRegistryDegradedNotDoubleCounted(t *testing.T) {
	r := NewRegistry(newFakeHost(), &fixedBackend{}, nil, nil, time.Second)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	degraded := models.WebsiteHealth{URL: "https://x.example.com", Status: models.HealthStatusDegraded, LastCheck: ts}
	down := models.WebsiteHealth{URL: "https://x.example.com", Status: models.HealthStatusDown, LastCheck: ts}

	r.handleResult(down)
	r.handleResult(degraded) // recovering from down, not a new degradation

	counts := r.IncidentCounts()
	if counts[IncidentDown] != 1 {
		t.Errorf("DOWN count = %d, want 1", counts[IncidentDown])
	}
	if counts[IncidentDegraded] != 0 {
		t.Errorf("DEGRADED count = %d, want 0", counts[IncidentDegraded])
	}
}

func TestRegistryContentChangeIncident(t *testing.T) {
	r := NewRegistry(newFakeHost(), &fixedBackend{}, nil, nil, time.Second)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	first := models.WebsiteHealth{URL: "https://x.example.com", Status: models.HealthStatusHealthy, LastCheck: ts, ContentHash: "aaa"}
	same := first
	changed := first
	changed.ContentHash = "bbb"

	r.handleResult(first)
	r.handleResult(same)
	r.handleResult(changed)

	counts := r.IncidentCounts()
	if counts[IncidentContentChanged] != 1 {
		t.Errorf("CONTENT_CHANGED count = %d, want 1", counts[IncidentContentChanged])
	}
}

func TestRegistryIncidentsReachAlertPath(t *testing.T) {
	alerts := &captureAlertSink{}
	r := NewRegistry(newFakeHost(), &fixedBackend{}, nil, alerts, time.Second)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	down := models.WebsiteHealth{URL: "https://x.example.com", Status: models.HealthStatusDown, LastCheck: ts, Errors: []string{"server error: 503"}}
	healthy := models.WebsiteHealth{URL: "https://x.example.com", Status: models.HealthStatusHealthy, LastCheck: ts, ContentHash: "aaa"}
	defaced := healthy
	defaced.ContentHash = "bbb"

	r.handleResult(down)
	r.handleResult(down) // still down, no second alert
	r.handleResult(healthy)
	r.handleResult(defaced)

	reports := alerts.all()
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}

	outage := reports[0]
	if outage.AttackType != "Website Down" || outage.Severity != "HIGH" {
		t.Errorf("outage report = %+v", outage)
	}
	if outage.Descr != "server error: 503" {
		t.Errorf("Descr = %q", outage.Descr)
	}
	if outage.EventType != "monitor_check" {
		t.Errorf("EventType = %q", outage.EventType)
	}
	if outage.Data["url"] != "https://x.example.com" {
		t.Errorf("Data = %+v", outage.Data)
	}
	if !outage.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", outage.Timestamp, ts)
	}

	if reports[1].AttackType != "Content Changed" || reports[1].Severity != "HIGH" {
		t.Errorf("content report = %+v", reports[1])
	}
}

type captureAlertSink struct {
	mu      sync.Mutex
	reports []models.IncidentReport
}

func (s *captureAlertSink) ReportExternal(report models.IncidentReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
}

func (s *captureAlertSink) all() []models.IncidentReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.IncidentReport, len(s.reports))
	copy(out, s.reports)
	return out
}

type captureBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *captureBroadcaster) Broadcast(messageType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, messageType)
}

func (b *captureBroadcaster) count(messageType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.messages {
		if m == messageType {
			n++
		}
	}
	return n
}
