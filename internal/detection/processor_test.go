// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sentinelhq/sentinel/internal/geo"
	"github.com/sentinelhq/sentinel/internal/metrics"
	"github.com/sentinelhq/sentinel/internal/models"
	"github.com/sentinelhq/sentinel/internal/ratelimit"
)

type captureHub struct {
	mu       sync.Mutex
	messages []capturedMessage
}

type capturedMessage struct {
	messageType string
	data        interface{}
}

func (h *captureHub) Broadcast(messageType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, capturedMessage{messageType, data})
}

func (h *captureHub) byType(messageType string) []capturedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []capturedMessage
	for _, m := range h.messages {
		if m.messageType == messageType {
			out = append(out, m)
		}
	}
	return out
}

type captureSink struct {
	mu      sync.Mutex
	reports []models.IncidentReport
	err     error
	done    chan struct{}
}

func newCaptureSink(err error) *captureSink {
	return &captureSink{err: err, done: make(chan struct{}, 8)}
}

func (s *captureSink) Append(report models.IncidentReport) error {
	s.mu.Lock()
	s.reports = append(s.reports, report)
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

type fixedLocator struct {
	loc  geo.Location
	done chan struct{}
}

func newFixedLocator(loc geo.Location) *fixedLocator {
	return &fixedLocator{loc: loc, done: make(chan struct{}, 8)}
}

func (l *fixedLocator) Locate(_ context.Context, _ string) geo.Location {
	defer func() { l.done <- struct{}{} }()
	return l.loc
}

func (l *fixedLocator) Close() error { return nil }

func newTestProcessor(t *testing.T, stages []Stage, hub *captureHub, sink *captureSink, locator geo.Locator) *Processor {
	t.Helper()
	deps := ProcessorDeps{
		Pipeline: NewPipeline(stages, nil, nil, nil),
		Limiter:  ratelimit.NewTable(5 * time.Minute),
		Requests: metrics.NewWindow(100, time.Hour),
		Errors:   metrics.NewWindow(100, time.Hour),
		History:  NewHistory(100),
		Locator:  locator,
	}
	if hub != nil {
		deps.Hub = hub
	}
	if sink != nil {
		deps.Sink = sink
	}
	return NewProcessor(deps)
}

func TestProcessorNoThreat(t *testing.T) {
	hub := &captureHub{}
	p := newTestProcessor(t, []Stage{&fakeStage{name: "quiet"}}, hub, nil, nil)

	outcome := p.Submit(context.Background(), &models.Event{EventType: "page_view", SourceIP: "10.0.0.1"})

	if outcome.Status != StatusNoThreat {
		t.Errorf("Status = %q, want %q", outcome.Status, StatusNoThreat)
	}
	if outcome.Report != nil {
		t.Errorf("Report = %+v, want nil", outcome.Report)
	}
	if len(hub.byType("attack_detected")) != 0 {
		t.Error("no_threat outcome still broadcast an attack")
	}
	if p.History().Len() != 0 {
		t.Errorf("history len = %d, want 0", p.History().Len())
	}
}

func TestProcessorThreatDetected(t *testing.T) {
	hub := &captureHub{}
	sink := newCaptureSink(nil)
	stage := &fakeStage{name: "sqli", result: &Detection{AttackType: "SQL Injection", Severity: SeverityHigh, Description: "pattern match"}}
	p := newTestProcessor(t, []Stage{stage}, hub, sink, nil)

	outcome := p.Submit(context.Background(), &models.Event{
		EventType: "form_submit",
		SourceIP:  "203.0.113.9",
		UserID:    "u1",
	})

	if outcome.Status != StatusThreatDetected {
		t.Fatalf("Status = %q, want %q", outcome.Status, StatusThreatDetected)
	}
	if outcome.Blocked {
		t.Error("single HIGH detection (score 0.75) must not block")
	}
	report := outcome.Report
	if report == nil {
		t.Fatal("Report is nil")
	}
	if report.ID == "" {
		t.Error("report ID not assigned")
	}
	if report.AttackType != "SQL Injection" || report.Severity != "HIGH" {
		t.Errorf("report = %+v", report)
	}
	if report.RiskScore != 0.75 {
		t.Errorf("RiskScore = %v, want 0.75", report.RiskScore)
	}
	if report.IP != "203.0.113.9" || report.UserID != "u1" {
		t.Errorf("request context not carried: %+v", report)
	}

	broadcasts := hub.byType("attack_detected")
	if len(broadcasts) != 1 {
		t.Fatalf("attack_detected broadcasts = %d, want 1", len(broadcasts))
	}
	if p.History().Len() != 1 {
		t.Errorf("history len = %d, want 1", p.History().Len())
	}

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("report never persisted")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.reports) != 1 || sink.reports[0].ID != report.ID {
		t.Errorf("persisted reports = %+v", sink.reports)
	}
}

func TestProcessorBlocksCritical(t *testing.T) {
	stage := &fakeStage{name: "cards", result: &Detection{AttackType: "Card Testing", Severity: SeverityCritical}}
	p := newTestProcessor(t, []Stage{stage}, &captureHub{}, nil, nil)

	outcome := p.Submit(context.Background(), &models.Event{EventType: "payment_failure", SourceIP: "198.51.100.4"})

	if !outcome.Blocked {
		t.Fatal("CRITICAL detection did not block the source IP")
	}
	if outcome.Status != StatusRejected {
		t.Errorf("Status = %q, want %q", outcome.Status, StatusRejected)
	}
	if outcome.Report == nil {
		t.Fatal("rejected outcome must still carry the report")
	}
	if !p.ShouldBlock("198.51.100.4") {
		t.Error("ShouldBlock() = false after a CRITICAL block")
	}
	if p.ShouldBlock("198.51.100.5") {
		t.Error("unrelated IP reported as blocked")
	}
}

func TestProcessorGeolocationRebroadcast(t *testing.T) {
	hub := &captureHub{}
	locator := newFixedLocator(geo.Location{City: "Lisbon", Country: "Portugal", Lat: 38.7, Lon: -9.1})
	stage := &fakeStage{name: "sqli", result: &Detection{AttackType: "SQL Injection", Severity: SeverityHigh}}
	p := newTestProcessor(t, []Stage{stage}, hub, nil, locator)

	outcome := p.Submit(context.Background(), &models.Event{EventType: "form_submit", SourceIP: "203.0.113.10"})
	if outcome.Report == nil {
		t.Fatal("Report is nil")
	}

	select {
	case <-locator.done:
	case <-time.After(2 * time.Second):
		t.Fatal("locator never called")
	}

	// The re-broadcast happens right after Locate returns; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	var updates []capturedMessage
	for time.Now().Before(deadline) {
		updates = hub.byType("attack_updated")
		if len(updates) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(updates) != 1 {
		t.Fatalf("attack_updated broadcasts = %d, want 1", len(updates))
	}

	updated, ok := updates[0].data.(models.IncidentReport)
	if !ok {
		t.Fatalf("update payload type = %T", updates[0].data)
	}
	if updated.ID != outcome.Report.ID {
		t.Errorf("update ID = %q, want %q", updated.ID, outcome.Report.ID)
	}
	if !updated.Update {
		t.Error("Update flag not set on re-broadcast")
	}
	if updated.City != "Lisbon" || updated.Country != "Portugal" {
		t.Errorf("geolocation missing from update: %+v", updated)
	}
}

func TestProcessorPersistFailureRecorded(t *testing.T) {
	sink := newCaptureSink(context.DeadlineExceeded)
	stage := &fakeStage{name: "sqli", result: &Detection{AttackType: "SQL Injection", Severity: SeverityHigh}}
	errWindow := metrics.NewWindow(10, time.Hour)
	p := NewProcessor(ProcessorDeps{
		Pipeline: NewPipeline([]Stage{stage}, nil, nil, nil),
		Limiter:  ratelimit.NewTable(time.Minute),
		Sink:     sink,
		Errors:   errWindow,
		History:  NewHistory(10),
	})

	outcome := p.Submit(context.Background(), &models.Event{EventType: "form_submit", SourceIP: "203.0.113.11"})
	if outcome.Status != StatusThreatDetected {
		t.Fatalf("Status = %q", outcome.Status)
	}

	// One sample from the detected threat itself, a second from the
	// failed persist.
	if errWindow.Len() != 1 {
		t.Fatalf("error window len after submit = %d, want 1", errWindow.Len())
	}

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never called")
	}

	deadline := time.Now().Add(2 * time.Second)
	for errWindow.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if errWindow.Len() != 2 {
		t.Errorf("error window len = %d, want 2", errWindow.Len())
	}
}

func TestProcessorThreatRecordsErrorSample(t *testing.T) {
	stage := &fakeStage{name: "sqli", result: &Detection{AttackType: "SQL Injection", Severity: SeverityHigh}}
	errWindow := metrics.NewWindow(10, time.Hour)
	p := NewProcessor(ProcessorDeps{
		Pipeline: NewPipeline([]Stage{stage}, nil, nil, nil),
		Limiter:  ratelimit.NewTable(time.Minute),
		Errors:   errWindow,
		History:  NewHistory(10),
	})

	p.Submit(context.Background(), &models.Event{EventType: "form_submit", SourceIP: "203.0.113.12"})
	if errWindow.Len() != 1 {
		t.Errorf("error window len = %d, want 1 after a detected threat", errWindow.Len())
	}

	p.Submit(context.Background(), &models.Event{EventType: "form_submit", SourceIP: "203.0.113.12"})
	if got := errWindow.Len(); got != 2 {
		t.Errorf("error window len = %d, want 2 after a second threat", got)
	}
}

func TestProcessorReportExternal(t *testing.T) {
	hub := &captureHub{}
	sink := newCaptureSink(nil)
	p := newTestProcessor(t, nil, hub, sink, nil)

	p.ReportExternal(models.IncidentReport{
		AttackType: "Website Down",
		Severity:   "HIGH",
		RiskScore:  0.75,
		EventType:  "monitor_check",
	})

	broadcasts := hub.byType("attack_detected")
	if len(broadcasts) != 1 {
		t.Fatalf("attack_detected broadcasts = %d, want 1", len(broadcasts))
	}
	report, ok := broadcasts[0].data.(models.IncidentReport)
	if !ok {
		t.Fatalf("broadcast payload type = %T", broadcasts[0].data)
	}
	if report.ID == "" {
		t.Error("report ID not assigned")
	}
	if report.Timestamp.IsZero() {
		t.Error("report timestamp not assigned")
	}
	if p.History().Len() != 1 {
		t.Errorf("history len = %d, want 1", p.History().Len())
	}

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("report never persisted")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.reports) != 1 || sink.reports[0].AttackType != "Website Down" {
		t.Errorf("persisted reports = %+v", sink.reports)
	}
}
