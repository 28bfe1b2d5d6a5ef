// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelhq/sentinel/internal/breaker"
	"github.com/sentinelhq/sentinel/internal/geo"
	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/metrics"
	"github.com/sentinelhq/sentinel/internal/models"
	"github.com/sentinelhq/sentinel/internal/ratelimit"
)

// Submission outcomes.
const (
	StatusNoThreat       = "no_threat"
	StatusThreatDetected = "threat_detected"
	StatusRejected       = "rejected"
)

// Broadcaster fans an envelope out to all connected observers.
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

// Persister durably records an incident report.
type Persister interface {
	Append(report models.IncidentReport) error
}

// Outcome is the result of processing one submitted event.
type Outcome struct {
	Status  string
	Blocked bool
	Report  *models.IncidentReport
}

// Processor orchestrates the full path for a submitted event: pipeline
// evaluation, risk scoring, adaptive rate limiting, broadcast, audit
// persistence, and asynchronous geolocation enrichment.
type Processor struct {
	pipeline *Pipeline
	limiter  *ratelimit.Table
	hub      Broadcaster
	sink     Persister
	locator  geo.Locator
	requests *metrics.Window
	errors   *metrics.Window
	history  *History

	geoTimeout time.Duration
	now        func() time.Time
}

// ProcessorDeps collects the processor's collaborators.
type ProcessorDeps struct {
	Pipeline *Pipeline
	Limiter  *ratelimit.Table
	Hub      Broadcaster
	Sink     Persister
	Locator  geo.Locator
	Requests *metrics.Window
	Errors   *metrics.Window
	History  *History
}

// NewProcessor wires a processor from its dependencies. Hub, Sink, and
// Locator may be nil; the corresponding step is then skipped.
func NewProcessor(deps ProcessorDeps) *Processor {
	return &Processor{
		pipeline:   deps.Pipeline,
		limiter:    deps.Limiter,
		hub:        deps.Hub,
		sink:       deps.Sink,
		locator:    deps.Locator,
		requests:   deps.Requests,
		errors:     deps.Errors,
		history:    deps.History,
		geoTimeout: 5 * time.Second,
		now:        time.Now,
	}
}

// Submit processes one event. The returned outcome reflects only the
// synchronous part of the path; audit persistence and geolocation
// enrichment complete in the background and their failures never affect
// the submitting client.
func (p *Processor) Submit(ctx context.Context, event *models.Event) Outcome {
	if p.requests != nil {
		p.requests.RecordAt(p.now())
	}

	detections := p.pipeline.Evaluate(ctx, event)
	if len(detections) == 0 {
		metrics.EventsProcessed.WithLabelValues(StatusNoThreat).Inc()
		return Outcome{Status: StatusNoThreat}
	}
	if p.errors != nil {
		p.errors.RecordAt(p.now())
	}

	score, err := Score(detections)
	if err != nil {
		// Unreachable with a non-empty set; treated as no threat.
		logging.Error().Err(err).Msg("risk scoring failed")
		metrics.EventsProcessed.WithLabelValues(StatusNoThreat).Inc()
		return Outcome{Status: StatusNoThreat}
	}

	report := p.buildReport(event, detections, score)
	blocked := p.limiter.RecordHighRisk(event.SourceIP, score)

	if p.history != nil {
		p.history.Add(report)
	}
	if p.hub != nil {
		p.hub.Broadcast("attack_detected", report)
	}
	if p.sink != nil {
		go p.persist(report)
	}
	if p.locator != nil {
		go p.enrichLocation(report.ID, report.IP)
	}

	status := StatusThreatDetected
	if blocked {
		status = StatusRejected
	}

	metrics.EventsProcessed.WithLabelValues(status).Inc()
	logging.Info().
		Str("incident_id", report.ID).
		Str("attack_type", report.AttackType).
		Str("severity", report.Severity).
		Float64("score", report.RiskScore).
		Str("ip", report.IP).
		Bool("blocked", blocked).
		Msg("threat detected")

	return Outcome{Status: status, Blocked: blocked, Report: &report}
}

// ReportExternal records an incident raised outside the event pipeline,
// such as a failing monitor check, on the same persistence and
// broadcast path as detected attacks.
func (p *Processor) ReportExternal(report models.IncidentReport) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = p.now().UTC()
	}
	if p.errors != nil {
		p.errors.RecordAt(p.now())
	}
	if p.history != nil {
		p.history.Add(report)
	}
	if p.hub != nil {
		p.hub.Broadcast("attack_detected", report)
	}
	if p.sink != nil {
		go p.persist(report)
	}

	logging.Warn().
		Str("incident_id", report.ID).
		Str("attack_type", report.AttackType).
		Str("severity", report.Severity).
		Msg("external incident recorded")
}

// ShouldBlock reports whether the source IP is currently rate-limited.
func (p *Processor) ShouldBlock(ip string) bool {
	return p.limiter.ShouldBlock(ip)
}

// History exposes the retained incident record for read endpoints.
func (p *Processor) History() *History {
	return p.history
}

// BreakerSnapshot exposes the expensive stage's breaker state.
func (p *Processor) BreakerSnapshot() breaker.Snapshot {
	return p.pipeline.BreakerSnapshot()
}

func (p *Processor) buildReport(event *models.Event, detections []Detection, score models.RiskScore) models.IncidentReport {
	primary := Primary(detections)
	return models.IncidentReport{
		ID:         uuid.NewString(),
		AttackType: primary.AttackType,
		Severity:   score.Severity,
		Descr:      primary.Description,
		Evidence:   primary.Evidence,
		RiskScore:  score.Score,
		Factors:    score.Factors,
		Timestamp:  p.now().UTC(),
		IP:         event.SourceIP,
		EventType:  event.EventType,
		UserID:     event.UserID,
		Data:       event.Data,
	}
}

func (p *Processor) persist(report models.IncidentReport) {
	if err := p.sink.Append(report); err != nil {
		if p.errors != nil {
			p.errors.RecordAt(p.now())
		}
		logging.Error().Err(err).Str("incident_id", report.ID).Msg("failed to persist incident")
	}
}

// enrichLocation resolves the source IP and re-broadcasts the enriched
// report marked as an update. Runs detached from the request context so
// a fast client response never cancels it.
func (p *Processor) enrichLocation(id, ip string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.geoTimeout)
	defer cancel()

	loc := p.locator.Locate(ctx, ip)

	if p.history == nil {
		return
	}
	updated, ok := p.history.ApplyLocation(id, loc)
	if !ok {
		logging.Debug().Str("incident_id", id).Msg("incident evicted before geolocation completed")
		return
	}
	if p.hub != nil {
		p.hub.Broadcast("attack_updated", updated)
	}
}
