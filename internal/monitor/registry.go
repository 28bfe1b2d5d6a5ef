// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package monitor

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/metrics"
	"github.com/sentinelhq/sentinel/internal/models"
)

var (
	// ErrAlreadyMonitoring reports a duplicate registration for a target.
	ErrAlreadyMonitoring = errors.New("monitor: target is already monitored")

	// ErrMonitorNotFound reports a stop request for an unknown target.
	ErrMonitorNotFound = errors.New("monitor: target is not monitored")
)

// incidentLimit bounds the retained monitor incident list.
const incidentLimit = 250

// Monitor incident types.
const (
	IncidentDown           = "DOWN"
	IncidentDegraded       = "DEGRADED"
	IncidentContentChanged = "CONTENT_CHANGED"
)

// Incident is one recorded availability problem on a monitored target.
type Incident struct {
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceHost is the slice of the supervision tree the registry needs:
// dynamic task addition and awaited removal.
type ServiceHost interface {
	AddMonitorService(svc suture.Service) suture.ServiceToken
	RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error
}

// Broadcaster fans monitor health envelopes out to observers.
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

// AlertSink receives monitor incidents on the persistence and
// broadcast path shared with detected attacks.
type AlertSink interface {
	ReportExternal(report models.IncidentReport)
}

// Registry owns the set of monitored targets. Each target has exactly
// one supervised task; Stop and StopAll block until the removed tasks
// have terminated.
type Registry struct {
	host        ServiceHost
	backend     Backend
	hub         Broadcaster
	alerts      AlertSink
	stopTimeout time.Duration

	mu        sync.Mutex
	entries   map[string]*entry
	incidents []Incident
	lastState map[string]string
	lastHash  map[string]string
}

type entry struct {
	task  *Task
	token suture.ServiceToken
}

// NewRegistry creates a registry scheduling tasks on host. alerts may
// be nil; incidents are then kept only in the registry's own list.
func NewRegistry(host ServiceHost, backend Backend, hub Broadcaster, alerts AlertSink, stopTimeout time.Duration) *Registry {
	if stopTimeout <= 0 {
		stopTimeout = 10 * time.Second
	}
	return &Registry{
		host:        host,
		backend:     backend,
		hub:         hub,
		alerts:      alerts,
		stopTimeout: stopTimeout,
		entries:     make(map[string]*entry),
		lastState:   make(map[string]string),
		lastHash:    make(map[string]string),
	}
}

// Start registers a target and schedules its task. The URL is
// normalized and the check interval clamped first; the resulting
// config is the registered state and is returned for the caller to
// echo back. Duplicate registrations fail with ErrAlreadyMonitoring
// and leave the existing task untouched.
func (r *Registry) Start(config models.MonitorConfig) (models.MonitorConfig, error) {
	normalized, err := NormalizeURL(config.URL)
	if err != nil {
		return config, err
	}
	config.URL = normalized
	config.CheckInterval = int(config.Interval().Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[normalized]; exists {
		return config, fmt.Errorf("%w: %s", ErrAlreadyMonitoring, normalized)
	}

	task := NewTask(config, r.backend, r.handleResult)
	token := r.host.AddMonitorService(task)
	r.entries[normalized] = &entry{task: task, token: token}
	metrics.MonitorsActive.Set(float64(len(r.entries)))

	logging.Info().
		Str("url", normalized).
		Dur("interval", config.Interval()).
		Msg("monitor registered")
	return config, nil
}

// Stop deregisters a target and waits for its task to terminate. After
// Stop returns no further check for that target will run.
func (r *Registry) Stop(rawURL string) error {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}

	r.mu.Lock()
	e, exists := r.entries[normalized]
	if exists {
		delete(r.entries, normalized)
		delete(r.lastState, normalized)
		delete(r.lastHash, normalized)
	}
	metrics.MonitorsActive.Set(float64(len(r.entries)))
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrMonitorNotFound, normalized)
	}

	if err := r.host.RemoveAndWait(e.token, r.stopTimeout); err != nil {
		return fmt.Errorf("monitor: stop %s: %w", normalized, err)
	}
	logging.Info().Str("url", normalized).Msg("monitor stopped")
	return nil
}

// StopAll deregisters every target, waiting for each task in turn. Used
// during shutdown; errors are aggregated.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	removed := make(map[string]*entry, len(r.entries))
	for url, e := range r.entries {
		removed[url] = e
	}
	r.entries = make(map[string]*entry)
	r.lastState = make(map[string]string)
	r.lastHash = make(map[string]string)
	metrics.MonitorsActive.Set(0)
	r.mu.Unlock()

	var errs []error
	for url, e := range removed {
		if err := r.host.RemoveAndWait(e.token, r.stopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", url, err))
		}
	}
	return errors.Join(errs...)
}

// Status is the externally visible state of one monitored target.
type Status struct {
	Config  models.MonitorConfig   `json:"config"`
	Latest  *models.WebsiteHealth  `json:"latest,omitempty"`
	History []models.WebsiteHealth `json:"history,omitempty"`
}

// List returns the status of every monitored target, sorted by URL.
// History is included when includeHistory is set.
func (r *Registry) List(includeHistory bool) []Status {
	r.mu.Lock()
	tasks := make([]*Task, 0, len(r.entries))
	for _, e := range r.entries {
		tasks = append(tasks, e.task)
	}
	r.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Config().URL < tasks[j].Config().URL
	})

	out := make([]Status, 0, len(tasks))
	for _, task := range tasks {
		status := Status{Config: task.Config()}
		if latest, ok := task.Latest(); ok {
			status.Latest = &latest
		}
		if includeHistory {
			status.History = task.History()
		}
		out = append(out, status)
	}
	return out
}

// Count returns the number of monitored targets.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Incidents returns a copy of the retained incidents, oldest first.
func (r *Registry) Incidents() []Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Incident, len(r.incidents))
	copy(out, r.incidents)
	return out
}

// IncidentCounts aggregates retained incidents by type for analytics.
func (r *Registry) IncidentCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, inc := range r.incidents {
		counts[inc.Type]++
	}
	return counts
}

// handleResult broadcasts every check result and records state
// transitions and content changes as incidents. New incidents are
// raised on the alert path after the registry lock is released.
func (r *Registry) handleResult(health models.WebsiteHealth) {
	if r.hub != nil {
		r.hub.Broadcast("monitor_health", health)
	}

	r.mu.Lock()

	prev := r.lastState[health.URL]
	r.lastState[health.URL] = health.Status

	var raised []Incident
	switch health.Status {
	case models.HealthStatusDown:
		if prev != models.HealthStatusDown {
			raised = append(raised, r.recordIncident(Incident{
				URL:       health.URL,
				Type:      IncidentDown,
				Detail:    strings.Join(health.Errors, "; "),
				Timestamp: health.LastCheck,
			}))
		}
	case models.HealthStatusDegraded:
		if prev != models.HealthStatusDegraded && prev != models.HealthStatusDown {
			raised = append(raised, r.recordIncident(Incident{
				URL:       health.URL,
				Type:      IncidentDegraded,
				Detail:    strings.Join(health.Errors, "; "),
				Timestamp: health.LastCheck,
			}))
		}
	}

	if health.ContentHash != "" {
		if prevHash, ok := r.lastHash[health.URL]; ok && prevHash != health.ContentHash {
			raised = append(raised, r.recordIncident(Incident{
				URL:       health.URL,
				Type:      IncidentContentChanged,
				Timestamp: health.LastCheck,
			}))
		}
		r.lastHash[health.URL] = health.ContentHash
	}

	r.mu.Unlock()

	if r.alerts != nil {
		for _, incident := range raised {
			r.alerts.ReportExternal(incidentReport(incident))
		}
	}
}

// recordIncident must be called with r.mu held.
func (r *Registry) recordIncident(incident Incident) Incident {
	if len(r.incidents) >= incidentLimit {
		r.incidents = r.incidents[1:]
	}
	r.incidents = append(r.incidents, incident)
	logging.Warn().
		Str("url", incident.URL).
		Str("type", incident.Type).
		Str("detail", incident.Detail).
		Msg("monitor incident recorded")
	return incident
}

// incidentReport translates a monitor incident into the incident
// record shape used by the attack path. A DOWN target and a content
// change rank HIGH, a degraded one MEDIUM.
func incidentReport(incident Incident) models.IncidentReport {
	attackType := "Website Degraded"
	severity := "MEDIUM"
	score := 0.5
	switch incident.Type {
	case IncidentDown:
		attackType = "Website Down"
		severity = "HIGH"
		score = 0.75
	case IncidentContentChanged:
		attackType = "Content Changed"
		severity = "HIGH"
		score = 0.75
	}

	return models.IncidentReport{
		AttackType: attackType,
		Severity:   severity,
		Descr:      incident.Detail,
		RiskScore:  score,
		Factors:    []string{fmt.Sprintf("%s (%s)", attackType, severity)},
		Timestamp:  incident.Timestamp,
		EventType:  "monitor_check",
		Data:       map[string]interface{}{"url": incident.URL, "incident_type": incident.Type},
	}
}

// NormalizeURL validates a target URL and fills in a missing scheme.
// Local addresses (localhost, loopback, private-looking IPv4) default
// to http; everything else defaults to https.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("monitor: empty URL")
	}

	if !strings.Contains(raw, "://") {
		if isLocalHost(raw) {
			raw = "http://" + raw
		} else {
			raw = "https://" + raw
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("monitor: invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("monitor: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("monitor: URL %q has no host", raw)
	}
	return parsed.String(), nil
}

// isLocalHost reports whether a scheme-less target refers to a local or
// numeric-IP address.
func isLocalHost(raw string) bool {
	hostport := raw
	if i := strings.IndexAny(hostport, "/?#"); i >= 0 {
		hostport = hostport[:i]
	}
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}
