// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/sentinelhq/sentinel/internal/detection"
	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/models"
	"github.com/sentinelhq/sentinel/internal/monitor"
	"github.com/sentinelhq/sentinel/internal/ratelimit"
	"github.com/sentinelhq/sentinel/internal/simulation"
	"github.com/sentinelhq/sentinel/internal/websocket"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	processor *detection.Processor
	registry  *monitor.Registry
	runner    *simulation.Runner
	hub       *websocket.Hub
	limiter   *ratelimit.Table
	validate  *validator.Validate
	maxBody   int64
	upgrader  gorillaws.Upgrader
}

// NewHandler creates a handler. runner may be nil when simulation is
// disabled.
func NewHandler(
	processor *detection.Processor,
	registry *monitor.Registry,
	runner *simulation.Runner,
	hub *websocket.Hub,
	limiter *ratelimit.Table,
	maxBody int64,
) *Handler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{
		processor: processor,
		registry:  registry,
		runner:    runner,
		hub:       hub,
		limiter:   limiter,
		validate:  validator.New(),
		maxBody:   maxBody,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from arbitrary origins in dev;
			// CORS on the API covers the browser surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SubmitEvent handles POST /api/v1/events. Already-blocked IPs are
// rejected by the BlockGuard middleware before reaching this handler;
// the event that itself triggers a block is answered 403 here, with
// the incident details attached.
func (h *Handler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var event models.Event
	if err := h.decodeBody(w, r, &event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := h.validate.Struct(&event); err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	// The transport owns source attribution; a client-supplied
	// source_ip is overwritten.
	event.SourceIP = clientIP(r)
	if event.UserAgent == "" {
		event.UserAgent = r.UserAgent()
	}

	outcome := h.processor.Submit(r.Context(), &event)

	data := map[string]interface{}{"status": outcome.Status}
	if outcome.Report != nil {
		data["report"] = outcome.Report
	}
	if outcome.Blocked {
		respondJSON(w, http.StatusForbidden, &APIResponse{
			Success: false,
			Data:    data,
			Error:   &APIError{Code: "request_rejected", Message: "source IP blocked due to high-risk activity"},
		})
		return
	}
	respondOK(w, data)
}

// WebSocket handles GET /api/v1/ws, upgrading the connection and
// registering the observer with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// AddMonitor handles POST /api/v1/monitors.
func (h *Handler) AddMonitor(w http.ResponseWriter, r *http.Request) {
	var config models.MonitorConfig
	if err := h.decodeBody(w, r, &config); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := h.validate.Struct(&config); err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	registered, err := h.registry.Start(config)
	switch {
	case errors.Is(err, monitor.ErrAlreadyMonitoring):
		respondError(w, http.StatusConflict, "already_monitoring", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_url", err.Error())
		return
	}

	respondOK(w, map[string]interface{}{
		"url":            registered.URL,
		"check_interval": registered.CheckInterval,
	})
}

// RemoveMonitor handles DELETE /api/v1/monitors?url=...
func (h *Handler) RemoveMonitor(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		respondError(w, http.StatusBadRequest, "missing_url", "url query parameter is required")
		return
	}

	err := h.registry.Stop(url)
	switch {
	case errors.Is(err, monitor.ErrMonitorNotFound):
		respondError(w, http.StatusNotFound, "not_monitored", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "stop_failed", err.Error())
		return
	}

	respondOK(w, map[string]string{"url": url, "status": "stopped"})
}

// ListMonitors handles GET /api/v1/monitors. History is included with
// ?history=true.
func (h *Handler) ListMonitors(w http.ResponseWriter, r *http.Request) {
	includeHistory := r.URL.Query().Get("history") == "true"
	respondOK(w, map[string]interface{}{
		"websites": h.registry.List(includeHistory),
	})
}

// ListIncidents handles GET /api/v1/incidents, newest first. The limit
// defaults to 50 and is capped at the retained history size.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	respondOK(w, map[string]interface{}{
		"incidents": h.processor.History().Recent(limit),
	})
}

// Analytics handles GET /api/v1/analytics, aggregating the incident
// history, monitor incidents, and adaptive rate limiter state.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	summary := h.processor.History().Summarize(10)
	snapshot := h.processor.BreakerSnapshot()

	respondOK(w, map[string]interface{}{
		"attack_type_counts":      summary.ByAttackType,
		"severity_counts":         summary.BySeverity,
		"total_threat_events":     summary.TotalIncidents,
		"top_attacking_ips":       summary.TopSourceIPs,
		"website_incident_counts": h.registry.IncidentCounts(),
		"rate_limited_ip_count":   h.limiter.ActiveCount(),
		"breaker_status":          string(snapshot.Status),
	})
}

// StartSimulation handles POST /api/v1/simulation.
func (h *Handler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusNotFound, "simulation_disabled", "simulation is disabled")
		return
	}

	var cfg simulation.Config
	if err := h.decodeBody(w, r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if cfg.Scenario == "" {
		cfg.Scenario = simulation.ScenarioAll
	}

	err := h.runner.Start(cfg)
	switch {
	case errors.Is(err, simulation.ErrSimulationRunning):
		respondError(w, http.StatusConflict, "simulation_running", err.Error())
		return
	case errors.Is(err, simulation.ErrUnknownScenario):
		respondError(w, http.StatusBadRequest, "unknown_scenario", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "simulation_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, &APIResponse{
		Success: true,
		Data:    map[string]string{"status": "started", "scenario": cfg.Scenario},
	})
}

// StopSimulation handles DELETE /api/v1/simulation.
func (h *Handler) StopSimulation(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		respondError(w, http.StatusNotFound, "simulation_disabled", "simulation is disabled")
		return
	}
	h.runner.Stop()
	respondOK(w, map[string]string{"status": "stopping"})
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.processor.BreakerSnapshot()
	respondOK(w, map[string]interface{}{
		"status":          "ok",
		"breaker_status":  string(snapshot.Status),
		"observers":       h.hub.ObserverCount(),
		"monitored_sites": h.registry.Count(),
	})
}

// decodeBody reads and decodes a JSON body with a size cap. Unknown
// fields are rejected.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
