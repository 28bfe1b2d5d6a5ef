// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package models defines the shared data types exchanged between the
// detection pipeline, the monitor registry, and the HTTP/WebSocket layers.
package models

import (
	"time"
)

// Event is a security-relevant event submitted by a client.
// It is immutable once received; the pipeline never mutates it.
type Event struct {
	EventType string                 `json:"event_type" validate:"required"`
	UserID    string                 `json:"user_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	SourceIP  string                 `json:"source_ip,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Headers   map[string]string      `json:"headers,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// RiskScore is a normalized [0,1] severity aggregate derived from one or
// more detections, with human-readable contributing factors.
type RiskScore struct {
	Score    float64  `json:"score"`
	Severity string   `json:"severity"`
	Factors  []string `json:"factors"`
}

// IncidentReport merges the primary detection with the risk score and
// request context. The ID is assigned at creation time so that the
// asynchronous geolocation update can be correlated to the original
// broadcast without relying on (IP, timestamp) equality.
type IncidentReport struct {
	ID         string                 `json:"id"`
	AttackType string                 `json:"attack_type"`
	Severity   string                 `json:"severity"`
	Descr      string                 `json:"description"`
	Evidence   map[string]interface{} `json:"evidence,omitempty"`
	RiskScore  float64                `json:"risk_score"`
	Factors    []string               `json:"risk_factors"`
	Timestamp  time.Time              `json:"timestamp"`
	IP         string                 `json:"ip"`
	EventType  string                 `json:"event_type"`
	UserID     string                 `json:"user_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`

	// Geolocation fields, filled by the asynchronous enrichment step.
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`

	// Update marks a re-broadcast of an already-delivered report.
	Update bool `json:"update,omitempty"`
}

// MonitorConfig configures one monitored external target.
type MonitorConfig struct {
	URL           string `json:"url" validate:"required"`
	CheckInterval int    `json:"check_interval"` // seconds, clamped to >= MinCheckInterval
	CheckSSL      bool   `json:"check_ssl"`
	CheckContent  bool   `json:"check_content"`
}

// MinCheckInterval is the lower bound for a monitor cadence, in seconds.
// Registration clamps shorter intervals up to this value.
const MinCheckInterval = 30

// Interval returns the effective, clamped check cadence.
func (c MonitorConfig) Interval() time.Duration {
	secs := c.CheckInterval
	if secs < MinCheckInterval {
		secs = MinCheckInterval
	}
	return time.Duration(secs) * time.Second
}

// WebsiteHealth is one health-check result for a monitored target.
type WebsiteHealth struct {
	URL              string    `json:"url"`
	Status           string    `json:"status"` // healthy, degraded, down
	ResponseTimeMS   float64   `json:"response_time_ms"`
	LastCheck        time.Time `json:"last_check"`
	StatusCode       int       `json:"status_code,omitempty"`
	SSLDaysRemaining int       `json:"ssl_days_remaining,omitempty"`
	ContentHash      string    `json:"content_hash,omitempty"`
	Errors           []string  `json:"errors,omitempty"`
}

// Health status values for WebsiteHealth.Status.
const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
)
