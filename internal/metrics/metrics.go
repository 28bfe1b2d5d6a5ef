// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package metrics provides Prometheus instrumentation and the sliding-window
// counters behind the periodic status snapshot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_events_processed_total",
			Help: "Total number of events run through the detection pipeline",
		},
		[]string{"status"}, // no_threat, threat_detected, rejected
	)

	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_detections_total",
			Help: "Total number of detections by stage and severity",
		},
		[]string{"stage", "severity"},
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_stage_errors_total",
			Help: "Total number of detector stage failures (isolated, non-fatal)",
		},
		[]string{"stage"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_pipeline_duration_seconds",
			Help:    "End-to-end detection pipeline duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// Circuit breaker metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	BreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"breaker", "outcome"}, // success, failure, rejected
	)

	// Rate limiter metrics
	RateLimitBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_rate_limit_blocks_total",
			Help: "Total number of high-risk rate-limit blocks applied",
		},
	)

	// Broadcast metrics
	ObserversConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_observers_connected",
			Help: "Current number of connected WebSocket observers",
		},
	)

	BroadcastsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_broadcasts_dropped_total",
			Help: "Broadcast messages dropped because the hub queue was full",
		},
		[]string{"type"},
	)

	// Monitor metrics
	MonitorChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_monitor_checks_total",
			Help: "Total number of monitor health checks by outcome",
		},
		[]string{"status"}, // healthy, degraded, down, error
	)

	MonitorsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_monitors_active",
			Help: "Current number of registered monitor tasks",
		},
	)
)
