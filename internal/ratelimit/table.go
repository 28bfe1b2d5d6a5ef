// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package ratelimit implements the adaptive per-IP block table derived
// from risk outcomes. This is distinct from the transport-level request
// rate limiting (go-chi/httprate) applied in the HTTP middleware stack:
// entries here are created by the detection pipeline, not by request
// volume.
package ratelimit

import (
	"sync"
	"time"

	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/metrics"
	"github.com/sentinelhq/sentinel/internal/models"
)

// BlockThreshold is the risk score at or above which an event triggers a
// block, regardless of severity label.
const BlockThreshold = 0.8

// Table maps source IPs to block expiry times. Entries are never swept;
// expiry is checked lazily on every query and stale entries are simply
// inert until overwritten. Safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	expiries map[string]time.Time
	duration time.Duration
	now      func() time.Time
}

// NewTable creates a table with the given block duration.
func NewTable(blockDuration time.Duration) *Table {
	if blockDuration <= 0 {
		blockDuration = 5 * time.Minute
	}
	return &Table{
		expiries: make(map[string]time.Time),
		duration: blockDuration,
		now:      time.Now,
	}
}

// ShouldBlock reports whether ip is currently blocked.
func (t *Table) ShouldBlock(ip string) bool {
	t.mu.RLock()
	expiry, ok := t.expiries[ip]
	t.mu.RUnlock()
	return ok && t.now().Before(expiry)
}

// RecordHighRisk applies a block for ip when the risk outcome qualifies
// (CRITICAL severity or score >= BlockThreshold). The expiry is set to
// now + duration unconditionally, overwriting any existing entry: the
// last high-risk event always wins, even over a longer remaining block.
// Returns true when a block was applied.
func (t *Table) RecordHighRisk(ip string, score models.RiskScore) bool {
	if ip == "" {
		return false
	}
	if score.Severity != "CRITICAL" && score.Score < BlockThreshold {
		return false
	}

	expiry := t.now().Add(t.duration)
	t.mu.Lock()
	t.expiries[ip] = expiry
	t.mu.Unlock()

	metrics.RateLimitBlocks.Inc()
	logging.Warn().
		Str("ip", ip).
		Str("severity", score.Severity).
		Float64("score", score.Score).
		Time("blocked_until", expiry).
		Msg("high-risk source IP rate-limited")
	return true
}

// ActiveCount returns the number of unexpired blocks.
func (t *Table) ActiveCount() int {
	now := t.now()
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, expiry := range t.expiries {
		if now.Before(expiry) {
			count++
		}
	}
	return count
}
