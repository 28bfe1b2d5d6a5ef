// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package monitor runs supervised periodic health checks against
// external targets. Each target has at most one task; deregistration
// waits for the task to fully stop.
package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinelhq/sentinel/internal/models"
)

// degradedLatency is the response time above which an otherwise healthy
// check is reported as degraded.
const degradedLatency = 2 * time.Second

// sslWarningDays is the certificate lifetime below which a check is
// reported as degraded.
const sslWarningDays = 14

// maxBodyBytes bounds how much of the response body is hashed for
// content-change detection.
const maxBodyBytes = 1 << 20 // 1 MB

// Backend performs one health check against a target.
type Backend interface {
	Check(ctx context.Context, config models.MonitorConfig) models.WebsiteHealth
}

// HTTPBackend checks targets over HTTP(S).
type HTTPBackend struct {
	client *http.Client
	now    func() time.Time
}

// NewHTTPBackend creates a backend with the given request timeout.
func NewHTTPBackend(timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPBackend{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Check performs one GET against the target and classifies the result.
//
// Classification:
//   - request error or status >= 500: down
//   - status >= 400, slow response, or an expiring certificate: degraded
//   - otherwise: healthy
func (b *HTTPBackend) Check(ctx context.Context, config models.MonitorConfig) models.WebsiteHealth {
	health := models.WebsiteHealth{
		URL:       config.URL,
		Status:    models.HealthStatusHealthy,
		LastCheck: b.now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.URL, nil)
	if err != nil {
		health.Status = models.HealthStatusDown
		health.Errors = append(health.Errors, fmt.Sprintf("invalid request: %v", err))
		return health
	}
	req.Header.Set("User-Agent", "sentinel-monitor/1.0")

	start := b.now()
	resp, err := b.client.Do(req)
	health.ResponseTimeMS = float64(b.now().Sub(start)) / float64(time.Millisecond)
	if err != nil {
		health.Status = models.HealthStatusDown
		health.Errors = append(health.Errors, fmt.Sprintf("request failed: %v", err))
		return health
	}
	defer resp.Body.Close()

	health.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 500:
		health.Status = models.HealthStatusDown
		health.Errors = append(health.Errors, fmt.Sprintf("server error: %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		health.Status = models.HealthStatusDegraded
		health.Errors = append(health.Errors, fmt.Sprintf("client error: %d", resp.StatusCode))
	}

	if health.Status == models.HealthStatusHealthy && health.ResponseTimeMS > float64(degradedLatency/time.Millisecond) {
		health.Status = models.HealthStatusDegraded
		health.Errors = append(health.Errors, "slow response")
	}

	if config.CheckSSL && resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		expiry := resp.TLS.PeerCertificates[0].NotAfter
		days := int(expiry.Sub(b.now()).Hours() / 24)
		health.SSLDaysRemaining = days
		if days < sslWarningDays {
			if health.Status == models.HealthStatusHealthy {
				health.Status = models.HealthStatusDegraded
			}
			health.Errors = append(health.Errors, fmt.Sprintf("certificate expires in %d days", days))
		}
	}

	if config.CheckContent && health.Status != models.HealthStatusDown {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err == nil {
			sum := sha256.Sum256(body)
			health.ContentHash = hex.EncodeToString(sum[:])
		}
	}

	return health
}
