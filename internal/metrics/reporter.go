// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package metrics

import (
	"context"
	"time"

	"github.com/sentinelhq/sentinel/internal/logging"
)

// Snapshot is the periodic metrics envelope broadcast to observers.
type Snapshot struct {
	RequestsPerWindow   int       `json:"requests_per_window"`
	ErrorsPerWindow     int       `json:"errors_per_window"`
	ActiveObserverCount int       `json:"active_observer_count"`
	ActiveBlocks        int       `json:"active_blocks"`
	BreakerStatus       string    `json:"breaker_status"`
	Timestamp           time.Time `json:"timestamp"`
}

// Reporter prunes the sliding windows and broadcasts a metrics snapshot
// on a fixed cadence. Collaborators are injected as functions so the
// reporter stays decoupled from the pipeline and transport packages.
type Reporter struct {
	Requests      *Window
	Errors        *Window
	ObserverCount func() int
	ActiveBlocks  func() int
	BreakerStatus func() string
	Broadcast     func(messageType string, data interface{})
	Interval      time.Duration
}

// Serve runs the reporting loop until the context is canceled. Designed
// for suture supervision.
func (r *Reporter) Serve(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", interval).Msg("metrics reporter started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("metrics reporter stopped")
			return ctx.Err()
		case now := <-ticker.C:
			r.report(now)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Reporter) String() string {
	return "metrics-reporter"
}

func (r *Reporter) report(now time.Time) {
	snapshot := Snapshot{
		RequestsPerWindow: r.Requests.Prune(now),
		ErrorsPerWindow:   r.Errors.Prune(now),
		Timestamp:         now.UTC(),
	}
	if r.ObserverCount != nil {
		snapshot.ActiveObserverCount = r.ObserverCount()
	}
	if r.ActiveBlocks != nil {
		snapshot.ActiveBlocks = r.ActiveBlocks()
	}
	if r.BreakerStatus != nil {
		snapshot.BreakerStatus = r.BreakerStatus()
	}
	if r.Broadcast != nil {
		r.Broadcast("metrics_update", snapshot)
	}
}
