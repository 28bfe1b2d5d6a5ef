// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package breaker wraps sony/gobreaker with the status reporting the rest
// of Sentinel needs. A breaker guards exactly one unreliable dependency
// (in practice the expensive anomaly detector stage): once the failure
// threshold is reached within the trailing window the circuit opens, calls
// are skipped for the cool-down period, then a single half-open probe
// decides whether to close again.
package breaker

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/metrics"
)

// Status is the operator-facing state of a breaker. DEGRADED is not a real
// state-machine state: it is a read-only projection of "closed but with
// recent failures", used only for display.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDegraded Status = "DEGRADED"
	StatusOpen     Status = "OPEN"
)

// Config holds breaker tuning parameters.
type Config struct {
	// Name identifies the breaker in logs and metrics.
	Name string

	// FailureThreshold is the number of failures within Window that trips
	// the circuit. Default: 5.
	FailureThreshold uint32

	// Window is the trailing interval over which failures are counted
	// while the circuit is closed. Default: 1m.
	Window time.Duration

	// CoolDown is how long the circuit stays open before the half-open
	// probe. Default: 30s.
	CoolDown time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		Window:           time.Minute,
		CoolDown:         30 * time.Second,
	}
}

// Snapshot is a point-in-time view of breaker state for status reporting.
type Snapshot struct {
	Status          Status    `json:"status"`
	IsOpen          bool      `json:"is_open"`
	FailureCount    uint32    `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// Breaker guards calls returning a T. Skipped and failed calls surface
// ErrSkipped / the underlying error; state transitions are logged and
// exported as metrics.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string

	mu          sync.Mutex
	lastErr     string
	lastFailure time.Time
}

// ErrSkipped reports that the call was not attempted because the circuit
// is open (or the half-open probe slot is taken).
var ErrSkipped = errors.New("breaker: call skipped, circuit open")

// New creates a breaker with the given configuration.
func New[T any](cfg Config) *Breaker[T] {
	if cfg.Name == "" {
		cfg.Name = "breaker"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}

	b := &Breaker[T]{name: cfg.Name}
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(0)

	b.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // single half-open probe
		Interval:    cfg.Window,
		Timeout:     cfg.CoolDown,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= cfg.FailureThreshold
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit breaker state transition")
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return b
}

// Execute runs fn through the breaker. When the circuit is open the call
// is skipped entirely and ErrSkipped is returned; the caller treats that
// the same as a failed call: no result, no retry.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.BreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return zero, ErrSkipped
		}
		metrics.BreakerRequests.WithLabelValues(b.name, "failure").Inc()
		b.mu.Lock()
		b.lastErr = err.Error()
		b.lastFailure = time.Now()
		b.mu.Unlock()
		return zero, err
	}

	metrics.BreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// Snapshot returns the current reporting state.
func (b *Breaker[T]) Snapshot() Snapshot {
	state := b.cb.State()
	counts := b.cb.Counts()

	b.mu.Lock()
	lastErr := b.lastErr
	lastFailure := b.lastFailure
	b.mu.Unlock()

	snap := Snapshot{
		IsOpen:          state == gobreaker.StateOpen,
		FailureCount:    counts.TotalFailures,
		LastFailureTime: lastFailure,
		LastError:       lastErr,
	}

	switch {
	case snap.IsOpen:
		snap.Status = StatusOpen
	case counts.TotalFailures > 0:
		snap.Status = StatusDegraded
	default:
		snap.Status = StatusActive
	}
	return snap
}

// Status returns the display status only.
func (b *Breaker[T]) Status() Status {
	return b.Snapshot().Status
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
