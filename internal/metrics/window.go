// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package metrics

import (
	"sync"
	"time"
)

// Window is a bounded, age-pruned sequence of timestamps backing one
// sliding-window counter. Appends keep the sequence sorted ascending;
// when the hard cap is reached the oldest entry is evicted regardless of
// age. Prune removes entries older than the retention window from the
// front. Safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	entries []time.Time
	maxLen  int
	maxAge  time.Duration
}

// NewWindow creates a window with the given hard cap and retention age.
func NewWindow(maxLen int, maxAge time.Duration) *Window {
	if maxLen <= 0 {
		maxLen = 500
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		entries: make([]time.Time, 0, maxLen),
		maxLen:  maxLen,
		maxAge:  maxAge,
	}
}

// Record appends the current time to the window.
func (w *Window) Record() {
	w.RecordAt(time.Now())
}

// RecordAt appends t to the window, evicting the oldest entry on overflow.
func (w *Window) RecordAt(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) >= w.maxLen {
		// Oldest-evicted on overflow regardless of age.
		w.entries = w.entries[1:]
	}
	w.entries = append(w.entries, t)
}

// Prune drops entries older than the retention window and returns the
// remaining count.
func (w *Window) Prune(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.maxAge)
	i := 0
	for i < len(w.entries) && w.entries[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
	return len(w.entries)
}

// Len returns the current number of retained entries.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
