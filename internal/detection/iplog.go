// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"sync"
	"time"
)

// ipLog tracks per-IP occurrence timestamps for the stateful detectors
// (brute force, card testing). Each IP keeps a bounded, ascending sequence;
// the oldest entry is evicted on overflow. Safe for concurrent use.
type ipLog struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	maxLen  int
}

func newIPLog(maxLen int) *ipLog {
	if maxLen <= 0 {
		maxLen = 20
	}
	return &ipLog{
		entries: make(map[string][]time.Time),
		maxLen:  maxLen,
	}
}

// record appends now for ip and returns how many entries fall within the
// trailing window, the new one included.
func (l *ipLog) record(ip string, now time.Time, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.entries[ip]
	if len(seq) >= l.maxLen {
		seq = seq[1:]
	}
	seq = append(seq, now)
	l.entries[ip] = seq

	cutoff := now.Add(-window)
	count := 0
	for i := len(seq) - 1; i >= 0 && !seq[i].Before(cutoff); i-- {
		count++
	}
	return count
}
