// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package detection

import (
	"sort"
	"sync"

	"github.com/sentinelhq/sentinel/internal/geo"
	"github.com/sentinelhq/sentinel/internal/models"
)

// History is a bounded in-memory record of recent incidents, serving the
// incidents listing and analytics aggregation. The oldest incident is
// evicted once the cap is reached.
type History struct {
	mu      sync.RWMutex
	reports []models.IncidentReport
	maxLen  int
}

// NewHistory creates a history retaining at most maxLen incidents.
func NewHistory(maxLen int) *History {
	if maxLen <= 0 {
		maxLen = 500
	}
	return &History{
		reports: make([]models.IncidentReport, 0, maxLen),
		maxLen:  maxLen,
	}
}

// Add appends a report, evicting the oldest on overflow.
func (h *History) Add(report models.IncidentReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.reports) >= h.maxLen {
		h.reports = h.reports[1:]
	}
	h.reports = append(h.reports, report)
}

// ApplyLocation fills the geolocation fields of the report with the
// given ID and marks it as an update. It returns the enriched report,
// or false when the report has already been evicted.
func (h *History) ApplyLocation(id string, loc geo.Location) (models.IncidentReport, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.reports {
		if h.reports[i].ID != id {
			continue
		}
		h.reports[i].City = loc.City
		h.reports[i].Country = loc.Country
		h.reports[i].Lat = loc.Lat
		h.reports[i].Lon = loc.Lon
		h.reports[i].Update = true
		return h.reports[i], true
	}
	return models.IncidentReport{}, false
}

// Recent returns up to n incidents, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []models.IncidentReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.reports) {
		n = len(h.reports)
	}
	out := make([]models.IncidentReport, 0, n)
	for i := len(h.reports) - 1; i >= len(h.reports)-n; i-- {
		out = append(out, h.reports[i])
	}
	return out
}

// Len returns the number of retained incidents.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.reports)
}

// Summary aggregates retained incidents for the analytics endpoint.
type Summary struct {
	TotalIncidents int            `json:"total_incidents"`
	BySeverity     map[string]int `json:"by_severity"`
	ByAttackType   map[string]int `json:"by_attack_type"`
	TopSourceIPs   []IPCount      `json:"top_source_ips"`
}

// IPCount is one source IP with its incident count.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// Summarize computes aggregate counts over the retained incidents. At
// most topN source IPs are returned, ordered by descending count with
// ties broken lexicographically.
func (h *History) Summarize(topN int) Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	summary := Summary{
		TotalIncidents: len(h.reports),
		BySeverity:     make(map[string]int),
		ByAttackType:   make(map[string]int),
	}

	ipCounts := make(map[string]int)
	for _, r := range h.reports {
		summary.BySeverity[r.Severity]++
		summary.ByAttackType[r.AttackType]++
		if r.IP != "" {
			ipCounts[r.IP]++
		}
	}

	summary.TopSourceIPs = topIPs(ipCounts, topN)
	return summary
}

func topIPs(counts map[string]int, n int) []IPCount {
	out := make([]IPCount, 0, len(counts))
	for ip, count := range counts {
		out = append(out, IPCount{IP: ip, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].IP < out[j].IP
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
