// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package geo resolves source IPs to approximate locations for incident
// enrichment. Resolution is best-effort; lookups never fail a request.
package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/sentinelhq/sentinel/internal/logging"
)

// Location is an approximate geographic position for an IP.
type Location struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// unknownLocation is returned whenever resolution is unavailable.
var unknownLocation = Location{City: "Unknown", Country: "Unknown"}

// localLocation is returned for loopback and private addresses, which
// never resolve in a public GeoIP database.
var localLocation = Location{City: "Local", Country: "Local"}

// Locator resolves an IP address to a Location. Implementations must be
// safe for concurrent use.
type Locator interface {
	Locate(ctx context.Context, ip string) Location
	Close() error
}

// MaxMindLocator resolves IPs against a MaxMind City mmdb file.
type MaxMindLocator struct {
	reader *geoip2.Reader
}

// NewMaxMindLocator opens the City database at dbPath.
func NewMaxMindLocator(dbPath string) (*MaxMindLocator, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("geo: open city database %s: %w", dbPath, err)
	}
	return &MaxMindLocator{reader: reader}, nil
}

// Locate resolves ip to a location. Addresses that cannot be resolved
// return placeholder locations rather than errors.
func (l *MaxMindLocator) Locate(_ context.Context, ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return unknownLocation
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return localLocation
	}

	record, err := l.reader.City(parsed)
	if err != nil {
		logging.Warn().Err(err).Str("ip", ip).Msg("geolocation lookup failed")
		return unknownLocation
	}

	loc := Location{
		City:    record.City.Names["en"],
		Country: record.Country.Names["en"],
		Lat:     record.Location.Latitude,
		Lon:     record.Location.Longitude,
	}
	if loc.City == "" {
		loc.City = "Unknown"
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}
	return loc
}

// Close releases the underlying database.
func (l *MaxMindLocator) Close() error {
	return l.reader.Close()
}

// NoopLocator is used when no GeoIP database is configured. It still
// distinguishes local addresses so dashboards can group traffic.
type NoopLocator struct{}

func (NoopLocator) Locate(_ context.Context, ip string) Location {
	parsed := net.ParseIP(ip)
	if parsed != nil && (parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified()) {
		return localLocation
	}
	return unknownLocation
}

func (NoopLocator) Close() error { return nil }
