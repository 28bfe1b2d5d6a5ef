// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

package logsink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sentinelhq/sentinel/internal/models"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := New(filepath.Join(t.TempDir(), "events.json"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sink
}

func TestAppendAndReadAll(t *testing.T) {
	sink := newTestSink(t)

	report := models.IncidentReport{
		ID:         "inc-1",
		AttackType: "SQL Injection",
		Severity:   "HIGH",
		IP:         "203.0.113.1",
	}
	if err := sink.Append(report); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := sink.Append(models.IncidentReport{ID: "inc-2"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries := sink.ReadAll()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Report.ID != "inc-1" || entries[1].Report.ID != "inc-2" {
		t.Errorf("entries out of order: %v, %v", entries[0].Report.ID, entries[1].Report.ID)
	}
	for i, entry := range entries {
		if !Verify(entry) {
			t.Errorf("entry %d failed integrity verification", i)
		}
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	sink := newTestSink(t)
	if err := sink.Append(models.IncidentReport{ID: "inc-1", IP: "203.0.113.1"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entry := sink.ReadAll()[0]
	entry.Report.IP = "198.51.100.99"
	if Verify(entry) {
		t.Error("Verify() = true for a tampered entry")
	}
}

func TestCorruptFileReset(t *testing.T) {
	sink := newTestSink(t)
	if err := os.WriteFile(sink.Path(), []byte("{not json"), 0o640); err != nil {
		t.Fatal(err)
	}

	if got := sink.ReadAll(); len(got) != 0 {
		t.Errorf("ReadAll() on corrupt file = %d entries, want 0", len(got))
	}

	// The next append resets the file to a valid single-entry array.
	if err := sink.Append(models.IncidentReport{ID: "fresh"}); err != nil {
		t.Fatalf("Append() after corruption error = %v", err)
	}
	entries := sink.ReadAll()
	if len(entries) != 1 || entries[0].Report.ID != "fresh" {
		t.Errorf("entries after reset = %+v", entries)
	}
}

func TestMissingFileReadsEmpty(t *testing.T) {
	sink := newTestSink(t)
	if got := sink.ReadAll(); len(got) != 0 {
		t.Errorf("ReadAll() on missing file = %d entries, want 0", len(got))
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") succeeded, want error")
	}
}

func TestMaskValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		in   interface{}
		want interface{}
	}{
		{"password masked", "password", "hunter2", "[MASKED]"},
		{"email masked", "email", "user@example.com", "[MASKED]"},
		{"token masked", "token", "abc123", "[MASKED]"},
		{"card keeps last four", "card_number", "4111111111111111", "XXXX-XXXX-XXXX-1111"},
		{"short card untouched", "card_number", "1111", "1111"},
		{"long cvv keeps prefix", "card_token", "tok_1234567890", "tok_...[MASKED]"},
		{"short cvv fully masked", "cvv", "123", "[MASKED]"},
		{"plain field untouched", "username", "alice", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := maskValues(map[string]interface{}{tt.key: tt.in})
			if out[tt.key] != tt.want {
				t.Errorf("maskValues(%q: %v) = %v, want %v", tt.key, tt.in, out[tt.key], tt.want)
			}
		})
	}
}

func TestMaskValuesNested(t *testing.T) {
	in := map[string]interface{}{
		"form": map[string]interface{}{
			"password": "secret",
			"username": "alice",
		},
	}
	out := maskValues(in)

	nested := out["form"].(map[string]interface{})
	if nested["password"] != "[MASKED]" {
		t.Errorf("nested password = %v, want masked", nested["password"])
	}
	if nested["username"] != "alice" {
		t.Errorf("nested username = %v, want untouched", nested["username"])
	}
	// The input map is never mutated.
	if in["form"].(map[string]interface{})["password"] != "secret" {
		t.Error("maskValues mutated its input")
	}
}

func TestMaskReportCoversDataAndEvidence(t *testing.T) {
	report := models.IncidentReport{
		Data:     map[string]interface{}{"password": "secret"},
		Evidence: map[string]interface{}{"api_key": "key-123"},
	}
	masked := maskReport(report)

	if masked.Data["password"] != "[MASKED]" {
		t.Errorf("Data not masked: %v", masked.Data)
	}
	if masked.Evidence["api_key"] != "[MASKED]" {
		t.Errorf("Evidence not masked: %v", masked.Evidence)
	}
}
