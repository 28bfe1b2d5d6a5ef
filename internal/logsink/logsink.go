// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package logsink persists incident reports to a JSON file for audit.
// Entries are PII-masked before hashing so the integrity hash covers
// exactly what is on disk.
package logsink

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/sentinelhq/sentinel/internal/logging"
	"github.com/sentinelhq/sentinel/internal/models"
)

// piiFields are masked wholesale wherever they appear in event data.
var piiFields = map[string]bool{
	"password":      true,
	"passwd":        true,
	"email":         true,
	"ssn":           true,
	"token":         true,
	"api_key":       true,
	"secret":        true,
	"authorization": true,
}

// paymentFields keep a short prefix for correlation but hide the rest.
var paymentFields = map[string]bool{
	"cvv":            true,
	"card_token":     true,
	"account_number": true,
	"iban":           true,
}

const maskedValue = "[MASKED]"

// Entry is a single persisted incident with its integrity hash.
type Entry struct {
	Report        models.IncidentReport `json:"report"`
	IntegrityHash string                `json:"integrity_hash"`
}

// Sink appends masked incident entries to a JSON array file. Writes are
// serialized through a mutex; the sink is safe for concurrent use.
type Sink struct {
	path string
	mu   sync.Mutex
}

// New creates a sink writing to path, creating parent directories as
// needed.
func New(path string) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("logsink: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("logsink: create directory %s: %w", dir, err)
		}
	}
	return &Sink{path: path}, nil
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string {
	return s.path
}

// Append masks the report, computes its integrity hash, and appends it
// to the log file. A missing or corrupt log file is reset to an empty
// array rather than failing the write.
func (s *Sink) Append(report models.IncidentReport) error {
	masked := maskReport(report)

	hashBytes, err := json.Marshal(masked)
	if err != nil {
		return fmt.Errorf("logsink: marshal report: %w", err)
	}
	sum := sha256.Sum256(hashBytes)
	entry := Entry{
		Report:        masked,
		IntegrityHash: hex.EncodeToString(sum[:]),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.readAll()
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("logsink: marshal log: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o640); err != nil {
		return fmt.Errorf("logsink: write %s: %w", s.path, err)
	}
	return nil
}

// ReadAll returns every entry currently persisted. A missing or corrupt
// file yields an empty slice.
func (s *Sink) ReadAll() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// readAll must be called with s.mu held.
func (s *Sink) readAll() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", s.path).Msg("failed to read incident log, resetting")
		}
		return []Entry{}
	}
	if len(data) == 0 {
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("incident log corrupted, resetting")
		return []Entry{}
	}
	return entries
}

// Verify recomputes the integrity hash of an entry's report and checks
// it against the stored hash.
func Verify(entry Entry) bool {
	data, err := json.Marshal(entry.Report)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) == entry.IntegrityHash
}

// maskReport returns a copy of the report with sensitive fields in the
// event payload replaced. The original report is never mutated.
func maskReport(report models.IncidentReport) models.IncidentReport {
	report.Data = maskValues(report.Data)
	report.Evidence = maskValues(report.Evidence)
	return report
}

// maskValues masks one map level plus directly nested maps, which is as
// deep as event payloads go.
func maskValues(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(data))
	for key, value := range data {
		switch {
		case piiFields[key]:
			masked[key] = maskedValue
		case key == "card_number":
			masked[key] = maskCardNumber(value)
		case paymentFields[key]:
			masked[key] = maskPaymentValue(value)
		default:
			if nested, ok := value.(map[string]interface{}); ok {
				masked[key] = maskValues(nested)
			} else {
				masked[key] = value
			}
		}
	}
	return masked
}

// maskCardNumber keeps only the last four digits.
func maskCardNumber(value interface{}) interface{} {
	str, ok := value.(string)
	if !ok || len(str) <= 4 {
		return value
	}
	return "XXXX-XXXX-XXXX-" + str[len(str)-4:]
}

// maskPaymentValue keeps a four character prefix of longer values so
// entries remain correlatable without exposing the secret.
func maskPaymentValue(value interface{}) interface{} {
	str, ok := value.(string)
	if !ok || len(str) <= 8 {
		return maskedValue
	}
	return str[:4] + "..." + maskedValue
}
