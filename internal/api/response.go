// Sentinel - Security Event Detection and Adaptive Response
// Copyright 2026 Sentinel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentinelhq/sentinel

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sentinelhq/sentinel/internal/logging"
)

// APIResponse is the standardized response wrapper for all endpoints.
type APIResponse struct {
	// Success indicates whether the request was successful
	Success bool `json:"success"`

	// Data contains the response payload (null on error)
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success)
	Error *APIError `json:"error,omitempty"`

	// Meta contains optional metadata about the response
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`
}

// APIMeta contains optional response metadata.
type APIMeta struct {
	Timestamp time.Time `json:"timestamp"`
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	if response.Meta == nil {
		response.Meta = &APIMeta{Timestamp: time.Now().UTC()}
	}

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondOK sends a successful response wrapping data.
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, &APIResponse{Success: true, Data: data})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}
