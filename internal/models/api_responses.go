// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models holds the shared API response types used by every HTTP
// endpoint. Keeping them in a leaf package lets api, recommend, and database
// reference them without import cycles.
package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"recommendations": [...], "method": "hybrid", "execution_info": {...}},
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z", "query_time_ms": 12}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
//
// Fields:
//   - Timestamp: server time when the response was generated (RFC3339)
//   - QueryTimeMS: end-to-end handler time in milliseconds (0 if cached)
//   - Cached: whether the response was served from the engine cache
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Common error codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - PROFILE_UNAVAILABLE: user profile data could not be loaded
//   - CATALOG_UNAVAILABLE: course catalog could not be loaded
//   - RATE_LIMIT_EXCEEDED: too many requests
//   - INTERNAL_ERROR: unexpected server failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewSuccessResponse builds a success envelope with the current timestamp.
func NewSuccessResponse(data interface{}, queryTime time.Duration, cached bool) *APIResponse {
	return &APIResponse{
		Status: "success",
		Data:   data,
		Metadata: Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: queryTime.Milliseconds(),
			Cached:      cached,
		},
	}
}

// NewErrorResponse builds an error envelope with the current timestamp.
func NewErrorResponse(code, message string, details map[string]interface{}) *APIResponse {
	return &APIResponse{
		Status: "error",
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
