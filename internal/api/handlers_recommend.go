// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courserank/courserank/internal/logging"
	"github.com/courserank/courserank/internal/models"
	"github.com/courserank/courserank/internal/recommend"
)

const (
	recommendRequestTimeout = 30 * time.Second
	refreshTimeout          = 10 * time.Minute
)

// recommendParams carries the validated inputs of a recommendation request.
type recommendParams struct {
	UserID string `validate:"required,max=128"`
	Count  int    `validate:"min=0,max=1000"`
}

// handleGetRecommendations serves GET /api/v1/recommendations/{userID}.
//
// Query parameters:
//   - count: number of records to return (defaults to the configured value)
//   - interests: comma-separated interest terms overriding the stored profile
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := recommendParams{
		UserID: chi.URLParam(r, "userID"),
		Count:  getIntParam(r, "count", 0),
	}
	if apiErr := validateRequest(&params); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), recommendRequestTimeout)
	defer cancel()

	resp, err := s.engine.Recommend(ctx, recommend.Request{
		UserID:    params.UserID,
		Interests: parseCommaSeparated(r.URL.Query().Get("interests")),
		Count:     params.Count,
	})
	if err != nil {
		s.respondRecommendError(w, resp, err)
		return
	}

	respondJSON(w, http.StatusOK, models.NewSuccessResponse(resp, time.Since(start), false))
}

// respondRecommendError maps engine sentinels to HTTP statuses. The engine
// still returns a response object on store failures so callers receive the
// execution info alongside the error envelope.
func (s *Server) respondRecommendError(w http.ResponseWriter, resp *recommend.Response, err error) {
	var status int
	var code, message string

	switch {
	case errors.Is(err, recommend.ErrCatalogUnavailable):
		status = http.StatusServiceUnavailable
		code = "CATALOG_UNAVAILABLE"
		message = "Course catalog is currently unavailable"
	case errors.Is(err, recommend.ErrProfileUnavailable):
		status = http.StatusServiceUnavailable
		code = "PROFILE_UNAVAILABLE"
		message = "User profile data is currently unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = "REQUEST_TIMEOUT"
		message = "Recommendation request timed out"
	default:
		status = http.StatusInternalServerError
		code = "INTERNAL_ERROR"
		message = "Failed to compute recommendations"
	}

	logging.Error().Err(err).Str("code", code).Msg("Recommendation request failed")

	envelope := models.NewErrorResponse(code, message, nil)
	if resp != nil {
		envelope.Data = resp
	}
	respondJSON(w, status, envelope)
}

// handleRefresh serves POST /api/v1/recommendations/refresh. The rebuild
// runs in the background; the handler returns immediately with 202.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if err := s.engine.Refresh(ctx); err != nil {
			if errors.Is(err, recommend.ErrRefreshInProgress) {
				logging.Info().Msg("Model refresh already in progress, skipping")
				return
			}
			logging.Error().Err(err).Msg("Background model refresh failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, models.NewSuccessResponse(map[string]string{
		"status": "refresh scheduled",
	}, 0, false))
}

// handleStatus serves GET /api/v1/recommendations/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	respondJSON(w, http.StatusOK, models.NewSuccessResponse(s.engine.Status(), time.Since(start), false))
}
