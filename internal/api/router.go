// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api exposes the recommendation engine over HTTP. Routes are
// versioned under /api/v1 and responses use a common JSON envelope.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courserank/courserank/internal/config"
	"github.com/courserank/courserank/internal/models"
	"github.com/courserank/courserank/internal/recommend"
)

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the recommendation engine.
type Server struct {
	cfg    *config.ServerConfig
	engine *recommend.Engine
	db     Pinger
	router chi.Router
}

// NewServer builds the HTTP surface. db may be nil, in which case the
// health endpoint skips the storage check.
func NewServer(cfg *config.ServerConfig, engine *recommend.Engine, db Pinger) *Server {
	s := &Server{cfg: cfg, engine: engine, db: db}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))
	r.Use(requestLogging)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/recommendations", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimitReqs, s.cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Get("/status", s.handleStatus)
		r.Get("/{userID}", s.handleGetRecommendations)
		r.Post("/refresh", s.handleRefresh)
	})

	return r
}

// handleHealth reports service and storage health. Storage failures
// degrade the status but still return 200 so orchestrators keep the
// process alive while the engine serves fallback results.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			health["status"] = "degraded"
			health["database"] = "unreachable"
		} else {
			health["database"] = "ok"
		}
	}

	respondJSON(w, http.StatusOK, models.NewSuccessResponse(health, 0, false))
}
