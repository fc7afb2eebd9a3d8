// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package services provides suture service wrappers for long-running
// application components.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RecommendEngine is the slice of the engine the refresh loop needs.
// Declared here to avoid a circular import with the recommend package.
type RecommendEngine interface {
	// Refresh rebuilds the vocabulary snapshot and retrains scorers.
	Refresh(ctx context.Context) error

	// PurgeExpiredCache drops expired response cache entries.
	PurgeExpiredCache()
}

// RefreshServiceConfig holds configuration for the refresh loop.
type RefreshServiceConfig struct {
	// RefreshOnStartup triggers a rebuild when the service starts.
	RefreshOnStartup bool

	// RefreshInterval is how often to rebuild models. Default: 1h
	RefreshInterval time.Duration
}

// RefreshService periodically rebuilds the recommendation model and
// sweeps the response cache.
type RefreshService struct {
	engine RecommendEngine
	config RefreshServiceConfig
	logger zerolog.Logger
	name   string

	// skippedErr matches the engine's refresh-in-progress sentinel
	// without importing the recommend package.
	skippedErr error
}

// NewRefreshService creates a refresh service. skippedErr, when non-nil,
// identifies the error the engine returns for an already-running refresh
// so the loop can log it at a lower severity.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefreshService(engine RecommendEngine, cfg RefreshServiceConfig, skippedErr error, logger zerolog.Logger) *RefreshService {
	return &RefreshService{
		engine:     engine,
		config:     cfg,
		logger:     logger.With().Str("service", "model-refresh").Logger(),
		name:       "model-refresh",
		skippedErr: skippedErr,
	}
}

// Serve implements suture.Service. It runs the refresh loop until the
// context is canceled.
func (s *RefreshService) Serve(ctx context.Context) error {
	if s.config.RefreshInterval <= 0 {
		s.config.RefreshInterval = time.Hour
	}

	s.logger.Info().
		Bool("refresh_on_startup", s.config.RefreshOnStartup).
		Dur("refresh_interval", s.config.RefreshInterval).
		Msg("model refresh service starting")

	if s.config.RefreshOnStartup {
		if err := s.refresh(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup refresh failed, will retry on schedule")
		}
	}

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	// Cache sweeps run more often than full refreshes.
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("model refresh service shutting down")
			return ctx.Err()

		case <-sweep.C:
			s.engine.PurgeExpiredCache()

		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}

func (s *RefreshService) refresh(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	start := time.Now()
	err := s.engine.Refresh(refreshCtx)
	if err != nil {
		if s.skippedErr != nil && errors.Is(err, s.skippedErr) {
			s.logger.Debug().Msg("refresh already in progress")
			return nil
		}
		return err
	}

	s.logger.Info().Dur("duration", time.Since(start)).Msg("model refresh complete")
	return nil
}

// String returns the service name for supervisor logging.
func (s *RefreshService) String() string {
	return s.name
}
