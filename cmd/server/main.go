// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command server runs the Courserank recommendation service: a DuckDB
// backed hybrid recommender exposed over a versioned HTTP API, with a
// supervised background loop that rebuilds the model on a schedule.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courserank/courserank/internal/api"
	"github.com/courserank/courserank/internal/config"
	"github.com/courserank/courserank/internal/database"
	"github.com/courserank/courserank/internal/logging"
	"github.com/courserank/courserank/internal/recommend"
	"github.com/courserank/courserank/internal/recommend/algorithms"
	"github.com/courserank/courserank/internal/recommend/worker"
	"github.com/courserank/courserank/internal/supervisor"
	"github.com/courserank/courserank/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Fatal error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Path).
		Msg("Starting Courserank")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Failed to close database")
		}
	}()

	engine, err := buildEngine(cfg, db)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewServer(&cfg.Server, engine, db).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddModelService(services.NewRefreshService(engine, services.RefreshServiceConfig{
		RefreshOnStartup: cfg.Recommend.RefreshOnStartup,
		RefreshInterval:  cfg.Recommend.RefreshInterval,
	}, recommend.ErrRefreshInProgress, logging.Logger()))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", srv.Addr).Msg("Courserank running")

	if err := <-errCh; err != nil && err != context.Canceled {
		return fmt.Errorf("supervisor: %w", err)
	}

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop cleanly")
		}
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}

// buildEngine assembles the recommendation engine: scorers, the primary
// worker, and the circuit breaker around it.
func buildEngine(cfg *config.Config, db *database.DB) (*recommend.Engine, error) {
	engineCfg := recommend.Config{
		BlendLambda:          cfg.Recommend.BlendLambda,
		MaxCount:             cfg.Recommend.MaxCount,
		DefaultCount:         cfg.Recommend.DefaultCount,
		PrimaryTimeout:       cfg.Recommend.PrimaryTimeout,
		CacheTTL:             cfg.Recommend.CacheTTL,
		FallbackScoreCeiling: cfg.Recommend.FallbackScoreCeiling,
		FallbackScoreStep:    cfg.Recommend.FallbackScoreStep,
		FallbackScoreFloor:   cfg.Recommend.FallbackScoreFloor,
	}
	if err := engineCfg.Validate(); err != nil {
		return nil, fmt.Errorf("recommend config: %w", err)
	}

	breakerCfg := recommend.BreakerConfig{
		MinRequests:  cfg.Recommend.Breaker.MinRequests,
		FailureRatio: cfg.Recommend.Breaker.FailureRatio,
		OpenTimeout:  cfg.Recommend.Breaker.OpenTimeout,
	}

	engine := recommend.NewEngine(engineCfg, breakerCfg, db, logging.Logger())
	engine.RegisterContentScorer(algorithms.NewContentScorer())
	engine.RegisterCollaborativeScorer(algorithms.NewUserCF(algorithms.UserCFOptions{}))

	if cfg.Recommend.Worker == "subprocess" {
		sub, err := worker.NewSubprocess(cfg.Recommend.WorkerCommand, logging.Logger())
		if err != nil {
			return nil, fmt.Errorf("subprocess worker: %w", err)
		}
		engine.SetWorker(sub)
		logging.Info().Strs("command", cfg.Recommend.WorkerCommand).Msg("Using subprocess scoring worker")
	}

	return engine, nil
}
