// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config defines the typed application configuration and its
// layered loading (defaults, optional YAML file, environment variables).
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `koanf:"host"`

	// Port is the listen port. Default: 8080
	Port int `koanf:"port"`

	// Timeout bounds request handling end to end. Default: 30s
	Timeout time.Duration `koanf:"timeout"`

	// CORSOrigins lists allowed CORS origins. Default: ["*"]
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs is the per-IP request budget per RateLimitWindow.
	// Default: 100
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limit window. Default: 1m
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path. Default: /data/courserank.duckdb
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage. Default: 1GB
	MaxMemory string `koanf:"max_memory"`

	// Threads sets DuckDB thread count. 0 = runtime.NumCPU(). Default: 0
	Threads int `koanf:"threads"`

	// SeedMockData populates a small demo catalog on first start.
	// Default: false
	SeedMockData bool `koanf:"seed_mock_data"`
}

// RecommendConfig holds the recommendation engine settings.
type RecommendConfig struct {
	// BlendLambda weights the collaborative score against the content
	// score: raw = lambda*collab + (1-lambda)*content. Default: 0.7
	BlendLambda float64 `koanf:"blend_lambda"`

	// MaxCount caps the requested recommendation count. Default: 50
	MaxCount int `koanf:"max_count"`

	// DefaultCount is used when the caller omits count. Default: 10
	DefaultCount int `koanf:"default_count"`

	// PrimaryTimeout bounds the primary scoring path; on expiry the
	// fallback serves the request. Default: 10s
	PrimaryTimeout time.Duration `koanf:"primary_timeout"`

	// CacheTTL is the response cache lifetime. 0 disables caching.
	// Default: 5m
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// RefreshInterval is the periodic model/vocabulary rebuild interval.
	// Default: 1h
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// RefreshOnStartup rebuilds the model immediately at startup.
	// Default: true
	RefreshOnStartup bool `koanf:"refresh_on_startup"`

	// Worker selects the primary scorer implementation: "inprocess" or
	// "subprocess". Default: inprocess
	Worker string `koanf:"worker"`

	// WorkerCommand is the external scorer command for the subprocess
	// worker (argv, first element is the binary).
	WorkerCommand []string `koanf:"worker_command"`

	// Fallback score synthesis: scores start at Ceiling and descend by
	// Step per position, never below Floor.
	FallbackScoreCeiling int `koanf:"fallback_score_ceiling"` // Default: 95
	FallbackScoreStep    int `koanf:"fallback_score_step"`    // Default: 5
	FallbackScoreFloor   int `koanf:"fallback_score_floor"`   // Default: 40

	// Breaker tunes the circuit breaker guarding the primary path.
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the primary-path circuit breaker.
type BreakerConfig struct {
	// MinRequests is the minimum sample before the breaker may trip.
	// Default: 10
	MinRequests uint32 `koanf:"min_requests"`

	// FailureRatio opens the circuit at or above this failure rate.
	// Default: 0.6
	FailureRatio float64 `koanf:"failure_ratio"`

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30s
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error. Default: info
	Level string `koanf:"level"`

	// Format: json or console. Default: json
	Format string `koanf:"format"`

	// Caller includes file:line in log output. Default: false
	Caller bool `koanf:"caller"`
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	return c.Recommend.Validate()
}

// Validate checks the recommendation engine settings.
func (c *RecommendConfig) Validate() error {
	if c.BlendLambda < 0 || c.BlendLambda > 1 {
		return fmt.Errorf("recommend.blend_lambda must be in [0,1], got %g", c.BlendLambda)
	}
	if c.MaxCount < 1 {
		return fmt.Errorf("recommend.max_count must be >= 1, got %d", c.MaxCount)
	}
	if c.DefaultCount < 1 || c.DefaultCount > c.MaxCount {
		return fmt.Errorf("recommend.default_count must be in [1,%d], got %d", c.MaxCount, c.DefaultCount)
	}
	if c.PrimaryTimeout <= 0 {
		return fmt.Errorf("recommend.primary_timeout must be positive, got %s", c.PrimaryTimeout)
	}
	switch c.Worker {
	case "inprocess", "subprocess":
	default:
		return fmt.Errorf("recommend.worker must be inprocess or subprocess, got %q", c.Worker)
	}
	if c.Worker == "subprocess" && len(c.WorkerCommand) == 0 {
		return fmt.Errorf("recommend.worker_command required for subprocess worker")
	}
	if c.FallbackScoreFloor < 0 || c.FallbackScoreCeiling > 100 ||
		c.FallbackScoreFloor > c.FallbackScoreCeiling {
		return fmt.Errorf("recommend fallback scores must satisfy 0 <= floor <= ceiling <= 100")
	}
	if c.FallbackScoreStep < 0 {
		return fmt.Errorf("recommend.fallback_score_step must be >= 0, got %d", c.FallbackScoreStep)
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("recommend.breaker.failure_ratio must be in (0,1], got %g", c.Breaker.FailureRatio)
	}
	return nil
}
