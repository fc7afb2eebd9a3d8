// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/courserank/config.yaml",
	"/etc/courserank/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces all configuration environment variables.
const envPrefix = "COURSERANK_"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:         "/data/courserank.duckdb",
			MaxMemory:    "1GB",
			Threads:      0, // 0 = runtime.NumCPU()
			SeedMockData: false,
		},
		Recommend: RecommendConfig{
			BlendLambda:          0.7,
			MaxCount:             50,
			DefaultCount:         10,
			PrimaryTimeout:       10 * time.Second,
			CacheTTL:             5 * time.Minute,
			RefreshInterval:      time.Hour,
			RefreshOnStartup:     true,
			Worker:               "inprocess",
			WorkerCommand:        nil,
			FallbackScoreCeiling: 95,
			FallbackScoreStep:    5,
			FallbackScoreFloor:   40,
			Breaker: BreakerConfig{
				MinRequests:  10,
				FailureRatio: 0.6,
				OpenTimeout:  30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// Environment variables use the COURSERANK_ prefix with underscores mapping
// to section separators, e.g. COURSERANK_SERVER_PORT -> server.port,
// COURSERANK_RECOMMEND_BLEND_LAMBDA -> recommend.blend_lambda.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first readable config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envKeyMappings maps env var suffixes (after COURSERANK_) to koanf paths.
// An explicit table avoids ambiguity between section separators and
// underscores inside key names (e.g. RECOMMEND_BLEND_LAMBDA).
var envKeyMappings = map[string]string{
	"server_host":              "server.host",
	"server_port":              "server.port",
	"server_timeout":           "server.timeout",
	"server_cors_origins":      "server.cors_origins",
	"server_rate_limit_reqs":   "server.rate_limit_reqs",
	"server_rate_limit_window": "server.rate_limit_window",

	"database_path":           "database.path",
	"database_max_memory":     "database.max_memory",
	"database_threads":        "database.threads",
	"database_seed_mock_data": "database.seed_mock_data",

	"recommend_blend_lambda":           "recommend.blend_lambda",
	"recommend_max_count":              "recommend.max_count",
	"recommend_default_count":          "recommend.default_count",
	"recommend_primary_timeout":        "recommend.primary_timeout",
	"recommend_cache_ttl":              "recommend.cache_ttl",
	"recommend_refresh_interval":       "recommend.refresh_interval",
	"recommend_refresh_on_startup":     "recommend.refresh_on_startup",
	"recommend_worker":                 "recommend.worker",
	"recommend_worker_command":         "recommend.worker_command",
	"recommend_fallback_score_ceiling": "recommend.fallback_score_ceiling",
	"recommend_fallback_score_step":    "recommend.fallback_score_step",
	"recommend_fallback_score_floor":   "recommend.fallback_score_floor",
	"recommend_breaker_min_requests":   "recommend.breaker.min_requests",
	"recommend_breaker_failure_ratio":  "recommend.breaker.failure_ratio",
	"recommend_breaker_open_timeout":   "recommend.breaker.open_timeout",

	"logging_level":  "logging.level",
	"logging_format": "logging.format",
	"logging_caller": "logging.caller",
}

// envTransformFunc maps a prefixed env var name to its koanf path.
// Unknown variables are dropped (empty return).
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if path, ok := envKeyMappings[key]; ok {
		return path
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"recommend.worker_command",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults).
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
