// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/courserank/courserank/internal/metrics"
)

// BreakerConfig tunes the circuit breaker guarding the primary worker.
// An open circuit routes requests straight to the fallback without
// spending the primary timeout budget on a path that keeps failing.
type BreakerConfig struct {
	// MinRequests is the minimum sample size before the breaker may trip.
	MinRequests uint32

	// FailureRatio opens the circuit at or above this failure rate.
	FailureRatio float64

	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the documented breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:  10,
		FailureRatio: 0.6,
		OpenTimeout:  30 * time.Second,
	}
}

const breakerName = "recommend-primary"

// newPrimaryBreaker builds the circuit breaker around the primary worker.
// The breaker uses real time for its interval and timeout bookkeeping;
// tests exercise the worker directly rather than waiting out the breaker.
func newPrimaryBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[[]Recommendation] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	return gobreaker.NewCircuitBreaker[[]Recommendation](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio
			if shouldTrip {
				logger.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)

			logger.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
