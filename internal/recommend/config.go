// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"fmt"
	"time"
)

// Config holds engine tuning. All values have working defaults; see
// DefaultConfig.
type Config struct {
	// BlendLambda weights the collaborative signal in the blend:
	// raw = lambda*collab + (1-lambda)*content.
	BlendLambda float64

	// MaxCount caps the requested recommendation count; DefaultCount is
	// used when a request omits the count.
	MaxCount     int
	DefaultCount int

	// PrimaryTimeout is the hard wall-clock budget for the primary
	// worker. On expiry the computation is abandoned and the fallback
	// serves the request.
	PrimaryTimeout time.Duration

	// CacheTTL bounds response cache entries; 0 disables the cache.
	CacheTTL time.Duration

	// Fallback score synthesis constants. Scores start at Ceiling and
	// descend by Step per rank, never below Floor. Purely for consistent
	// relative ordering; these are not learned scores.
	FallbackScoreCeiling int
	FallbackScoreStep    int
	FallbackScoreFloor   int
}

// DefaultConfig returns the documented default engine tuning.
func DefaultConfig() Config {
	return Config{
		BlendLambda:          0.7,
		MaxCount:             50,
		DefaultCount:         10,
		PrimaryTimeout:       10 * time.Second,
		CacheTTL:             5 * time.Minute,
		FallbackScoreCeiling: 95,
		FallbackScoreStep:    5,
		FallbackScoreFloor:   40,
	}
}

// Validate checks the config for usable values.
func (c Config) Validate() error {
	if c.BlendLambda < 0 || c.BlendLambda > 1 {
		return fmt.Errorf("blend lambda must be in [0,1], got %g", c.BlendLambda)
	}
	if c.MaxCount < 1 {
		return fmt.Errorf("max count must be >= 1, got %d", c.MaxCount)
	}
	if c.DefaultCount < 1 || c.DefaultCount > c.MaxCount {
		return fmt.Errorf("default count must be in [1,%d], got %d", c.MaxCount, c.DefaultCount)
	}
	if c.PrimaryTimeout <= 0 {
		return fmt.Errorf("primary timeout must be positive, got %s", c.PrimaryTimeout)
	}
	if c.FallbackScoreFloor < 0 || c.FallbackScoreCeiling > 100 ||
		c.FallbackScoreFloor > c.FallbackScoreCeiling {
		return fmt.Errorf("fallback scores must satisfy 0 <= floor <= ceiling <= 100")
	}
	if c.FallbackScoreStep < 0 {
		return fmt.Errorf("fallback score step must be >= 0, got %d", c.FallbackScoreStep)
	}
	return nil
}
