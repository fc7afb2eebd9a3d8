// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import "errors"

// Error taxonomy. Only store-unavailability errors cross the engine
// boundary; scoring failures are absorbed and redirected to the fallback.
var (
	// ErrProfileUnavailable means the profile store is unreachable. The
	// request fails without fallback: "can't read history" is distinct
	// from "can't read anything".
	ErrProfileUnavailable = errors.New("profile store unavailable")

	// ErrCatalogUnavailable means the catalog store is unreachable. Both
	// primary and fallback need the catalog, so the caller receives an
	// empty list with the error recorded in ExecutionInfo.
	ErrCatalogUnavailable = errors.New("catalog store unavailable")

	// ErrPrimaryComputation covers timeout, subprocess failure, malformed
	// worker output, and scoring exceptions. Recovered locally by running
	// the fallback; never user-visible while the fallback produces
	// results.
	ErrPrimaryComputation = errors.New("primary computation failed")
)
