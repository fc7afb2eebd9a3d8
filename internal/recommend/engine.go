// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/courserank/courserank/internal/metrics"
)

// Engine orchestrates the recommendation flow: fetch data through the
// provider, run the primary worker under a timeout and circuit breaker,
// post-process into ranked records, and fall back deterministically when
// the primary path cannot serve.
//
// Requests are independent and stateless; the only shared state is the
// read-only published snapshot and the trained scorer models, both swapped
// atomically on refresh. Concurrent requests need no mutual exclusion.
type Engine struct {
	cfg      Config
	logger   zerolog.Logger
	provider DataProvider

	snapshots *SnapshotStore
	fallback  *FallbackGenerator
	cache     *responseCache
	breaker   *gobreaker.CircuitBreaker[[]Recommendation]

	scorerMu sync.RWMutex
	content  Scorer
	collab   Scorer

	workerMu sync.RWMutex
	worker   Worker

	// refreshMu serializes model refreshes; overlapping refreshes are
	// skipped, not queued.
	refreshMu sync.Mutex

	requests         atomic.Int64
	primarySuccesses atomic.Int64
	fallbacks        atomic.Int64
}

// ErrRefreshInProgress is returned when a refresh is requested while one
// is already running.
var ErrRefreshInProgress = errors.New("model refresh already in progress")

// NewEngine creates an engine with the in-process worker as the default
// primary scorer. The config must already be validated.
func NewEngine(cfg Config, breakerCfg BreakerConfig, provider DataProvider, logger zerolog.Logger) *Engine {
	e := &Engine{
		cfg:       cfg,
		logger:    logger.With().Str("component", "recommend").Logger(),
		provider:  provider,
		snapshots: &SnapshotStore{},
		fallback:  NewFallbackGenerator(cfg),
		cache:     newResponseCache(cfg.CacheTTL),
	}
	e.breaker = newPrimaryBreaker(breakerCfg, e.logger)
	e.worker = &inProcessWorker{engine: e}
	return e
}

// RegisterContentScorer installs the content-similarity scorer.
func (e *Engine) RegisterContentScorer(s Scorer) {
	e.scorerMu.Lock()
	defer e.scorerMu.Unlock()
	e.content = s
}

// RegisterCollaborativeScorer installs the collaborative scorer.
func (e *Engine) RegisterCollaborativeScorer(s Scorer) {
	e.scorerMu.Lock()
	defer e.scorerMu.Unlock()
	e.collab = s
}

// SetWorker swaps the primary worker implementation (in-process,
// subprocess, or anything else satisfying the Worker contract).
func (e *Engine) SetWorker(w Worker) {
	e.workerMu.Lock()
	defer e.workerMu.Unlock()
	e.worker = w
}

func (e *Engine) getWorker() Worker {
	e.workerMu.RLock()
	defer e.workerMu.RUnlock()
	return e.worker
}

func (e *Engine) getScorers() (content, collab Scorer) {
	e.scorerMu.RLock()
	defer e.scorerMu.RUnlock()
	return e.content, e.collab
}

// Recommend serves one recommendation request. The returned response is
// never nil: store-unavailability errors come back alongside an empty
// response whose ExecutionInfo carries the error text, and scoring
// failures are absorbed into a fallback response with a nil error.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	e.requests.Add(1)
	req = e.prepareRequest(req)

	if resp, ok := e.cache.get(req); ok {
		metrics.RecommendationCacheHits.Inc()
		return resp, nil
	}
	metrics.RecommendationCacheMisses.Inc()

	catalog, err := e.provider.ListCourses(ctx)
	if err != nil {
		return e.storeFailure(start, ErrCatalogUnavailable, err)
	}

	interests := req.Interests
	if len(interests) == 0 {
		interests, err = e.provider.GetUserInterests(ctx, req.UserID)
		if err != nil {
			return e.storeFailure(start, ErrProfileUnavailable, err)
		}
	}

	owned, err := e.provider.GetOwnedCourseIDs(ctx, req.UserID)
	if err != nil {
		return e.storeFailure(start, ErrProfileUnavailable, err)
	}

	interactions, err := e.provider.GetUserInteractions(ctx, req.UserID)
	if err != nil {
		return e.storeFailure(start, ErrProfileUnavailable, err)
	}

	if err := e.ensureSnapshot(ctx, catalog); err != nil {
		e.logger.Warn().Err(err).Msg("Snapshot build failed, primary will fall back")
	}

	candidates := make([]Course, 0, len(catalog))
	for _, c := range catalog {
		if !owned[c.ID] {
			candidates = append(candidates, c)
		}
	}

	in := PrimaryInput{
		UserID:       req.UserID,
		Count:        req.Count,
		Interests:    interests,
		Candidates:   candidates,
		Interactions: interactions,
		Owned:        owned,
	}

	primary, primaryErr := e.runPrimary(ctx, in)
	if primaryErr == nil && len(primary) > 0 {
		records := e.postProcess(primary, catalog, owned, req.Count)
		if len(records) > 0 {
			e.primarySuccesses.Add(1)
			resp := &Response{
				Recommendations: records,
				Method:          records[0].Method,
				ExecutionInfo: ExecutionInfo{
					PrimarySucceeded: true,
					Count:            len(records),
					DurationMS:       time.Since(start).Milliseconds(),
				},
			}
			e.cache.put(req, resp)
			metrics.RecommendationRequests.WithLabelValues(resp.Method).Inc()
			metrics.RecommendationDuration.WithLabelValues(resp.Method).Observe(time.Since(start).Seconds())
			return resp, nil
		}
	}

	reason := "primary pipeline returned no records"
	if primaryErr != nil {
		reason = primaryErr.Error()
		e.logger.Warn().Err(primaryErr).Str("user_id", req.UserID).Msg("Primary pipeline failed, serving fallback")
	}

	e.fallbacks.Add(1)
	records := e.fallback.Generate(catalog, interests, owned, req.Count)
	resp := &Response{
		Recommendations: records,
		Method:          MethodFallback,
		ExecutionInfo: ExecutionInfo{
			PrimarySucceeded: false,
			Error:            reason,
			Count:            len(records),
			DurationMS:       time.Since(start).Milliseconds(),
		},
	}
	metrics.RecommendationRequests.WithLabelValues(MethodFallback).Inc()
	metrics.RecommendationDuration.WithLabelValues(MethodFallback).Observe(time.Since(start).Seconds())
	return resp, nil
}

// prepareRequest applies the count default and cap.
func (e *Engine) prepareRequest(req Request) Request {
	if req.Count <= 0 {
		req.Count = e.cfg.DefaultCount
	}
	if req.Count > e.cfg.MaxCount {
		req.Count = e.cfg.MaxCount
	}
	return req
}

// storeFailure builds the hard-error response for unreachable stores.
// The caller still receives a response object; the sentinel error crosses
// the boundary for transport-level status mapping.
func (e *Engine) storeFailure(start time.Time, sentinel, cause error) (*Response, error) {
	err := fmt.Errorf("%w: %v", sentinel, cause)
	resp := &Response{
		Recommendations: []Recommendation{},
		Method:          MethodFallback,
		ExecutionInfo: ExecutionInfo{
			PrimarySucceeded: false,
			Error:            err.Error(),
			Count:            0,
			DurationMS:       time.Since(start).Milliseconds(),
		},
	}
	return resp, err
}

// ensureSnapshot publishes an initial snapshot when none exists yet, so a
// request arriving before the first refresh can still run the primary
// pipeline. Scorer training still happens on refresh only.
func (e *Engine) ensureSnapshot(ctx context.Context, catalog []Course) error {
	if e.snapshots.Current() != nil {
		return nil
	}
	snap, err := BuildSnapshot(ctx, catalog, e.snapshots.NextVersion())
	if err != nil {
		return err
	}
	e.snapshots.Publish(snap)
	metrics.VocabularyVersion.Set(float64(snap.Version))
	metrics.VocabularyDimensions.Set(float64(snap.Vocab.Dimensions()))
	return nil
}

// runPrimary executes the worker under the breaker and the hard timeout.
// The computation is abandoned on timeout; the stray goroutine unwinds
// when the context cancellation reaches the worker.
func (e *Engine) runPrimary(ctx context.Context, in PrimaryInput) ([]Recommendation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PrimaryTimeout)
	defer cancel()

	worker := e.getWorker()

	type result struct {
		records []Recommendation
		err     error
	}
	ch := make(chan result, 1)

	go func() {
		records, err := e.breaker.Execute(func() ([]Recommendation, error) {
			return worker.ComputeHybridScores(ctx, in)
		})
		ch <- result{records: records, err: err}
	}()

	select {
	case <-ctx.Done():
		metrics.PrimaryFailures.WithLabelValues("timeout").Inc()
		return nil, fmt.Errorf("%w: worker %q exceeded %s budget", ErrPrimaryComputation, worker.Name(), e.cfg.PrimaryTimeout)
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, gobreaker.ErrOpenState) || errors.Is(r.err, gobreaker.ErrTooManyRequests) {
				metrics.PrimaryFailures.WithLabelValues("breaker_open").Inc()
				metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			} else {
				metrics.PrimaryFailures.WithLabelValues("worker").Inc()
				metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
			}
			return nil, fmt.Errorf("%w: %v", ErrPrimaryComputation, r.err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		return r.records, nil
	}
}

// postProcess enforces the output invariants on worker records: resolve
// against the catalog (unresolvable ids are dropped with a log, never
// failing the request), drop owned courses a worker with its own data
// view may have scored anyway, clamp percentages, deduplicate by course
// id, sort descending with course-id tie-break, truncate to k, and
// assign contiguous 1-based ranks.
func (e *Engine) postProcess(records []Recommendation, catalog []Course, owned map[int]bool, k int) []Recommendation {
	byID := make(map[int]Course, len(catalog))
	for _, c := range catalog {
		byID[c.ID] = c
	}

	cleaned := make([]Recommendation, 0, len(records))
	seen := make(map[int]bool, len(records))
	for _, r := range records {
		course, ok := byID[r.CourseID]
		if !ok {
			e.logger.Debug().Int("course_id", r.CourseID).Msg("Dropping record for unknown course id")
			continue
		}
		if owned[r.CourseID] {
			e.logger.Debug().Int("course_id", r.CourseID).Msg("Dropping record for owned course")
			continue
		}
		if seen[r.CourseID] {
			continue
		}
		seen[r.CourseID] = true

		if r.Title == "" {
			r.Title = course.Title
		}
		if r.Method == "" {
			r.Method = MethodHybrid
		}
		if r.ScorePercentage < 0 {
			r.ScorePercentage = 0
		}
		if r.ScorePercentage > 100 {
			r.ScorePercentage = 100
		}
		cleaned = append(cleaned, r)
	}

	sort.Slice(cleaned, func(i, j int) bool {
		if cleaned[i].ScorePercentage != cleaned[j].ScorePercentage {
			return cleaned[i].ScorePercentage > cleaned[j].ScorePercentage
		}
		if cleaned[i].BlendedScore != cleaned[j].BlendedScore {
			return cleaned[i].BlendedScore > cleaned[j].BlendedScore
		}
		return cleaned[i].CourseID < cleaned[j].CourseID
	})

	if len(cleaned) > k {
		cleaned = cleaned[:k]
	}
	for i := range cleaned {
		cleaned[i].Rank = i + 1
	}
	return cleaned
}

// Refresh rebuilds the vocabulary snapshot and retrains the registered
// scorers from the full interaction set. Individual scorer failures are
// logged and do not abort the refresh. Returns ErrRefreshInProgress when
// a refresh is already running.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.refreshMu.TryLock() {
		metrics.ModelRefreshes.WithLabelValues("skipped").Inc()
		return ErrRefreshInProgress
	}
	defer e.refreshMu.Unlock()

	start := time.Now()
	e.logger.Info().Msg("Model refresh starting")

	courses, err := e.provider.ListCourses(ctx)
	if err != nil {
		metrics.ModelRefreshes.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	snap, err := BuildSnapshot(ctx, courses, e.snapshots.NextVersion())
	if err != nil {
		metrics.ModelRefreshes.WithLabelValues("failure").Inc()
		return fmt.Errorf("build snapshot: %w", err)
	}
	e.snapshots.Publish(snap)
	metrics.VocabularyVersion.Set(float64(snap.Version))
	metrics.VocabularyDimensions.Set(float64(snap.Vocab.Dimensions()))
	metrics.VocabularyBuildDuration.Observe(time.Since(start).Seconds())

	interactions, err := e.provider.ListInteractions(ctx)
	if err != nil {
		// The snapshot already published; content scoring works without
		// behavioral data, so a profile-store hiccup degrades rather
		// than fails the refresh.
		e.logger.Warn().Err(err).Msg("Interaction load failed, skipping scorer training")
		metrics.ModelRefreshes.WithLabelValues("success").Inc()
		e.cache.invalidateAll()
		return nil
	}

	content, collab := e.getScorers()
	for _, s := range []Scorer{content, collab} {
		if s == nil {
			continue
		}
		if err := s.Train(ctx, snap, interactions); err != nil {
			e.logger.Error().Err(err).Str("scorer", s.Name()).Msg("Scorer training failed")
			continue
		}
		e.logger.Info().
			Str("scorer", s.Name()).
			Int("version", s.Version()).
			Msg("Scorer trained")
	}

	e.cache.invalidateAll()
	metrics.ModelRefreshes.WithLabelValues("success").Inc()
	e.logger.Info().
		Int64("snapshot_version", snap.Version).
		Int("dimensions", snap.Vocab.Dimensions()).
		Int("courses", snap.CourseCount()).
		Dur("elapsed", time.Since(start)).
		Msg("Model refresh complete")
	return nil
}

// Status reports the engine's operational state for health endpoints.
type Status struct {
	SnapshotVersion  int64     `json:"snapshot_version"`
	SnapshotBuiltAt  time.Time `json:"snapshot_built_at,omitempty"`
	Dimensions       int       `json:"dimensions"`
	Courses          int       `json:"courses"`
	Requests         int64     `json:"requests"`
	PrimarySuccesses int64     `json:"primary_successes"`
	Fallbacks        int64     `json:"fallbacks"`
	Worker           string    `json:"worker"`
}

// Status returns a point-in-time snapshot of engine state.
func (e *Engine) Status() Status {
	st := Status{
		Requests:         e.requests.Load(),
		PrimarySuccesses: e.primarySuccesses.Load(),
		Fallbacks:        e.fallbacks.Load(),
		Worker:           e.getWorker().Name(),
	}
	if snap := e.snapshots.Current(); snap != nil {
		st.SnapshotVersion = snap.Version
		st.SnapshotBuiltAt = snap.BuiltAt
		st.Dimensions = snap.Vocab.Dimensions()
		st.Courses = snap.CourseCount()
	}
	return st
}

// PurgeExpiredCache removes stale cache entries; called by the refresh
// service between refreshes.
func (e *Engine) PurgeExpiredCache() {
	e.cache.purgeExpired()
}
