// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recommend implements the hybrid course recommendation engine.
//
// The engine blends a content-based similarity signal (user profile vector
// against catalog feature vectors) with a collaborative signal, normalizes
// the blended scores, and returns a ranked, deduplicated list. When the
// primary pipeline fails, times out, or yields nothing, a deterministic
// interest/popularity fallback serves the request instead. Every response
// carries execution metadata describing which path produced it.
//
// The package has no dependency on the storage layer; data access goes
// through the DataProvider interface so any backing store can be plugged in
// without import cycles.
package recommend

import (
	"context"
	"time"
)

// Serving method provenance tags.
const (
	// MethodHybrid marks records produced by the primary blended pipeline.
	MethodHybrid = "hybrid"

	// MethodFallback marks records produced by the deterministic fallback.
	MethodFallback = "fallback"
)

// Course is an immutable-per-snapshot catalog entry. The engine only reads
// courses and derives feature vectors from them.
type Course struct {
	// ID is the stable numeric course id used for joins and dedup.
	ID int `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Partner is the provider/institution name.
	Partner string `json:"partner,omitempty"`

	// Theme is the single category string, "Uncategorized" when unknown.
	Theme string `json:"theme,omitempty"`

	// Skills is the ordered list of skill tags.
	Skills []string `json:"skills,omitempty"`

	Level    string `json:"level,omitempty"`
	Duration string `json:"duration,omitempty"`

	// Rating is the aggregate rating in [0,5]; 0 means absent.
	Rating float64 `json:"rating"`

	ReviewCount int `json:"review_count,omitempty"`

	// Popularity is the enrollment count used for fallback ordering.
	Popularity int `json:"popularity"`
}

// InteractionType classifies a user interaction event.
type InteractionType string

const (
	// InteractionPurchased records a course purchase.
	InteractionPurchased InteractionType = "purchased"

	// InteractionRated records a 1-5 star rating.
	InteractionRated InteractionType = "rated"

	// InteractionCompleted records chapter-completion progress.
	InteractionCompleted InteractionType = "completed"
)

// Interaction is a single user-course event from the profile store.
// The engine reads interactions; it never writes them.
type Interaction struct {
	UserID   string          `json:"user_id"`
	CourseID int             `json:"course_id"`
	Type     InteractionType `json:"type"`

	// Rating is set for InteractionRated events (1-5).
	Rating float64 `json:"rating,omitempty"`

	// Progress is the chapter-completion percentage (0-100).
	Progress int `json:"progress,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Confidence converts an interaction into a behavioral confidence weight.
// Multipliers per event type are tunable policy (documented defaults):
// purchase 1.0, rating (r/5)*1.5, completion 1.2 scaled by progress with a
// 5% floor so barely started courses still register.
func (i Interaction) Confidence() float64 {
	switch i.Type {
	case InteractionPurchased:
		return 1.0
	case InteractionRated:
		if i.Rating <= 0 {
			return 0
		}
		return (i.Rating / 5.0) * 1.5
	case InteractionCompleted:
		progress := i.Progress
		if progress < 5 {
			progress = 5
		}
		return 1.2 * float64(progress) / 100.0
	default:
		return 0
	}
}

// Recommendation is the engine's output unit, created fresh per request and
// never persisted. ScorePercentage is the canonical score representation;
// the raw component scores are retained for diagnostics.
type Recommendation struct {
	CourseID int    `json:"id"`
	Title    string `json:"title"`

	// ContentScore and CollabScore are the raw per-signal scores in [0,1].
	ContentScore float64 `json:"content_score,omitempty"`
	CollabScore  float64 `json:"collaborative_score,omitempty"`

	// BlendedScore is lambda*collab + (1-lambda)*content, pre-normalization.
	BlendedScore float64 `json:"blended_score,omitempty"`

	// ScorePercentage is round(normalized*100) clamped to [0,100].
	ScorePercentage int `json:"score_percentage"`

	// Rank is 1-based, contiguous, no gaps within a response.
	Rank int `json:"rank"`

	// Method is the provenance tag: "hybrid" or "fallback".
	Method string `json:"method"`
}

// Request is a recommendation request.
type Request struct {
	UserID string

	// Interests is the caller-declared interest list. When empty the engine
	// falls back to the profile store's stored interests.
	Interests []string

	// Count is the requested number of recommendations (K).
	Count int
}

// ExecutionInfo describes how a response was produced. It is present in
// every response, fallback included, so callers never infer provenance
// from score values.
type ExecutionInfo struct {
	PrimarySucceeded bool   `json:"primary_succeeded"`
	Error            string `json:"error,omitempty"`
	Count            int    `json:"count"`
	DurationMS       int64  `json:"duration_ms"`
}

// Response is the engine's reply to a Request.
type Response struct {
	Recommendations []Recommendation `json:"recommendations"`
	Method          string           `json:"method"`
	ExecutionInfo   ExecutionInfo    `json:"execution_info"`
}

// DataProvider supplies catalog and profile data to the engine. Implemented
// by the database package; mocked in tests.
type DataProvider interface {
	// ListCourses returns the full course catalog.
	ListCourses(ctx context.Context) ([]Course, error)

	// ListInteractions returns all interactions across users, used for
	// collaborative model training.
	ListInteractions(ctx context.Context) ([]Interaction, error)

	// GetUserInteractions returns one user's interaction history.
	GetUserInteractions(ctx context.Context, userID string) ([]Interaction, error)

	// GetUserInterests returns the user's stored interest tags.
	GetUserInterests(ctx context.Context, userID string) ([]string, error)

	// GetOwnedCourseIDs returns the set of course ids the user owns.
	GetOwnedCourseIDs(ctx context.Context, userID string) (map[int]bool, error)
}

// ScoreInput carries everything a Scorer needs for one request.
type ScoreInput struct {
	UserID string

	// Profile is the user profile vector in the snapshot's vocabulary
	// space. All zeros for cold-start users.
	Profile []float64

	// Candidates are the courses to score (catalog minus owned).
	Candidates []Course

	// Snapshot is the published vocabulary snapshot.
	Snapshot *Snapshot
}

// Scorer produces a per-course relevance signal in [0,1]. Implementations
// must be safe for concurrent use: training takes an exclusive lock,
// scoring a shared one.
type Scorer interface {
	// Name returns the scorer identifier.
	Name() string

	// Train rebuilds the scorer's model from a snapshot and the full
	// interaction set.
	Train(ctx context.Context, snap *Snapshot, interactions []Interaction) error

	// Score returns candidate course id -> score in [0,1]. Cold-start
	// users or courses score 0 rather than erroring.
	Score(ctx context.Context, in ScoreInput) (map[int]float64, error)

	// IsTrained reports whether the model has been trained.
	IsTrained() bool

	// Version returns the model version, incremented per train.
	Version() int

	// LastTrainedAt returns the completion time of the last train.
	LastTrainedAt() time.Time
}

// PrimaryInput carries the pre-fetched request data into a Worker. The
// in-process worker consumes all of it; the subprocess worker only needs
// the user id and count, its external process owns its own data access.
type PrimaryInput struct {
	UserID       string
	Count        int
	Interests    []string
	Candidates   []Course
	Interactions []Interaction
	Owned        map[int]bool
}

// Worker computes the primary (hybrid) scores. Implementations are
// swappable behind this one contract: in-process pipeline, subprocess, or
// a network call. Any error return triggers the fallback; workers never
// partially succeed.
type Worker interface {
	// Name identifies the worker implementation.
	Name() string

	// ComputeHybridScores returns ranked hybrid records for the user.
	// An empty result is valid (no candidates) and also routes to the
	// fallback.
	ComputeHybridScores(ctx context.Context, in PrimaryInput) ([]Recommendation, error)
}
