// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// inProcessWorker runs the hybrid pipeline directly: profile build,
// per-signal scoring in parallel, blend, normalize, rank. It is the
// engine's default Worker.
type inProcessWorker struct {
	engine *Engine
}

func (w *inProcessWorker) Name() string {
	return "inprocess"
}

func (w *inProcessWorker) ComputeHybridScores(ctx context.Context, in PrimaryInput) ([]Recommendation, error) {
	snap := w.engine.snapshots.Current()
	if snap == nil {
		return nil, fmt.Errorf("no vocabulary snapshot published")
	}
	if len(in.Candidates) == 0 {
		return []Recommendation{}, nil
	}

	profile := BuildUserProfile(snap, in.Interactions, in.Interests)

	content, collab := w.engine.getScorers()
	scoreIn := ScoreInput{
		UserID:     in.UserID,
		Profile:    profile,
		Candidates: in.Candidates,
		Snapshot:   snap,
	}

	// Both signals are independent; score them in parallel. A nil or
	// untrained scorer contributes zeros, shifting the blend weight onto
	// the other signal.
	var contentScores, collabScores map[int]float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contentScores, err = scoreSignal(gctx, content, scoreIn)
		return err
	})
	g.Go(func() error {
		var err error
		collabScores, err = scoreSignal(gctx, collab, scoreIn)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lambda := w.engine.cfg.BlendLambda
	blended := make(map[int]float64, len(in.Candidates))
	for _, c := range in.Candidates {
		blended[c.ID] = lambda*collabScores[c.ID] + (1-lambda)*contentScores[c.ID]
	}

	normalized := NormalizeScores(blended)

	records := make([]Recommendation, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		records = append(records, Recommendation{
			CourseID:        c.ID,
			Title:           c.Title,
			ContentScore:    contentScores[c.ID],
			CollabScore:     collabScores[c.ID],
			BlendedScore:    blended[c.ID],
			ScorePercentage: clampPercentage(normalized[c.ID]),
			Method:          MethodHybrid,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		ni, nj := normalized[records[i].CourseID], normalized[records[j].CourseID]
		if ni != nj {
			return ni > nj
		}
		return records[i].CourseID < records[j].CourseID
	})

	return records, nil
}

// scoreSignal runs one scorer, mapping nil and untrained scorers to an
// all-zero signal rather than an error.
func scoreSignal(ctx context.Context, s Scorer, in ScoreInput) (map[int]float64, error) {
	if s == nil {
		return map[int]float64{}, nil
	}
	scores, err := s.Score(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scorer %s: %w", s.Name(), err)
	}
	if scores == nil {
		scores = map[int]float64{}
	}
	return scores, nil
}
