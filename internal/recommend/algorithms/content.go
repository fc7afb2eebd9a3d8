// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package algorithms

import (
	"context"

	"github.com/courserank/courserank/internal/recommend"
)

// ContentScorer scores candidates by cosine similarity between the user's
// profile vector and each course's feature vector. Both are one-hot
// derived, so the cosine already lands in [0,1] and needs no rescaling.
//
// The scorer is stateless per request; Train only versions the model since
// the vectors themselves live in the snapshot.
type ContentScorer struct {
	BaseScorer
}

// NewContentScorer creates a content similarity scorer.
func NewContentScorer() *ContentScorer {
	return &ContentScorer{BaseScorer: NewBaseScorer("content")}
}

// Train marks the scorer against the new snapshot generation. The feature
// vectors are owned by the snapshot, so there is no model to rebuild here.
func (c *ContentScorer) Train(_ context.Context, snap *recommend.Snapshot, _ []recommend.Interaction) error {
	c.acquireTrainLock()
	defer c.releaseTrainLock()
	_ = snap
	c.markTrained()
	return nil
}

// Score returns candidate id -> cosine(profile, course vector). A zero
// profile (cold start) scores everything 0 rather than erroring.
func (c *ContentScorer) Score(ctx context.Context, in recommend.ScoreInput) (map[int]float64, error) {
	c.acquireReadLock()
	defer c.releaseReadLock()

	scores := make(map[int]float64, len(in.Candidates))
	if recommend.IsColdStart(in.Profile) {
		return scores, nil
	}

	for i, cand := range in.Candidates {
		if i%256 == 0 && contextCancelled(ctx) {
			return nil, ctx.Err()
		}
		vec := in.Snapshot.Vector(cand.ID)
		if vec == nil {
			continue
		}
		if sim := recommend.CosineSimilarity(in.Profile, vec); sim > 0 {
			scores[cand.ID] = sim
		}
	}
	return scores, nil
}

// compile-time interface check
var _ recommend.Scorer = (*ContentScorer)(nil)
