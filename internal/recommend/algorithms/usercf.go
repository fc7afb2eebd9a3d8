// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package algorithms

import (
	"context"
	"math"
	"sort"

	"github.com/courserank/courserank/internal/recommend"
)

// UserCF implements user-based collaborative filtering: the behavioral
// signal for a candidate course is the similarity-weighted sum of
// neighbor confidences, normalized by total neighbor similarity.
//
// Similarity between users is the cosine over their sparse interaction
// confidence vectors, dampened by a shrinkage term so users sharing only
// a couple of courses do not dominate the neighborhood.
type UserCF struct {
	BaseScorer

	// neighbors caps the neighborhood size per request.
	neighbors int

	// shrinkage dampens similarities with little common support.
	shrinkage float64

	// userVectors maps user id -> course id -> summed confidence.
	userVectors map[string]map[int]float64
}

// UserCFOptions tunes the collaborative scorer.
type UserCFOptions struct {
	// Neighbors is the neighborhood size. Default: 50
	Neighbors int

	// Shrinkage is the common-support dampening constant. Default: 25
	Shrinkage float64
}

// NewUserCF creates a user-based collaborative filtering scorer.
func NewUserCF(opts UserCFOptions) *UserCF {
	if opts.Neighbors <= 0 {
		opts.Neighbors = 50
	}
	if opts.Shrinkage < 0 {
		opts.Shrinkage = 25
	}
	return &UserCF{
		BaseScorer: NewBaseScorer("usercf"),
		neighbors:  opts.Neighbors,
		shrinkage:  opts.Shrinkage,
	}
}

// Train rebuilds the per-user confidence vectors from the full
// interaction set.
func (u *UserCF) Train(ctx context.Context, _ *recommend.Snapshot, interactions []recommend.Interaction) error {
	vectors := make(map[string]map[int]float64)
	for i, in := range interactions {
		if i%1024 == 0 && contextCancelled(ctx) {
			return ctx.Err()
		}
		conf := in.Confidence()
		if conf <= 0 {
			continue
		}
		vec, ok := vectors[in.UserID]
		if !ok {
			vec = make(map[int]float64)
			vectors[in.UserID] = vec
		}
		vec[in.CourseID] += conf
	}

	u.acquireTrainLock()
	defer u.releaseTrainLock()
	u.userVectors = vectors
	u.markTrained()
	return nil
}

// Score predicts candidate scores from the user's neighborhood. Users or
// courses with insufficient behavioral data score 0 rather than erroring,
// which shifts the blend weight onto the content signal.
func (u *UserCF) Score(ctx context.Context, in recommend.ScoreInput) (map[int]float64, error) {
	u.acquireReadLock()
	defer u.releaseReadLock()

	scores := make(map[int]float64, len(in.Candidates))
	if !u.trained {
		return scores, nil
	}
	userVec := u.userVectors[in.UserID]
	if len(userVec) == 0 {
		return scores, nil
	}

	type neighbor struct {
		id  string
		sim float64
	}
	neighbors := make([]neighbor, 0, len(u.userVectors))
	count := 0
	for otherID, otherVec := range u.userVectors {
		if otherID == in.UserID {
			continue
		}
		count++
		if count%256 == 0 && contextCancelled(ctx) {
			return nil, ctx.Err()
		}
		sim, common := sparseCosine(userVec, otherVec)
		if sim <= 0 || common == 0 {
			continue
		}
		sim *= float64(common) / (float64(common) + u.shrinkage)
		neighbors = append(neighbors, neighbor{id: otherID, sim: sim})
	}
	if len(neighbors) == 0 {
		return scores, nil
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].sim != neighbors[j].sim {
			return neighbors[i].sim > neighbors[j].sim
		}
		return neighbors[i].id < neighbors[j].id
	})
	if len(neighbors) > u.neighbors {
		neighbors = neighbors[:u.neighbors]
	}

	// Weighted prediction per candidate, only over neighbors that
	// actually interacted with it.
	raw := make(map[int]float64, len(in.Candidates))
	var maxPred float64
	for _, cand := range in.Candidates {
		var num, den float64
		for _, n := range neighbors {
			conf, ok := u.userVectors[n.id][cand.ID]
			if !ok {
				continue
			}
			num += n.sim * conf
			den += math.Abs(n.sim)
		}
		if den == 0 {
			continue
		}
		pred := num / den
		raw[cand.ID] = pred
		if pred > maxPred {
			maxPred = pred
		}
	}

	// Scale by the max prediction so scores land in [0,1] while courses
	// with no neighborhood evidence stay exactly 0.
	if maxPred > 0 {
		for id, pred := range raw {
			scores[id] = pred / maxPred
		}
	}
	return scores, nil
}

// sparseCosine computes cosine similarity over two sparse vectors and the
// number of shared dimensions.
func sparseCosine(a, b map[int]float64) (float64, int) {
	// Iterate the smaller map.
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	common := 0
	for id, av := range a {
		if bv, ok := b[id]; ok {
			dot += av * bv
			common++
		}
	}
	if dot == 0 {
		return 0, common
	}
	var normA, normB float64
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0, common
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), common
}

// compile-time interface check
var _ recommend.Scorer = (*UserCF)(nil)
