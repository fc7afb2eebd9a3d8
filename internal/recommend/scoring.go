// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for zero-magnitude or mismatched-length vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeScores min-max normalizes scores to [0,1]. When all scores are
// equal there is no ordering information, so every score maps to 0.5.
// The transform is monotonic: relative order is always preserved.
func NormalizeScores(scores map[int]float64) map[int]float64 {
	if len(scores) == 0 {
		return scores
	}

	minScore := math.Inf(1)
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	normalized := make(map[int]float64, len(scores))
	spread := maxScore - minScore
	if spread == 0 {
		for id := range scores {
			normalized[id] = 0.5
		}
		return normalized
	}

	for id, s := range scores {
		normalized[id] = (s - minScore) / spread
	}
	return normalized
}

// clampPercentage converts a normalized score to a percentage in [0,100].
func clampPercentage(score float64) int {
	pct := int(math.Round(score * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
