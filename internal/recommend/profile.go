// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

// BuildUserProfile produces the user's profile vector in the snapshot's
// vocabulary space.
//
// With interaction history: the weighted centroid of the interacted course
// vectors, where each course's weight is the sum of its event confidences
// (see Interaction.Confidence for the per-type multipliers). With no
// history but declared interests: a one-hot interest vector. With both:
// the element-wise mean of the two. With neither: the zero vector, which
// signals cold start to the ranker.
//
// Interactions referencing courses missing from the snapshot are skipped;
// a stale history entry must not fail the whole profile.
func BuildUserProfile(snap *Snapshot, interactions []Interaction, interests []string) []float64 {
	dims := snap.Vocab.Dimensions()

	courseWeights := make(map[int]float64)
	for _, in := range interactions {
		if snap.Vector(in.CourseID) == nil {
			continue
		}
		courseWeights[in.CourseID] += in.Confidence()
	}

	var historyVec []float64
	if len(courseWeights) > 0 {
		historyVec = make([]float64, dims)
		var totalWeight float64
		for id, w := range courseWeights {
			if w <= 0 {
				continue
			}
			vec := snap.Vector(id)
			for i := range vec {
				historyVec[i] += w * vec[i]
			}
			totalWeight += w
		}
		if totalWeight > 0 {
			for i := range historyVec {
				historyVec[i] /= totalWeight
			}
		} else {
			historyVec = nil
		}
	}

	var interestVec []float64
	if len(interests) > 0 {
		v := VectorizeInterests(snap, interests)
		for i := range v {
			if v[i] != 0 {
				interestVec = v
				break
			}
		}
	}

	switch {
	case historyVec != nil && interestVec != nil:
		merged := make([]float64, dims)
		for i := range merged {
			merged[i] = (historyVec[i] + interestVec[i]) / 2
		}
		return merged
	case historyVec != nil:
		return historyVec
	case interestVec != nil:
		return interestVec
	default:
		return make([]float64, dims)
	}
}

// IsColdStart reports whether a profile vector carries no signal.
func IsColdStart(profile []float64) bool {
	for _, v := range profile {
		if v != 0 {
			return false
		}
	}
	return true
}
