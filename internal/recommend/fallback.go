// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"sort"
	"strings"
)

// FallbackGenerator produces a deterministic ranked list from interest-tag
// matching and catalog popularity. It runs when the primary pipeline
// throws, times out, or returns zero records, and it never fails: with an
// empty catalog it returns an empty list.
type FallbackGenerator struct {
	cfg Config
}

// NewFallbackGenerator creates a fallback generator with the given tuning.
func NewFallbackGenerator(cfg Config) *FallbackGenerator {
	return &FallbackGenerator{cfg: cfg}
}

// Generate returns up to k fallback records. Interest-matched courses come
// first, ordered by rating desc then popularity desc; the remainder is
// padded with the globally most popular courses. Courses in owned are
// excluded; a nil owned set means exclusion data was unavailable and owned
// courses may legitimately appear.
func (f *FallbackGenerator) Generate(catalog []Course, interests []string, owned map[int]bool, k int) []Recommendation {
	if k <= 0 || len(catalog) == 0 {
		return []Recommendation{}
	}

	tokens := tokenizeInterests(interests)

	var matched, rest []Course
	for _, c := range catalog {
		if owned != nil && owned[c.ID] {
			continue
		}
		if matchesInterests(c, tokens) {
			matched = append(matched, c)
		} else {
			rest = append(rest, c)
		}
	}

	// Interest matches rank by quality, padding by reach. Course id breaks
	// every tie so identical inputs always produce identical order.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Rating != matched[j].Rating {
			return matched[i].Rating > matched[j].Rating
		}
		if matched[i].Popularity != matched[j].Popularity {
			return matched[i].Popularity > matched[j].Popularity
		}
		return matched[i].ID < matched[j].ID
	})
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Popularity != rest[j].Popularity {
			return rest[i].Popularity > rest[j].Popularity
		}
		if rest[i].Rating != rest[j].Rating {
			return rest[i].Rating > rest[j].Rating
		}
		return rest[i].ID < rest[j].ID
	})

	seen := make(map[int]bool, k)
	records := make([]Recommendation, 0, k)
	for _, c := range append(matched, rest...) {
		if len(records) == k {
			break
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		rank := len(records) + 1
		records = append(records, Recommendation{
			CourseID:        c.ID,
			Title:           c.Title,
			ScorePercentage: f.syntheticScore(rank),
			Rank:            rank,
			Method:          MethodFallback,
		})
	}

	return records
}

// syntheticScore returns the deterministic descending score for a rank.
// These are presentation scores for consistent relative ordering, not
// learned relevance.
func (f *FallbackGenerator) syntheticScore(rank int) int {
	score := f.cfg.FallbackScoreCeiling - (rank-1)*f.cfg.FallbackScoreStep
	if score < f.cfg.FallbackScoreFloor {
		return f.cfg.FallbackScoreFloor
	}
	return score
}

// tokenizeInterests normalizes interest strings into matchable tokens.
func tokenizeInterests(interests []string) []string {
	tokens := make([]string, 0, len(interests))
	for _, raw := range interests {
		tok := strings.ToLower(strings.TrimSpace(raw))
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// matchesInterests reports whether any interest token appears in the
// course's theme or skill tags (case-insensitive substring match).
func matchesInterests(c Course, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	theme := strings.ToLower(c.Theme)
	for _, tok := range tokens {
		if strings.Contains(theme, tok) {
			return true
		}
		for _, s := range c.Skills {
			if strings.Contains(strings.ToLower(s), tok) {
				return true
			}
		}
	}
	return false
}
