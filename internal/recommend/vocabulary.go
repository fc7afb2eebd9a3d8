// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dimension name prefixes. Each catalog attribute contributes one-hot
// dimensions under its own prefix so tokens from different attributes
// never collide.
const (
	dimPartnerPrefix = "partner_"
	dimThemePrefix   = "theme_"
	dimSkillPrefix   = "skill_"
)

// Vocabulary is the ordered dimension list derived from a catalog: one
// dimension per distinct partner, theme, and skill token, sorted within
// each group for deterministic ordering.
type Vocabulary struct {
	dims  []string
	index map[string]int
}

// Dimensions returns the dimension count.
func (v *Vocabulary) Dimensions() int {
	return len(v.dims)
}

// DimensionNames returns a copy of the ordered dimension names.
func (v *Vocabulary) DimensionNames() []string {
	out := make([]string, len(v.dims))
	copy(out, v.dims)
	return out
}

// indexOf returns the dimension index for a name, or -1.
func (v *Vocabulary) indexOf(name string) int {
	if i, ok := v.index[name]; ok {
		return i
	}
	return -1
}

// Snapshot is a versioned, immutable pairing of a vocabulary with the
// per-course feature vectors encoded against it. Snapshots are built
// completely and then published atomically; readers never observe a
// half-rebuilt vocabulary.
type Snapshot struct {
	Version int64
	BuiltAt time.Time

	Vocab *Vocabulary

	// vectors maps course id to its one-hot feature vector.
	vectors map[int][]float64

	// courses maps course id to the catalog entry the vector came from.
	courses map[int]Course
}

// Vector returns the feature vector for a course id, or nil when the
// course is not in this snapshot.
func (s *Snapshot) Vector(courseID int) []float64 {
	return s.vectors[courseID]
}

// Course returns the catalog entry for a course id.
func (s *Snapshot) Course(courseID int) (Course, bool) {
	c, ok := s.courses[courseID]
	return c, ok
}

// CourseCount returns the number of courses encoded in the snapshot.
func (s *Snapshot) CourseCount() int {
	return len(s.vectors)
}

// normalizeToken lowercases and underscores a raw attribute value so that
// "Machine Learning" and "machine learning" share one dimension.
func normalizeToken(raw string) string {
	tok := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(tok, " ", "_")
}

// buildVocabulary derives the dimension list from a catalog.
func buildVocabulary(courses []Course) *Vocabulary {
	partners := map[string]bool{}
	themes := map[string]bool{}
	skills := map[string]bool{}

	for _, c := range courses {
		if tok := normalizeToken(c.Partner); tok != "" {
			partners[tok] = true
		}
		if tok := normalizeToken(c.Theme); tok != "" {
			themes[tok] = true
		}
		for _, s := range c.Skills {
			if tok := normalizeToken(s); tok != "" {
				skills[tok] = true
			}
		}
	}

	dims := make([]string, 0, len(partners)+len(themes)+len(skills))
	for _, group := range []struct {
		prefix string
		tokens map[string]bool
	}{
		{dimPartnerPrefix, partners},
		{dimThemePrefix, themes},
		{dimSkillPrefix, skills},
	} {
		names := make([]string, 0, len(group.tokens))
		for tok := range group.tokens {
			names = append(names, group.prefix+tok)
		}
		sort.Strings(names)
		dims = append(dims, names...)
	}

	index := make(map[string]int, len(dims))
	for i, name := range dims {
		index[name] = i
	}

	return &Vocabulary{dims: dims, index: index}
}

// vectorizeCourse encodes one course against the vocabulary.
func vectorizeCourse(vocab *Vocabulary, c Course) []float64 {
	vec := make([]float64, vocab.Dimensions())
	if i := vocab.indexOf(dimPartnerPrefix + normalizeToken(c.Partner)); i >= 0 {
		vec[i] = 1
	}
	if i := vocab.indexOf(dimThemePrefix + normalizeToken(c.Theme)); i >= 0 {
		vec[i] = 1
	}
	for _, s := range c.Skills {
		if i := vocab.indexOf(dimSkillPrefix + normalizeToken(s)); i >= 0 {
			vec[i] = 1
		}
	}
	return vec
}

// BuildSnapshot builds a complete snapshot from a catalog. Vectorization is
// chunked across workers; the snapshot is only returned once every course
// is encoded.
func BuildSnapshot(ctx context.Context, courses []Course, version int64) (*Snapshot, error) {
	vocab := buildVocabulary(courses)

	snap := &Snapshot{
		Version: version,
		BuiltAt: time.Now().UTC(),
		Vocab:   vocab,
		vectors: make(map[int][]float64, len(courses)),
		courses: make(map[int]Course, len(courses)),
	}

	workers := runtime.NumCPU()
	if workers > len(courses) {
		workers = len(courses)
	}
	if workers < 1 {
		workers = 1
	}

	type encoded struct {
		id  int
		vec []float64
	}

	results := make(chan encoded, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	chunk := (len(courses) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(courses) {
			end = len(courses)
		}
		if start >= end {
			break
		}
		part := courses[start:end]
		g.Go(func() error {
			for _, c := range part {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results <- encoded{id: c.ID, vec: vectorizeCourse(vocab, c)}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vectorize catalog: %w", err)
	}
	close(results)

	for r := range results {
		snap.vectors[r.id] = r.vec
	}
	for _, c := range courses {
		snap.courses[c.ID] = c
	}

	return snap, nil
}

// VectorizeInterests encodes declared interest strings as a one-hot vector
// over the snapshot's theme and skill dimensions. Interests matching no
// known dimension contribute nothing.
func VectorizeInterests(snap *Snapshot, interests []string) []float64 {
	vec := make([]float64, snap.Vocab.Dimensions())
	for _, raw := range interests {
		tok := normalizeToken(raw)
		if tok == "" {
			continue
		}
		if i := snap.Vocab.indexOf(dimThemePrefix + tok); i >= 0 {
			vec[i] = 1
		}
		if i := snap.Vocab.indexOf(dimSkillPrefix + tok); i >= 0 {
			vec[i] = 1
		}
	}
	return vec
}

// SnapshotStore publishes vocabulary snapshots with swap-on-complete
// semantics. Current never blocks and never returns a partial snapshot.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
	version atomic.Int64
}

// Current returns the published snapshot, or nil before the first publish.
func (s *SnapshotStore) Current() *Snapshot {
	return s.current.Load()
}

// NextVersion reserves the next snapshot version number.
func (s *SnapshotStore) NextVersion() int64 {
	return s.version.Add(1)
}

// Publish atomically swaps in a fully built snapshot.
func (s *SnapshotStore) Publish(snap *Snapshot) {
	s.current.Store(snap)
}
