// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package algorithms

import (
	"context"
	"testing"

	"github.com/courserank/courserank/internal/recommend"
)

// cfFixture builds an interaction set where users a and b share taste
// (courses 1 and 2) and user c is off in another cluster (courses 4, 5).
// User b additionally purchased course 3.
func cfFixture() []recommend.Interaction {
	return []recommend.Interaction{
		{UserID: "a", CourseID: 1, Type: recommend.InteractionPurchased},
		{UserID: "a", CourseID: 2, Type: recommend.InteractionPurchased},
		{UserID: "b", CourseID: 1, Type: recommend.InteractionPurchased},
		{UserID: "b", CourseID: 2, Type: recommend.InteractionPurchased},
		{UserID: "b", CourseID: 3, Type: recommend.InteractionPurchased},
		{UserID: "c", CourseID: 4, Type: recommend.InteractionPurchased},
		{UserID: "c", CourseID: 5, Type: recommend.InteractionPurchased},
	}
}

func cfCandidates() []recommend.Course {
	return []recommend.Course{
		{ID: 3, Title: "shared taste pick"},
		{ID: 4, Title: "other cluster"},
		{ID: 5, Title: "other cluster too"},
	}
}

func trainedUserCF(t *testing.T, interactions []recommend.Interaction) *UserCF {
	t.Helper()
	// Zero shrinkage keeps the small fixture's similarities undamped.
	s := NewUserCF(UserCFOptions{Neighbors: 10, Shrinkage: 0})
	if err := s.Train(context.Background(), nil, interactions); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return s
}

func TestUserCFNeighborTastePropagates(t *testing.T) {
	t.Parallel()

	s := trainedUserCF(t, cfFixture())
	scores, err := s.Score(context.Background(), recommend.ScoreInput{
		UserID:     "a",
		Candidates: cfCandidates(),
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	// Course 3 comes from neighbor b; courses 4 and 5 have no overlap with
	// user a's neighborhood and must stay at zero.
	if scores[3] <= 0 {
		t.Errorf("score[3] = %v, want > 0 from neighbor evidence", scores[3])
	}
	if scores[4] != 0 || scores[5] != 0 {
		t.Errorf("no-evidence candidates scored: 4=%v 5=%v", scores[4], scores[5])
	}
	for id, v := range scores {
		if v < 0 || v > 1 {
			t.Errorf("score[%d] = %v out of [0,1]", id, v)
		}
	}
}

func TestUserCFUntrainedScoresZero(t *testing.T) {
	t.Parallel()

	s := NewUserCF(UserCFOptions{})
	scores, err := s.Score(context.Background(), recommend.ScoreInput{
		UserID:     "a",
		Candidates: cfCandidates(),
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("untrained scorer produced %d scores", len(scores))
	}
}

func TestUserCFUnknownUserScoresZero(t *testing.T) {
	t.Parallel()

	s := trainedUserCF(t, cfFixture())
	scores, err := s.Score(context.Background(), recommend.ScoreInput{
		UserID:     "nobody",
		Candidates: cfCandidates(),
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	for id, v := range scores {
		if v != 0 {
			t.Errorf("score[%d] = %v for an unknown user", id, v)
		}
	}
}

func TestUserCFIsolatedUserScoresZero(t *testing.T) {
	t.Parallel()

	interactions := append(cfFixture(),
		recommend.Interaction{UserID: "loner", CourseID: 99, Type: recommend.InteractionPurchased},
	)
	s := trainedUserCF(t, interactions)
	scores, err := s.Score(context.Background(), recommend.ScoreInput{
		UserID:     "loner",
		Candidates: cfCandidates(),
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("user with no overlapping neighbors got %d scores", len(scores))
	}
}

func TestUserCFShrinkageShiftsWeightToWideOverlap(t *testing.T) {
	t.Parallel()

	// Course 30 has mixed evidence: thin-overlap neighbor d rated it
	// highly, wide-overlap neighbor e barely touched it. Shrinkage damps
	// d's vote more than e's, so the damped prediction for 30 sits lower
	// than the undamped one. Course 10 anchors the max-scaling at 1 in
	// both models.
	interactions := []recommend.Interaction{
		{UserID: "a", CourseID: 1, Type: recommend.InteractionPurchased},
		{UserID: "a", CourseID: 2, Type: recommend.InteractionPurchased},
		{UserID: "d", CourseID: 1, Type: recommend.InteractionPurchased},
		{UserID: "d", CourseID: 10, Type: recommend.InteractionPurchased},
		{UserID: "d", CourseID: 30, Type: recommend.InteractionRated, Rating: 5},
		{UserID: "e", CourseID: 1, Type: recommend.InteractionPurchased},
		{UserID: "e", CourseID: 2, Type: recommend.InteractionPurchased},
		{UserID: "e", CourseID: 20, Type: recommend.InteractionPurchased},
		{UserID: "e", CourseID: 30, Type: recommend.InteractionCompleted, Progress: 50},
	}
	candidates := []recommend.Course{{ID: 10}, {ID: 30}}

	scoreWith := func(shrinkage float64) float64 {
		s := NewUserCF(UserCFOptions{Neighbors: 10, Shrinkage: shrinkage})
		if err := s.Train(context.Background(), nil, interactions); err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		scores, err := s.Score(context.Background(), recommend.ScoreInput{
			UserID:     "a",
			Candidates: candidates,
		})
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		return scores[30]
	}

	undamped := scoreWith(0)
	damped := scoreWith(25)
	if damped >= undamped {
		t.Errorf("damped score %v >= undamped %v, shrinkage had no effect", damped, undamped)
	}
}

func TestUserCFRetrainReplacesModel(t *testing.T) {
	t.Parallel()

	s := trainedUserCF(t, cfFixture())
	if err := s.Train(context.Background(), nil, nil); err != nil {
		t.Fatalf("retrain error = %v", err)
	}
	scores, err := s.Score(context.Background(), recommend.ScoreInput{
		UserID:     "a",
		Candidates: cfCandidates(),
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 0 {
		t.Error("old interaction data survived a retrain")
	}
	if s.Version() != 2 {
		t.Errorf("version = %d after two trains, want 2", s.Version())
	}
}
