// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"context"
	"math"
	"testing"
)

func testSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := BuildSnapshot(context.Background(), testCatalog(), 1)
	if err != nil {
		t.Fatalf("BuildSnapshot() error = %v", err)
	}
	return snap
}

func TestInteractionConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Interaction
		want float64
	}{
		{"purchase", Interaction{Type: InteractionPurchased}, 1.0},
		{"five star rating", Interaction{Type: InteractionRated, Rating: 5}, 1.5},
		{"three star rating", Interaction{Type: InteractionRated, Rating: 3}, 0.9},
		{"zero rating", Interaction{Type: InteractionRated, Rating: 0}, 0},
		{"full completion", Interaction{Type: InteractionCompleted, Progress: 100}, 1.2},
		{"half completion", Interaction{Type: InteractionCompleted, Progress: 50}, 0.6},
		{"barely started has floor", Interaction{Type: InteractionCompleted, Progress: 1}, 1.2 * 0.05},
		{"unknown type", Interaction{Type: "viewed"}, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.in.Confidence(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Confidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildUserProfileColdStart(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(t)
	profile := BuildUserProfile(snap, nil, nil)
	if len(profile) != snap.Vocab.Dimensions() {
		t.Fatalf("profile length = %d, want %d", len(profile), snap.Vocab.Dimensions())
	}
	if !IsColdStart(profile) {
		t.Error("no history and no interests must yield a cold-start profile")
	}
}

func TestBuildUserProfileFromHistory(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(t)
	interactions := []Interaction{
		{UserID: "u1", CourseID: 1, Type: InteractionPurchased},
		{UserID: "u1", CourseID: 2, Type: InteractionRated, Rating: 4},
	}
	profile := BuildUserProfile(snap, interactions, nil)
	if IsColdStart(profile) {
		t.Fatal("history-based profile is all zeros")
	}

	// Both interacted courses are AI-themed, so theme_ai should carry the
	// full centroid weight while theme_art stays zero.
	names := snap.Vocab.DimensionNames()
	for i, name := range names {
		switch name {
		case "theme_ai":
			if math.Abs(profile[i]-1.0) > 1e-9 {
				t.Errorf("theme_ai = %v, want 1.0", profile[i])
			}
		case "theme_art":
			if profile[i] != 0 {
				t.Errorf("theme_art = %v, want 0", profile[i])
			}
		}
	}
}

func TestBuildUserProfileInterestsOnly(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(t)
	profile := BuildUserProfile(snap, nil, []string{"AI"})
	if IsColdStart(profile) {
		t.Fatal("interest-based profile is all zeros")
	}
}

func TestBuildUserProfileMergesHistoryAndInterests(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(t)
	interactions := []Interaction{
		{UserID: "u1", CourseID: 3, Type: InteractionPurchased}, // Art course
	}
	merged := BuildUserProfile(snap, interactions, []string{"AI"})
	historyOnly := BuildUserProfile(snap, interactions, nil)

	names := snap.Vocab.DimensionNames()
	for i, name := range names {
		if name == "theme_ai" {
			if merged[i] == 0 {
				t.Error("merged profile lost the interest signal")
			}
			if historyOnly[i] != 0 {
				t.Error("history-only profile has interest signal")
			}
		}
		if name == "theme_art" {
			// Element-wise mean halves the history contribution.
			if math.Abs(merged[i]-historyOnly[i]/2) > 1e-9 {
				t.Errorf("theme_art merged = %v, want %v", merged[i], historyOnly[i]/2)
			}
		}
	}
}

func TestBuildUserProfileSkipsStaleCourses(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(t)
	interactions := []Interaction{
		{UserID: "u1", CourseID: 999, Type: InteractionPurchased}, // not in snapshot
	}
	profile := BuildUserProfile(snap, interactions, nil)
	if !IsColdStart(profile) {
		t.Error("stale-only history should degrade to cold start, not fail")
	}
}

func TestBuildUserProfileUnknownInterestsIgnored(t *testing.T) {
	t.Parallel()

	snap := testSnapshot(t)
	profile := BuildUserProfile(snap, nil, []string{"quantum knitting"})
	if !IsColdStart(profile) {
		t.Error("unknown interests must contribute nothing")
	}
}
