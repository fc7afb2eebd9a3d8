// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0, 1}, []float64{1, 0, 1}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
		{"empty", nil, nil, 0},
		{"partial overlap", []float64{1, 1, 0}, []float64{1, 0, 0}, 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeScores(t *testing.T) {
	t.Parallel()

	t.Run("spread maps to unit interval", func(t *testing.T) {
		t.Parallel()
		got := NormalizeScores(map[int]float64{1: 10, 2: 20, 3: 30})
		if got[1] != 0 || got[3] != 1 {
			t.Errorf("min/max = %v/%v, want 0/1", got[1], got[3])
		}
		if math.Abs(got[2]-0.5) > 1e-9 {
			t.Errorf("midpoint = %v, want 0.5", got[2])
		}
	})

	t.Run("all equal maps to half", func(t *testing.T) {
		t.Parallel()
		got := NormalizeScores(map[int]float64{1: 7, 2: 7, 3: 7})
		for id, v := range got {
			if v != 0.5 {
				t.Errorf("score[%d] = %v, want 0.5", id, v)
			}
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		got := NormalizeScores(map[int]float64{})
		if len(got) != 0 {
			t.Errorf("got %d entries, want 0", len(got))
		}
	})

	t.Run("order preserved", func(t *testing.T) {
		t.Parallel()
		in := map[int]float64{1: -5, 2: 0.3, 3: 0.31, 4: 100}
		got := NormalizeScores(in)
		if !(got[1] < got[2] && got[2] < got[3] && got[3] < got[4]) {
			t.Errorf("normalization broke ordering: %v", got)
		}
	})

	t.Run("negative scores", func(t *testing.T) {
		t.Parallel()
		got := NormalizeScores(map[int]float64{1: -10, 2: -5})
		if got[1] != 0 || got[2] != 1 {
			t.Errorf("got %v, want {1:0, 2:1}", got)
		}
	})
}

func TestClampPercentage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  int
	}{
		{0, 0},
		{1, 100},
		{0.5, 50},
		{0.874, 87},
		{0.875, 88},
		{-0.3, 0},
		{1.7, 100},
	}
	for _, tt := range tests {
		if got := clampPercentage(tt.score); got != tt.want {
			t.Errorf("clampPercentage(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}
