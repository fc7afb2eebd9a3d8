// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"fmt"

	"github.com/courserank/courserank/internal/logging"
)

// seedMockData populates a small demo catalog for local development. It
// runs only when the catalog is empty, so restarts never duplicate rows.
func (db *DB) seedMockData() error {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
		return fmt.Errorf("count courses: %w", err)
	}
	if count > 0 {
		return nil
	}

	type seedCourse struct {
		id          int
		title       string
		partner     string
		theme       string
		skills      string
		level       string
		rating      float64
		reviewCount int
		popularity  int
	}

	courses := []seedCourse{
		{1, "Machine Learning Foundations", "Stanford Online", "AI", "machine learning,python,statistics", "Intermediate", 4.7, 1820, 25400},
		{2, "Deep Learning with PyTorch", "DeepLearn Institute", "AI", "deep learning,pytorch,neural networks", "Advanced", 4.5, 940, 14100},
		{3, "Watercolor Painting Basics", "Arts Academy", "Art", "painting,color theory", "Beginner", 4.9, 310, 2100},
		{4, "Practical Data Engineering", "DataWorks", "Data", "sql,etl,python", "Intermediate", 4.3, 660, 9800},
		{5, "Introduction to Statistics", "Stanford Online", "Data", "statistics,probability", "Beginner", 4.4, 2200, 31000},
		{6, "Web Development Bootcamp", "CodeCraft", "Programming", "javascript,html,css", "Beginner", 4.6, 5400, 48200},
		{7, "Go for Backend Engineers", "CodeCraft", "Programming", "go,concurrency,apis", "Intermediate", 4.8, 780, 6900},
		{8, "Digital Illustration", "Arts Academy", "Art", "illustration,drawing", "Intermediate", 4.2, 150, 1200},
	}

	for _, c := range courses {
		_, err := db.conn.Exec(
			`INSERT INTO courses (id, title, partner, theme, skills, level, rating, review_count, popularity)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.id, c.title, c.partner, c.theme, c.skills, c.level, c.rating, c.reviewCount, c.popularity,
		)
		if err != nil {
			return fmt.Errorf("seed course %d: %w", c.id, err)
		}
	}

	interests := []struct {
		userID   string
		interest string
	}{
		{"demo-user", "AI"},
		{"demo-user", "statistics"},
	}
	for _, in := range interests {
		if _, err := db.conn.Exec(
			`INSERT INTO user_interests (user_id, interest) VALUES (?, ?)`,
			in.userID, in.interest,
		); err != nil {
			return fmt.Errorf("seed interest: %w", err)
		}
	}

	logging.Info().Int("courses", len(courses)).Msg("Seeded demo catalog")
	return nil
}
