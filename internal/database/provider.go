// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/courserank/courserank/internal/metrics"
	"github.com/courserank/courserank/internal/recommend"
)

// queryTimeout bounds individual provider queries so a wedged database
// never holds a recommendation request past its own budget.
const queryTimeout = 15 * time.Second

// ListCourses returns the full course catalog.
func (db *DB) ListCourses(ctx context.Context) ([]recommend.Course, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT id, title, COALESCE(description, ''), COALESCE(partner, ''),
		       COALESCE(theme, 'Uncategorized'), COALESCE(skills, ''),
		       COALESCE(level, ''), COALESCE(duration, ''),
		       COALESCE(rating, 0), COALESCE(review_count, 0), COALESCE(popularity, 0)
		FROM courses
		ORDER BY id
	`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		metrics.ObserveDBQuery("list", "courses", start, err)
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		metrics.ObserveDBQuery("list", "courses", start, err)
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []recommend.Course
	for rows.Next() {
		var c recommend.Course
		var skills string
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.Partner, &c.Theme,
			&skills, &c.Level, &c.Duration, &c.Rating, &c.ReviewCount, &c.Popularity); err != nil {
			metrics.ObserveDBQuery("list", "courses", start, err)
			return nil, fmt.Errorf("scan course: %w", err)
		}
		c.Skills = splitSkills(skills)
		courses = append(courses, c)
	}
	err = rows.Err()
	metrics.ObserveDBQuery("list", "courses", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// ListInteractions returns all interactions across users for model
// training.
func (db *DB) ListInteractions(ctx context.Context) ([]recommend.Interaction, error) {
	const query = `
		SELECT user_id, course_id, type, COALESCE(rating, 0), COALESCE(progress, 0), created_at
		FROM interactions
		ORDER BY created_at
	`
	return db.queryInteractions(ctx, "list_all", query)
}

// GetUserInteractions returns one user's interaction history.
func (db *DB) GetUserInteractions(ctx context.Context, userID string) ([]recommend.Interaction, error) {
	const query = `
		SELECT user_id, course_id, type, COALESCE(rating, 0), COALESCE(progress, 0), created_at
		FROM interactions
		WHERE user_id = ?
		ORDER BY created_at
	`
	return db.queryInteractions(ctx, "list_user", query, userID)
}

func (db *DB) queryInteractions(ctx context.Context, op, query string, args ...interface{}) ([]recommend.Interaction, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		metrics.ObserveDBQuery(op, "interactions", start, err)
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		metrics.ObserveDBQuery(op, "interactions", start, err)
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []recommend.Interaction
	for rows.Next() {
		var in recommend.Interaction
		var typ string
		if err := rows.Scan(&in.UserID, &in.CourseID, &typ, &in.Rating, &in.Progress, &in.Timestamp); err != nil {
			metrics.ObserveDBQuery(op, "interactions", start, err)
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Type = recommend.InteractionType(typ)
		interactions = append(interactions, in)
	}
	err = rows.Err()
	metrics.ObserveDBQuery(op, "interactions", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return interactions, nil
}

// GetUserInterests returns the user's stored interest tags.
func (db *DB) GetUserInterests(ctx context.Context, userID string) ([]string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `SELECT interest FROM user_interests WHERE user_id = ? ORDER BY interest`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		metrics.ObserveDBQuery("list", "user_interests", start, err)
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, userID)
	if err != nil {
		metrics.ObserveDBQuery("list", "user_interests", start, err)
		return nil, fmt.Errorf("query interests: %w", err)
	}
	defer rows.Close()

	var interests []string
	for rows.Next() {
		var interest string
		if err := rows.Scan(&interest); err != nil {
			metrics.ObserveDBQuery("list", "user_interests", start, err)
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		interests = append(interests, interest)
	}
	err = rows.Err()
	metrics.ObserveDBQuery("list", "user_interests", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate interests: %w", err)
	}
	return interests, nil
}

// GetOwnedCourseIDs returns the set of course ids the user has purchased.
func (db *DB) GetOwnedCourseIDs(ctx context.Context, userID string) (map[int]bool, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		SELECT DISTINCT course_id FROM interactions
		WHERE user_id = ? AND type = 'purchased'
	`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		metrics.ObserveDBQuery("owned", "interactions", start, err)
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, userID)
	if err != nil {
		metrics.ObserveDBQuery("owned", "interactions", start, err)
		return nil, fmt.Errorf("query owned courses: %w", err)
	}
	defer rows.Close()

	owned := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			metrics.ObserveDBQuery("owned", "interactions", start, err)
			return nil, fmt.Errorf("scan owned course: %w", err)
		}
		owned[id] = true
	}
	err = rows.Err()
	metrics.ObserveDBQuery("owned", "interactions", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate owned courses: %w", err)
	}
	return owned, nil
}

// RecordInteraction appends a user interaction event.
func (db *DB) RecordInteraction(ctx context.Context, in recommend.Interaction) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
		INSERT INTO interactions (user_id, course_id, type, rating, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		metrics.ObserveDBQuery("insert", "interactions", start, err)
		return err
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = stmt.ExecContext(ctx, in.UserID, in.CourseID, string(in.Type), in.Rating, in.Progress, ts)
	metrics.ObserveDBQuery("insert", "interactions", start, err)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// splitSkills parses the comma-separated skills column.
func splitSkills(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	skills := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			skills = append(skills, p)
		}
	}
	return skills
}

// compile-time interface check
var _ recommend.DataProvider = (*DB)(nil)
