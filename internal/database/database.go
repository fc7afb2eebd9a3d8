// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package database provides the DuckDB-backed catalog and profile store.
// It implements recommend.DataProvider so the engine never imports this
// package directly.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/courserank/courserank/internal/config"
	"github.com/courserank/courserank/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Prepared statement caching
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// New opens the database, configures the connection pool, and initializes
// the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for the database file.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := db.configureConnectionPool(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to configure pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.SeedMockData {
		if err := db.seedMockData(); err != nil {
			logging.Warn().Err(err).Msg("Mock data seeding failed")
		}
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("Database ready")
	return db, nil
}

// configureConnectionPool sets pool limits appropriate for an embedded
// analytical database.
func (db *DB) configureConnectionPool() error {
	maxOpen := runtime.NumCPU()
	if maxOpen < 2 {
		maxOpen = 2
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
	return nil
}

// initSchema creates the tables and indexes if missing.
func (db *DB) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			id INTEGER PRIMARY KEY,
			title VARCHAR NOT NULL,
			description VARCHAR,
			partner VARCHAR,
			theme VARCHAR,
			skills VARCHAR,
			level VARCHAR,
			duration VARCHAR,
			rating DOUBLE DEFAULT 0,
			review_count INTEGER DEFAULT 0,
			popularity INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			user_id VARCHAR NOT NULL,
			course_id INTEGER NOT NULL,
			type VARCHAR NOT NULL,
			rating DOUBLE DEFAULT 0,
			progress INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_course ON interactions (course_id)`,
		`CREATE TABLE IF NOT EXISTS user_interests (
			user_id VARCHAR NOT NULL,
			interest VARCHAR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_interests_user ON user_interests (user_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// getStmt returns a cached prepared statement, preparing it on first use.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if stmt, ok = db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// clearStatementCache closes and forgets all cached statements.
func (db *DB) clearStatementCache() {
	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	for q, stmt := range db.stmtCache {
		if err := stmt.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close prepared statement")
		}
		delete(db.stmtCache, q)
	}
}

// Ping verifies database connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases prepared statements and the connection.
func (db *DB) Close() error {
	db.clearStatementCache()
	return db.conn.Close()
}
