// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package algorithms implements the scorers behind the hybrid engine.
//
// Each scorer implements the recommend.Scorer interface and is registered
// with the engine at wiring time.
//
// # Thread Safety
//
// All scorers are safe for concurrent use. Training acquires an exclusive
// lock while scoring uses a shared lock, so requests keep serving against
// the previous model during a retrain.
package algorithms

import (
	"context"
	"sync"
	"time"
)

// BaseScorer provides the shared bookkeeping for all scorers.
type BaseScorer struct {
	name          string
	trained       bool
	version       int
	lastTrainedAt time.Time
	mu            sync.RWMutex
}

// NewBaseScorer creates a base with the given name.
func NewBaseScorer(name string) BaseScorer {
	return BaseScorer{name: name}
}

// Name returns the scorer identifier.
func (b *BaseScorer) Name() string {
	return b.name
}

// IsTrained reports whether the model has been trained.
func (b *BaseScorer) IsTrained() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trained
}

// Version returns the model version, incremented per train.
func (b *BaseScorer) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// LastTrainedAt returns the completion time of the last train.
func (b *BaseScorer) LastTrainedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTrainedAt
}

// acquireTrainLock takes the exclusive training lock.
func (b *BaseScorer) acquireTrainLock() {
	b.mu.Lock()
}

// releaseTrainLock releases the exclusive training lock.
func (b *BaseScorer) releaseTrainLock() {
	b.mu.Unlock()
}

// acquireReadLock takes the shared scoring lock.
func (b *BaseScorer) acquireReadLock() {
	b.mu.RLock()
}

// releaseReadLock releases the shared scoring lock.
func (b *BaseScorer) releaseReadLock() {
	b.mu.RUnlock()
}

// markTrained records a successful train (must hold the train lock).
func (b *BaseScorer) markTrained() {
	b.trained = true
	b.version++
	b.lastTrainedAt = time.Now().UTC()
}

// contextCancelled is a non-blocking cancellation check for use inside
// training and scoring loops.
func contextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
