// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// responseCache is a TTL cache of recommendation responses keyed by
// request shape. Entries are invalidated wholesale on model refresh since
// any rebuild can change every score.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	response *Response
	expires  time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// key builds a deterministic cache key from the request.
func (c *responseCache) key(req Request) string {
	var b strings.Builder
	b.WriteString(req.UserID)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(req.Count))
	for _, in := range req.Interests {
		b.WriteByte('|')
		b.WriteString(strings.ToLower(strings.TrimSpace(in)))
	}
	return b.String()
}

func (c *responseCache) get(req Request) (*Response, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	k := c.key(req)

	c.mu.RLock()
	entry, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.response, true
}

func (c *responseCache) put(req Request, resp *Response) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[c.key(req)] = cacheEntry{
		response: resp,
		expires:  time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// invalidateAll drops every cached response.
func (c *responseCache) invalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// purgeExpired removes stale entries; called opportunistically by puts in
// long-running processes via the engine's refresh loop.
func (c *responseCache) purgeExpired() {
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
