// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recommend

import (
	"testing"
	"time"
)

func TestResponseCachePutGet(t *testing.T) {
	t.Parallel()

	c := newResponseCache(time.Minute)
	req := Request{UserID: "u1", Count: 5, Interests: []string{"AI"}}
	resp := &Response{Method: MethodHybrid}

	if _, ok := c.get(req); ok {
		t.Fatal("hit on empty cache")
	}
	c.put(req, resp)
	got, ok := c.get(req)
	if !ok || got != resp {
		t.Fatal("miss after put")
	}
}

func TestResponseCacheKeyShape(t *testing.T) {
	t.Parallel()

	c := newResponseCache(time.Minute)
	c.put(Request{UserID: "u1", Count: 5}, &Response{Method: "a"})

	tests := []struct {
		name    string
		req     Request
		wantHit bool
	}{
		{"same request", Request{UserID: "u1", Count: 5}, true},
		{"different count", Request{UserID: "u1", Count: 6}, false},
		{"different user", Request{UserID: "u2", Count: 5}, false},
		{"added interests", Request{UserID: "u1", Count: 5, Interests: []string{"x"}}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, ok := c.get(tt.req); ok != tt.wantHit {
				t.Errorf("hit = %v, want %v", ok, tt.wantHit)
			}
		})
	}
}

func TestResponseCacheInterestsCaseInsensitive(t *testing.T) {
	t.Parallel()

	c := newResponseCache(time.Minute)
	c.put(Request{UserID: "u1", Count: 5, Interests: []string{"AI"}}, &Response{})
	if _, ok := c.get(Request{UserID: "u1", Count: 5, Interests: []string{" ai "}}); !ok {
		t.Error("interest normalization should make these the same key")
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	t.Parallel()

	c := newResponseCache(10 * time.Millisecond)
	req := Request{UserID: "u1", Count: 5}
	c.put(req, &Response{})

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.get(req); ok {
		t.Error("hit on expired entry")
	}

	c.purgeExpired()
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	if n != 0 {
		t.Errorf("purge left %d entries", n)
	}
}

func TestResponseCacheDisabled(t *testing.T) {
	t.Parallel()

	c := newResponseCache(0)
	req := Request{UserID: "u1", Count: 5}
	c.put(req, &Response{})
	if _, ok := c.get(req); ok {
		t.Error("zero TTL cache must never hit")
	}
}

func TestResponseCacheInvalidateAll(t *testing.T) {
	t.Parallel()

	c := newResponseCache(time.Minute)
	c.put(Request{UserID: "u1", Count: 5}, &Response{})
	c.put(Request{UserID: "u2", Count: 5}, &Response{})
	c.invalidateAll()
	if _, ok := c.get(Request{UserID: "u1", Count: 5}); ok {
		t.Error("hit after invalidateAll")
	}
}
