// SPDX-License-Identifier: MIT

// Package cache provides a read-through cache for recall windows, backed
// either by Redis or by a small in-memory TTL cache.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/daverunner/reflectd/internal/continuity"
)

// WindowCache caches recall windows keyed by their query shape.
type WindowCache interface {
	// Get retrieves a cached window. The second result is false on miss.
	Get(ctx context.Context, key string) ([]continuity.Reflection, bool)
	// Set stores a window under key for ttl.
	Set(ctx context.Context, key string, window []continuity.Reflection, ttl time.Duration)
	// InvalidateUser drops every cached window of a user. Called on save.
	InvalidateUser(ctx context.Context, userID string)
	// Stats returns cache counters.
	Stats() Stats
	// Close releases cache resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// Key renders the canonical cache key of a recall window query.
func Key(userID, threadID, sessionID string, limit int) string {
	return "window:" + userID + ":" + threadID + ":" + sessionID + ":" + strconv.Itoa(limit)
}

func userPrefix(userID string) string {
	return "window:" + userID + ":"
}

type memoryEntry struct {
	window     []continuity.Reflection
	expiration time.Time
}

func (e memoryEntry) expired() bool {
	return time.Now().After(e.expiration)
}

// memoryCache is the in-memory fallback used when Redis is not configured.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	stats   Stats
}

// NewMemoryCache creates an in-memory window cache.
func NewMemoryCache() WindowCache {
	return &memoryCache{entries: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]continuity.Reflection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.expired() {
		if found {
			delete(c.entries, key)
		}
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.window, true
}

func (c *memoryCache) Set(_ context.Context, key string, window []continuity.Reflection, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{window: window, expiration: time.Now().Add(ttl)}
	c.stats.Sets++
}

func (c *memoryCache) InvalidateUser(_ context.Context, userID string) {
	prefix := userPrefix(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *memoryCache) Close() error {
	return nil
}
