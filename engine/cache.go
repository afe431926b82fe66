// Copyright (C) 2026 Atlasview (dev@atlasview.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlasview/codeatlas/analyzer"
)

const (
	// DefaultCacheCapacity is the LRU entry ceiling.
	DefaultCacheCapacity = 100

	// DefaultCacheTTL is how long an entry stays valid after storage.
	DefaultCacheTTL = 30 * time.Minute

	// DefaultMaxEntryAccesses retires an entry after this many hits so a hot
	// stale result cannot pin itself past refresh indefinitely.
	DefaultMaxEntryAccesses = 1000
)

// cacheEntry wraps a stored result with eviction bookkeeping.
type cacheEntry struct {
	result   *analyzer.Result
	storedAt time.Time

	mu          sync.Mutex
	accessCount int
}

// Cache is an LRU result cache for the expensive analysis paths.
//
// Keys bind (path, content hash, defined-set hash, language), so any change
// to the file, the batch definition set, or the language routing produces a
// distinct entry. Entries expire on TTL, LRU pressure, or an access-count
// ceiling. Stored results are shared: callers must treat them as read-only.
//
// Thread Safety: safe for concurrent use.
type Cache struct {
	store *lru.Cache[string, *cacheEntry]
	ttl   time.Duration
	maxAccesses int

	mu     sync.Mutex
	hits   int
	misses int

	evictCancel context.CancelFunc
	evictDone   chan struct{}
}

// CacheOption configures a Cache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	capacity    int
	ttl         time.Duration
	maxAccesses int
}

// WithCacheCapacity sets the LRU capacity.
func WithCacheCapacity(n int) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithCacheTTL sets the entry time-to-live.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheMaxAccesses sets the per-entry access ceiling.
func WithCacheMaxAccesses(n int) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.maxAccesses = n
		}
	}
}

// NewCache creates a Cache with the given options.
func NewCache(opts ...CacheOption) (*Cache, error) {
	cfg := cacheConfig{
		capacity:    DefaultCacheCapacity,
		ttl:         DefaultCacheTTL,
		maxAccesses: DefaultMaxEntryAccesses,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store, err := lru.New[string, *cacheEntry](cfg.capacity)
	if err != nil {
		return nil, fmt.Errorf("creating lru store: %w", err)
	}
	return &Cache{
		store:       store,
		ttl:         cfg.ttl,
		maxAccesses: cfg.maxAccesses,
	}, nil
}

// Key derives the cache key for a file under a given definition set.
func Key(file *analyzer.ParsedFile, defined *analyzer.DefinedMethodSet) string {
	contentHash := sha256.Sum256([]byte(file.Content))
	return fmt.Sprintf("%s|%s|%s|%s",
		file.Path,
		hex.EncodeToString(contentHash[:]),
		defined.Hash(),
		file.Language)
}

// Get returns the cached result for key, or nil on miss. Expired and
// over-accessed entries are removed and reported as misses. The returned
// result is a shallow copy whose metadata is stamped CacheHit.
func (c *Cache) Get(key string) *analyzer.Result {
	entry, ok := c.store.Get(key)
	if !ok {
		c.count(false)
		return nil
	}

	if time.Since(entry.storedAt) > c.ttl {
		c.store.Remove(key)
		c.count(false)
		return nil
	}

	entry.mu.Lock()
	entry.accessCount++
	expired := entry.accessCount > c.maxAccesses
	entry.mu.Unlock()
	if expired {
		c.store.Remove(key)
		c.count(false)
		return nil
	}

	c.count(true)
	hit := *entry.result
	hit.Metadata.CacheHit = true
	return &hit
}

// Put stores a result. Error-only results are not cached so transient
// failures retry on the next pass.
func (c *Cache) Put(key string, result *analyzer.Result) {
	if result == nil || (len(result.Methods) == 0 && len(result.Errors) > 0) {
		return
	}
	c.store.Add(key, &cacheEntry{result: result, storedAt: time.Now()})
}

// Clear removes every entry and resets counters.
func (c *Cache) Clear() {
	c.store.Purge()
	c.mu.Lock()
	c.hits, c.misses = 0, 0
	c.mu.Unlock()
}

// CacheStats is a point-in-time counter snapshot.
type CacheStats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Stats returns the current counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: c.store.Len(), Hits: c.hits, Misses: c.misses}
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

// StartEviction launches the background TTL sweeper. Disabled by default:
// hosts that want proactive expiry opt in and own the lifecycle. Calling it
// twice without StopEviction is a no-op.
func (c *Cache) StartEviction(ctx context.Context, interval time.Duration) {
	if c.evictCancel != nil {
		return
	}
	if interval <= 0 {
		interval = c.ttl / 2
	}

	ctx, cancel := context.WithCancel(ctx)
	c.evictCancel = cancel
	c.evictDone = make(chan struct{})

	go func() {
		defer close(c.evictDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.evictExpired()
			}
		}
	}()
}

// StopEviction stops the sweeper and waits for it to exit.
func (c *Cache) StopEviction() {
	if c.evictCancel == nil {
		return
	}
	c.evictCancel()
	<-c.evictDone
	c.evictCancel = nil
	c.evictDone = nil
}

// evictExpired removes entries past their TTL.
func (c *Cache) evictExpired() {
	removed := 0
	for _, key := range c.store.Keys() {
		entry, ok := c.store.Peek(key)
		if !ok {
			continue
		}
		if time.Since(entry.storedAt) > c.ttl {
			c.store.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("cache eviction sweep", slog.Int("removed", removed))
	}
}
