package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

type memoryEntry struct {
	video     *model.ResolvedVideo
	expiresAt time.Time
}

// MemoryResolutionCache is a bounded in-process cache.
// When full, the least recently used entry is evicted.
type MemoryResolutionCache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// NewMemoryResolutionCache creates a cache holding at most capacity entries for ttl each.
func NewMemoryResolutionCache(capacity int, ttl time.Duration) (*MemoryResolutionCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	l, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryResolutionCache{
		lru: l,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// WithNowFunc overrides the clock used for expiry.
func (c *MemoryResolutionCache) WithNowFunc(now func() time.Time) *MemoryResolutionCache {
	if now != nil {
		c.now = now
	}
	return c
}

// Get returns the live entry for sourceURL. Expired entries are dropped on access.
func (c *MemoryResolutionCache) Get(_ context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, ok := c.lru.Get(sourceURL)
	if !ok {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeMemory).Inc()
		return nil, nil
	}

	entry := val.(memoryEntry)
	if !c.now().Before(entry.expiresAt) {
		c.lru.Remove(sourceURL)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeMemory).Inc()
		return nil, nil
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeMemory).Inc()
	return entry.video, nil
}

// Set stores video for sourceURL and restarts its TTL.
func (c *MemoryResolutionCache) Set(_ context.Context, sourceURL string, video *model.ResolvedVideo) error {
	if video == nil {
		return fmt.Errorf("cache set %q: nil video", sourceURL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := c.lru.Add(sourceURL, memoryEntry{
		video:     video,
		expiresAt: c.now().Add(c.ttl),
	})
	if evicted {
		metrics.CacheEvictionsTotal.Inc()
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeMemory).Inc()
	return nil
}

// Len reports the number of entries, including expired ones not yet dropped.
func (c *MemoryResolutionCache) Len() int {
	return c.lru.Len()
}
