package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	// resolutionKeyPrefix is the prefix for resolution cache keys in Redis.
	resolutionKeyPrefix = "resolution:"
)

// RedisResolutionCache implements ResolutionCache using Redis as the backing store.
// The raw resolver payload is stored and parsed again on read.
type RedisResolutionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResolutionCache creates a new Redis-backed resolution cache.
func NewRedisResolutionCache(client *redis.Client, ttl time.Duration) *RedisResolutionCache {
	return &RedisResolutionCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a resolution from Redis.
// Returns nil, nil on cache miss.
func (c *RedisResolutionCache) Get(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	data, err := c.client.Get(ctx, c.buildKey(sourceURL)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeRedis).Inc()
			return nil, nil // Cache miss
		}
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	video, err := model.ParseResolvedVideo(data)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return nil, fmt.Errorf("deserialize resolution: %w", err)
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeRedis).Inc()
	return video, nil
}

// Set stores a resolution in Redis with the cache TTL.
func (c *RedisResolutionCache) Set(ctx context.Context, sourceURL string, video *model.ResolvedVideo) error {
	if video == nil || len(video.Raw) == 0 {
		return fmt.Errorf("redis set %q: empty payload", sourceURL)
	}

	if err := c.client.Set(ctx, c.buildKey(sourceURL), []byte(video.Raw), c.ttl).Err(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
	return nil
}

// buildKey constructs the Redis key for a source URL.
func (c *RedisResolutionCache) buildKey(sourceURL string) string {
	return resolutionKeyPrefix + sourceURL
}
