package state

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SkipCache is an optional shared cache in front of the processed-record
// tracker so successive runs on different hosts can short-circuit skip
// checks. The tracker file remains the source of truth; the cache is purely
// an accelerator and every operation degrades silently.
type SkipCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	// In-memory fallback when Redis is not available
	memCache map[string]time.Time
	memMutex sync.RWMutex
}

// NewSkipCache creates a new skip cache. A nil client keeps the in-memory
// fallback only.
func NewSkipCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *SkipCache {
	return &SkipCache{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		memCache: make(map[string]time.Time),
	}
}

// Seen reports whether the key was marked processed within the TTL
func (c *SkipCache) Seen(ctx context.Context, key string) bool {
	if c.client != nil {
		n, err := c.client.Exists(ctx, "processed:"+key).Result()
		if err == nil {
			return n > 0
		}
		c.logger.WithError(err).WithField("key", key).Debug("Redis exists error, falling back to memory cache")
	}

	c.memMutex.RLock()
	expiresAt, ok := c.memCache[key]
	c.memMutex.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		c.memMutex.Lock()
		delete(c.memCache, key)
		c.memMutex.Unlock()
		return false
	}
	return true
}

// MarkSeen records the key as processed
func (c *SkipCache) MarkSeen(ctx context.Context, key string) {
	if c.client != nil {
		err := c.client.Set(ctx, "processed:"+key, "1", c.ttl).Err()
		if err == nil {
			return
		}
		c.logger.WithError(err).WithField("key", key).Debug("Redis set error, falling back to memory cache")
	}

	c.memMutex.Lock()
	c.memCache[key] = time.Now().Add(c.ttl)
	c.memMutex.Unlock()
}
