package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quantfabric/swapflow/internal/model"
)

const cacheKeyPrefix = "swapflow:marketdata:"

// SnapshotCache caches resolved snapshots for their validity window. Expiry
// is checked eagerly on every read: a read past the validity window is a miss
// and the entry is dropped, so correctness never depends on a background
// sweep. An optional Redis layer backs the in-memory map for cross-process
// reuse.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]*model.MarketDataSnapshot

	redis  redis.UniversalClient
	clock  Clock
	logger *zap.Logger

	hits   int64
	misses int64
}

// NewSnapshotCache builds a cache. The redis client may be nil for a purely
// in-memory cache.
func NewSnapshotCache(rdb redis.UniversalClient, clock Clock, logger *zap.Logger) *SnapshotCache {
	if clock == nil {
		clock = time.Now
	}
	return &SnapshotCache{
		entries: make(map[string]*model.MarketDataSnapshot),
		redis:   rdb,
		clock:   clock,
		logger:  logger,
	}
}

// Get returns a cached snapshot if present and still inside its validity
// window.
func (c *SnapshotCache) Get(ctx context.Context, key string) (*model.MarketDataSnapshot, bool) {
	now := c.clock()

	c.mu.RLock()
	snap, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if snap.Expired(now) {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
			atomic.AddInt64(&c.misses, 1)
			return nil, false
		}
		atomic.AddInt64(&c.hits, 1)
		return snap, true
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKeyPrefix+key).Result()
		if err == nil {
			restored := &model.MarketDataSnapshot{}
			if uerr := json.Unmarshal([]byte(data), restored); uerr == nil && !restored.Expired(now) {
				c.mu.Lock()
				c.entries[key] = restored
				c.mu.Unlock()
				atomic.AddInt64(&c.hits, 1)
				return restored, true
			}
		} else if err != redis.Nil {
			c.logger.Warn("market data cache read failed", zap.Error(err))
		}
	}

	atomic.AddInt64(&c.misses, 1)
	return nil, false
}

// Put stores a snapshot under the key for its remaining validity.
func (c *SnapshotCache) Put(ctx context.Context, key string, snap *model.MarketDataSnapshot) {
	c.mu.Lock()
	c.entries[key] = snap
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	ttl := snap.ValidUntil.Sub(c.clock())
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("market data cache marshal failed", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, cacheKeyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn("market data cache write failed", zap.Error(err))
	}
}

// Stats returns cumulative hit and miss counts.
func (c *SnapshotCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}
