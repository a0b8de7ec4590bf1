package calendar

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache is a short-TTL Redis cache for projected calendar views. The
// orchestrator invalidates a dentist's entries after every successful
// mutation; the TTL bounds staleness when invalidation is missed (for
// example, a mutation made by another service instance racing the fetch).
type ViewCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewViewCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *ViewCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ViewCache{rdb: rdb, ttl: ttl, prefix: "calview", logger: logger}
}

func (c *ViewCache) Get(ctx context.Context, s ViewSession) ([]Event, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+":"+s.cacheKey()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("view cache get failed", "err", err)
		}
		return nil, false
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		c.logger.Warn("view cache entry corrupt, ignoring", "err", err)
		return nil, false
	}
	return events, true
}

func (c *ViewCache) Set(ctx context.Context, s ViewSession, events []Event) {
	raw, err := json.Marshal(events)
	if err != nil {
		c.logger.Warn("view cache marshal failed", "err", err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+":"+s.cacheKey(), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("view cache set failed", "err", err)
	}
}

// InvalidateDentist drops every cached view for the given dentist.
func (c *ViewCache) InvalidateDentist(ctx context.Context, dentistID string) {
	pattern := c.prefix + ":" + dentistID + ":*"
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("view cache scan failed", "dentist_id", dentistID, "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("view cache invalidate failed", "dentist_id", dentistID, "err", err)
	}
}
