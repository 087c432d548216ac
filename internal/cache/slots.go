// Package cache provides a Redis read-through cache for free-slot listings.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"garagebook/internal/models"
)

// SlotCache caches free-slot listings per garage with a short TTL.
// Invalidation is per garage: every cached range for the garage is dropped
// when its inventory changes.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// New creates a slot cache.
func New(redisClient *redis.Client, ttl time.Duration, logger *zerolog.Logger) *SlotCache {
	return &SlotCache{redis: redisClient, ttl: ttl, logger: logger}
}

func rangeKey(garageID int64, from, to time.Time) string {
	return fmt.Sprintf("slots:%d:%s:%s", garageID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func garageSetKey(garageID int64) string {
	return fmt.Sprintf("slots_keys:%d", garageID)
}

// Get returns the cached listing for a garage and range, if present.
func (c *SlotCache) Get(ctx context.Context, garageID int64, from, to time.Time) ([]models.TimeSlot, bool) {
	if c == nil || c.redis == nil || c.ttl <= 0 {
		return nil, false
	}

	val, err := c.redis.Get(ctx, rangeKey(garageID, from, to)).Result()
	if err != nil {
		return nil, false
	}

	var slots []models.TimeSlot
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Set stores a listing. The key is also tracked in a per-garage set so
// invalidation can find every cached range.
func (c *SlotCache) Set(ctx context.Context, garageID int64, from, to time.Time, slots []models.TimeSlot) {
	if c == nil || c.redis == nil || c.ttl <= 0 {
		return
	}

	data, err := json.Marshal(slots)
	if err != nil {
		return
	}

	key := rangeKey(garageID, from, to)
	pipe := c.redis.Pipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, garageSetKey(garageID), key)
	pipe.Expire(ctx, garageSetKey(garageID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Debug().Err(err).Int64("garage_id", garageID).Msg("cache write failed")
	}
}

// InvalidateGarage drops every cached listing for the garage.
func (c *SlotCache) InvalidateGarage(ctx context.Context, garageID int64) {
	if c == nil || c.redis == nil {
		return
	}

	setKey := garageSetKey(garageID)
	keys, err := c.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		c.logger.Debug().Err(err).Int64("garage_id", garageID).Msg("cache invalidate failed")
		return
	}
	keys = append(keys, setKey)
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug().Err(err).Int64("garage_id", garageID).Msg("cache invalidate failed")
	}
}
