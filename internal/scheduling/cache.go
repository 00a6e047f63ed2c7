package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAvailabilityCache stores computed free slots in Redis under
// availability:{physician}:{date} with a short TTL.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(physicianID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("availability:%s:%s", physicianID, date.UTC().Format("2006-01-02"))
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]MinuteOfDay, bool, error) {
	raw, err := c.client.Get(ctx, availabilityKey(physicianID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scheduling: cache get: %w", err)
	}
	var slots []MinuteOfDay
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("scheduling: cache decode: %w", err)
	}
	return slots, true, nil
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, physicianID uuid.UUID, date time.Time, slots []MinuteOfDay) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("scheduling: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, availabilityKey(physicianID, date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("scheduling: cache set: %w", err)
	}
	return nil
}

func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, physicianID uuid.UUID, date time.Time) error {
	if err := c.client.Del(ctx, availabilityKey(physicianID, date)).Err(); err != nil {
		return fmt.Errorf("scheduling: cache invalidate: %w", err)
	}
	return nil
}
