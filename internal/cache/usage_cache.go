package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageCache keeps rolling per-user token counters in Redis so budget checks
// do not aggregate the Mongo ledger on every request. Counters are advisory:
// a cache miss falls back to the ledger aggregation.
type UsageCache interface {
	// Increment adds tokens to the current day and month counters.
	Increment(ctx context.Context, userID string, tokens int) error
	// DayUsage returns the cached counter for today, or -1 on a miss.
	DayUsage(ctx context.Context, userID string) (int, error)
	// MonthUsage returns the cached counter for this month, or -1 on a miss.
	MonthUsage(ctx context.Context, userID string) (int, error)
	// Prime seeds counters after a ledger aggregation so the next check hits.
	Prime(ctx context.Context, userID string, daily, monthly int) error
}

type usageCache struct {
	client *redis.Client
}

func NewUsageCache(client *redis.Client) UsageCache {
	return &usageCache{client: client}
}

func dayKey(userID string, now time.Time) string {
	return fmt.Sprintf("usage:%s:d:%s", userID, now.Format("2006-01-02"))
}

func monthKey(userID string, now time.Time) string {
	return fmt.Sprintf("usage:%s:m:%s", userID, now.Format("2006-01"))
}

func (c *usageCache) Increment(ctx context.Context, userID string, tokens int) error {
	now := time.Now()
	pipe := c.client.Pipeline()
	pipe.IncrBy(ctx, dayKey(userID, now), int64(tokens))
	pipe.IncrBy(ctx, monthKey(userID, now), int64(tokens))
	pipe.Expire(ctx, dayKey(userID, now), 48*time.Hour)
	pipe.Expire(ctx, monthKey(userID, now), 35*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *usageCache) DayUsage(ctx context.Context, userID string) (int, error) {
	return c.counter(ctx, dayKey(userID, time.Now()))
}

func (c *usageCache) MonthUsage(ctx context.Context, userID string) (int, error) {
	return c.counter(ctx, monthKey(userID, time.Now()))
}

func (c *usageCache) counter(ctx context.Context, key string) (int, error) {
	n, err := c.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return n, nil
}

func (c *usageCache) Prime(ctx context.Context, userID string, daily, monthly int) error {
	now := time.Now()
	pipe := c.client.Pipeline()
	pipe.Set(ctx, dayKey(userID, now), daily, 48*time.Hour)
	pipe.Set(ctx, monthKey(userID, now), monthly, 35*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}
