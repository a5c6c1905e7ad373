package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/expense-tracker/graphql-api/internal/core/domain"
)

const defaultStatsTTL = 5 * time.Minute

// StatsCache stores per-user category statistics as JSON.
// Key format:
//   - stats:gen:<user_id>              generation counter, advanced on every write
//   - stats:category:<user_id>:<gen>   statistics computed at that generation
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache creates a StatsCache wrapping the given Redis client. Entries
// expire after ttl even when no write invalidates them.
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Get reads the user's generation and the entry stored for it. A missing
// counter is generation 0.
func (c *StatsCache) Get(ctx context.Context, userID string) ([]domain.CategoryStatistic, int64, bool, error) {
	gen, err := c.client.Get(ctx, genKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("stats cache generation: %w", err)
	}

	raw, err := c.client.Get(ctx, statsKey(userID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("stats cache get: %w", err)
	}

	var stats []domain.CategoryStatistic
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, gen, false, fmt.Errorf("stats cache decode: %w", err)
	}
	return stats, gen, true, nil
}

// Set stores stats under generation gen. An entry written for a superseded
// generation is never read and expires with the ttl.
func (c *StatsCache) Set(ctx context.Context, userID string, gen int64, stats []domain.CategoryStatistic) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("stats cache encode: %w", err)
	}
	if err := c.client.Set(ctx, statsKey(userID, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("stats cache set: %w", err)
	}
	return nil
}

// Invalidate advances the user's generation after any write to their
// transactions.
func (c *StatsCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, genKey(userID)).Err(); err != nil {
		return fmt.Errorf("stats cache invalidate: %w", err)
	}
	return nil
}

func genKey(userID string) string {
	return "stats:gen:" + userID
}

func statsKey(userID string, gen int64) string {
	return "stats:category:" + userID + ":" + strconv.FormatInt(gen, 10)
}
