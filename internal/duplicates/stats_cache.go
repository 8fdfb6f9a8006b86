package duplicates

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"business-directory/internal/common/logger"
	"business-directory/internal/models"

	"github.com/redis/go-redis/v9"
)

const statsCacheKey = "directory:duplicates:stats"

// StatsProvider computes duplicate statistics.
type StatsProvider interface {
	GetDuplicateStats(ctx context.Context) (*models.DuplicateStats, error)
}

// CachedStats keeps the last stats snapshot in Redis. Only the dashboard
// aggregate is cached; detection itself always reads the store.
type CachedStats struct {
	next   StatsProvider
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStats(next StatsProvider, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedStats {
	return &CachedStats{next: next, rdb: rdb, ttl: ttl, logger: log}
}

func (c *CachedStats) GetDuplicateStats(ctx context.Context) (*models.DuplicateStats, error) {
	raw, err := c.rdb.Get(ctx, statsCacheKey).Bytes()
	switch {
	case err == nil:
		var stats models.DuplicateStats
		if jsonErr := json.Unmarshal(raw, &stats); jsonErr == nil {
			return &stats, nil
		}
		c.logger.Warn("Discarding unreadable stats snapshot", nil)
	case !stderrors.Is(err, redis.Nil):
		c.logger.Warn("Stats cache unavailable", map[string]interface{}{"error": err.Error()})
	}

	stats, err := c.next.GetDuplicateStats(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(stats); err == nil {
		if err := c.rdb.Set(ctx, statsCacheKey, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache stats snapshot", map[string]interface{}{"error": err.Error()})
		}
	}
	return stats, nil
}
