package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantpair/pairtrader/internal/domain"
)

// BaselineCache implements domain.BaselineCache using JSON values at key
// "baseline:{pairID}" with a TTL, so a restarted process can warm-start from
// a still-fresh baseline instead of blocking on a full historical fetch.
type BaselineCache struct {
	rdb *redis.Client
}

// NewBaselineCache creates a BaselineCache backed by the given Client.
func NewBaselineCache(c *Client) *BaselineCache {
	return &BaselineCache{rdb: c.Underlying()}
}

func baselineKey(pairID string) string {
	return "baseline:" + pairID
}

// Set stores the baseline with the given TTL. A non-positive TTL stores it
// without expiry.
func (bc *BaselineCache) Set(ctx context.Context, baseline domain.PairBaseline, ttl time.Duration) error {
	payload, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("redis: marshal baseline %s: %w", baseline.PairID, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := bc.rdb.Set(ctx, baselineKey(baseline.PairID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set baseline %s: %w", baseline.PairID, err)
	}
	return nil
}

// Get retrieves the cached baseline for a pair. It returns domain.ErrNotFound
// when the key does not exist or has expired.
func (bc *BaselineCache) Get(ctx context.Context, pairID string) (domain.PairBaseline, error) {
	payload, err := bc.rdb.Get(ctx, baselineKey(pairID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PairBaseline{}, domain.ErrNotFound
		}
		return domain.PairBaseline{}, fmt.Errorf("redis: get baseline %s: %w", pairID, err)
	}

	var baseline domain.PairBaseline
	if err := json.Unmarshal(payload, &baseline); err != nil {
		return domain.PairBaseline{}, fmt.Errorf("redis: decode baseline %s: %w", pairID, err)
	}
	return baseline, nil
}

// Compile-time interface check.
var _ domain.BaselineCache = (*BaselineCache)(nil)
