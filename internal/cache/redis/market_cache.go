package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddslab/courtside/internal/domain"
)

const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using Redis string keys with
// JSON-serialized Market data, keyed by contract address.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(address string) string { return "market:" + address }

// Set stores a Market in the cache with a 5-minute TTL.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.Address, err)
	}

	if err := mc.rdb.Set(ctx, marketKey(market.Address), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.Address, err)
	}
	return nil
}

// Get retrieves a Market by its contract address from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, address string) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", address, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", address, err)
	}
	return market, nil
}

// Invalidate removes a Market from the cache. Called after writes that change
// market state (resolution, totals updates).
func (mc *MarketCache) Invalidate(ctx context.Context, address string) error {
	if err := mc.rdb.Del(ctx, marketKey(address)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", address, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
