package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/colonyforge/marketd/internal/domain"
)

// marketTTL bounds staleness for read paths that tolerate it (listings, the
// metrics collector). Mutating services invalidate explicitly, so the TTL is
// only a backstop.
const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache with one JSON value per market
// under marketd:market:{id}.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(id string) string { return ns("market:" + id) }

// Set stores a market snapshot with the backstop TTL.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(market.ID), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get retrieves a market snapshot by id, returning domain.ErrNotFound on a
// miss. An entry that no longer unmarshals (schema drift across deploys) is
// dropped and reported as a miss so the caller falls back to the ledger.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		_ = mc.rdb.Del(ctx, marketKey(id)).Err()
		return domain.Market{}, domain.ErrNotFound
	}
	return market, nil
}

// Invalidate removes a market snapshot after a mutation.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
