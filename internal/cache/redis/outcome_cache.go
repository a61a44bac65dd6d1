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

// OutcomeCache implements domain.OutcomeCache using Redis string keys with
// JSON-serialized GameOutcome data. TTLs are supplied by the caller: finished
// results are effectively immutable and get long TTLs, schedule lookups churn
// and get short ones.
type OutcomeCache struct {
	rdb *redis.Client
}

// NewOutcomeCache creates an OutcomeCache backed by the given Client.
func NewOutcomeCache(c *Client) *OutcomeCache {
	return &OutcomeCache{rdb: c.Underlying()}
}

func outcomeKey(gameID, kind string) string {
	return "outcome:" + kind + ":" + gameID
}

// Get retrieves a cached game outcome. It returns domain.ErrNotFound when the
// key does not exist or has expired.
func (oc *OutcomeCache) Get(ctx context.Context, gameID, kind string) (domain.GameOutcome, error) {
	data, err := oc.rdb.Get(ctx, outcomeKey(gameID, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.GameOutcome{}, domain.ErrNotFound
		}
		return domain.GameOutcome{}, fmt.Errorf("redis: get outcome %s/%s: %w", kind, gameID, err)
	}

	var outcome domain.GameOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return domain.GameOutcome{}, fmt.Errorf("redis: unmarshal outcome %s/%s: %w", kind, gameID, err)
	}
	return outcome, nil
}

// Put stores a game outcome with the given TTL. A zero TTL stores nothing;
// uncacheable results simply stay upstream.
func (oc *OutcomeCache) Put(ctx context.Context, gameID, kind string, outcome domain.GameOutcome, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("redis: marshal outcome %s/%s: %w", kind, gameID, err)
	}

	if err := oc.rdb.Set(ctx, outcomeKey(gameID, kind), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put outcome %s/%s: %w", kind, gameID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OutcomeCache = (*OutcomeCache)(nil)
