package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddslab/courtside/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a fixed window counter. The
// window key carries its bucket start, so the counter resets exactly on the
// window boundary rather than sliding.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

func rateLimitKey(key string, window time.Duration) string {
	bucket := time.Now().UnixNano() / int64(window)
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}

// Allow checks whether a request for the given key is permitted under the
// fixed window rate limit. It returns true if the request is allowed (and the
// request is counted), or false if the limit for the current window has been
// reached. Denied requests do not consume budget.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rateLimitKey(key, window)

	count, err := rl.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}

	// First hit in this window owns setting the expiry. The key must not
	// outlive its bucket, so the TTL covers the window plus slack.
	if count == 1 {
		if err := rl.rdb.Expire(ctx, k, window+time.Second).Err(); err != nil {
			return false, fmt.Errorf("redis: rate limit expire %s: %w", key, err)
		}
	}

	if count > int64(limit) {
		// Undo the increment so denied calls leave the window count intact.
		if err := rl.rdb.Decr(ctx, k).Err(); err != nil {
			return false, fmt.Errorf("redis: rate limit decr %s: %w", key, err)
		}
		return false, nil
	}
	return true, nil
}

// Remaining reports how much budget is left in the current window. A missing
// key means the window is untouched and the full limit remains.
func (rl *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := rl.rdb.Get(ctx, rateLimitKey(key, window)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return limit, nil
		}
		return 0, fmt.Errorf("redis: rate limit remaining %s: %w", key, err)
	}
	if count >= limit {
		return 0, nil
	}
	return limit - count, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
