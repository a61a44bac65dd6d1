package domain

import (
	"context"
	"time"
)

// OutcomeCache is the cache-aside store for normalized game outcomes, keyed
// by (game, data kind). Get returns ErrNotFound for missing or expired
// entries. Put is best-effort and idempotent: a duplicate write within the
// same key+TTL window is ignored.
type OutcomeCache interface {
	Get(ctx context.Context, gameID, kind string) (GameOutcome, error)
	Put(ctx context.Context, gameID, kind string, outcome GameOutcome, ttl time.Duration) error
}

// MarketCache provides fast market metadata lookups for the read path.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, address string) (Market, error)
	Invalidate(ctx context.Context, address string) error
}

// RateLimiter enforces a fixed-window request budget. Allow reports whether
// the request fits the budget for the current window; when it does, the
// request is counted. Exceeding the budget never blocks or queues.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out of lifecycle events (market created,
// market resolved, snapshot appended) plus durable streams for audit trails.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
