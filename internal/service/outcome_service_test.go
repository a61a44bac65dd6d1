package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/courtside/internal/domain"
	"github.com/oddslab/courtside/internal/platform/sportsfeed"
)

type fakeFeed struct {
	games    map[string]sportsfeed.Game
	schedule []sportsfeed.Game
	calls    int
}

func (f *fakeFeed) GetGame(_ context.Context, gameID string) (sportsfeed.Game, error) {
	f.calls++
	g, ok := f.games[gameID]
	if !ok {
		return sportsfeed.Game{}, domain.ErrNotFound
	}
	return g, nil
}

func (f *fakeFeed) GetSchedule(_ context.Context, _ time.Time) ([]sportsfeed.Game, error) {
	f.calls++
	return f.schedule, nil
}

type cacheEntry struct {
	outcome domain.GameOutcome
	ttl     time.Duration
}

type memOutcomeCache struct {
	entries map[string]cacheEntry
}

func newMemOutcomeCache() *memOutcomeCache {
	return &memOutcomeCache{entries: make(map[string]cacheEntry)}
}

func (c *memOutcomeCache) Get(_ context.Context, gameID, kind string) (domain.GameOutcome, error) {
	e, ok := c.entries[kind+":"+gameID]
	if !ok {
		return domain.GameOutcome{}, domain.ErrNotFound
	}
	return e.outcome, nil
}

func (c *memOutcomeCache) Put(_ context.Context, gameID, kind string, outcome domain.GameOutcome, ttl time.Duration) error {
	c.entries[kind+":"+gameID] = cacheEntry{outcome: outcome, ttl: ttl}
	return nil
}

// memLimiter grants a fixed number of permits, then denies until Reset.
type memLimiter struct {
	used  int
	limit int
}

func (l *memLimiter) Allow(_ context.Context, _ string, limit int, _ time.Duration) (bool, error) {
	l.limit = limit
	if l.used >= limit {
		return false, nil
	}
	l.used++
	return true, nil
}

func (l *memLimiter) Reset() { l.used = 0 }

func newOutcomeService(feed *fakeFeed, cache *memOutcomeCache, limiter *memLimiter) *OutcomeService {
	return NewOutcomeService(feed, cache, limiter, OutcomeServiceConfig{
		RateLimitMax:    3,
		RateLimitWindow: time.Minute,
		FinishedTTL:     24 * time.Hour,
		ScheduleTTL:     time.Minute,
	}, slog.Default())
}

func TestGameResultFetchesAndCaches(t *testing.T) {
	feed := &fakeFeed{games: map[string]sportsfeed.Game{
		"g1": {ID: "g1", Status: "final", HomeScore: 3, AwayScore: 1},
	}}
	cache := newMemOutcomeCache()
	svc := newOutcomeService(feed, cache, &memLimiter{})

	out, err := svc.GameResult(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.GameStatusFinished, out.Status)
	assert.Equal(t, domain.WinnerHome, out.Winner)
	assert.Equal(t, 1, feed.calls)

	// Finished results get the long TTL.
	entry := cache.entries["result:g1"]
	assert.Equal(t, 24*time.Hour, entry.ttl)
}

func TestGameResultCacheHitSkipsBudget(t *testing.T) {
	feed := &fakeFeed{games: map[string]sportsfeed.Game{
		"g1": {ID: "g1", Status: "final", HomeScore: 2, AwayScore: 0},
	}}
	cache := newMemOutcomeCache()
	limiter := &memLimiter{}
	svc := newOutcomeService(feed, cache, limiter)

	_, err := svc.GameResult(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, 1, limiter.used)

	// Second lookup is served from the cache without touching the budget or
	// the provider.
	_, err = svc.GameResult(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.used)
	assert.Equal(t, 1, feed.calls)
}

func TestGameResultRateLimitBoundary(t *testing.T) {
	feed := &fakeFeed{games: map[string]sportsfeed.Game{
		"g1": {ID: "g1", Status: "scheduled"},
		"g2": {ID: "g2", Status: "scheduled"},
		"g3": {ID: "g3", Status: "scheduled"},
		"g4": {ID: "g4", Status: "scheduled"},
	}}
	limiter := &memLimiter{}
	svc := newOutcomeService(feed, newMemOutcomeCache(), limiter)

	// The first N requests in a window succeed.
	for _, id := range []string{"g1", "g2", "g3"} {
		_, err := svc.GameResult(context.Background(), id)
		require.NoError(t, err)
	}

	// Request N+1 fails fast without reaching the provider.
	_, err := svc.GameResult(context.Background(), "g4")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3, feed.calls)

	// A fresh window restores the full budget.
	limiter.Reset()
	_, err = svc.GameResult(context.Background(), "g4")
	assert.NoError(t, err)
}

func TestGameResultPendingUsesShortTTL(t *testing.T) {
	feed := &fakeFeed{games: map[string]sportsfeed.Game{
		"g1": {ID: "g1", Status: "in_progress", HomeScore: 10, AwayScore: 7},
	}}
	cache := newMemOutcomeCache()
	svc := newOutcomeService(feed, cache, &memLimiter{})

	out, err := svc.GameResult(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, out.Finished())
	assert.Equal(t, time.Minute, cache.entries["result:g1"].ttl)
}

func TestScheduleForCachesEachGame(t *testing.T) {
	feed := &fakeFeed{schedule: []sportsfeed.Game{
		{ID: "g1", Status: "scheduled"},
		{ID: "g2", Status: "scheduled"},
	}}
	cache := newMemOutcomeCache()
	svc := newOutcomeService(feed, cache, &memLimiter{})

	outcomes, err := svc.ScheduleFor(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Contains(t, cache.entries, "schedule:g1")
	assert.Contains(t, cache.entries, "schedule:g2")
}
