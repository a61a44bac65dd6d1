package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddslab/courtside/internal/domain"
	"github.com/oddslab/courtside/internal/platform/sportsfeed"
)

const (
	resultKind   = "result"
	scheduleKind = "schedule"

	// limiterKey is the shared budget key: the provider meters the account,
	// not individual games.
	limiterKey = "sportsfeed"
)

// gameFeed is the provider surface OutcomeService consumes.
type gameFeed interface {
	GetGame(ctx context.Context, gameID string) (sportsfeed.Game, error)
	GetSchedule(ctx context.Context, date time.Time) ([]sportsfeed.Game, error)
}

// OutcomeServiceConfig tunes the provider budget and cache retention.
type OutcomeServiceConfig struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
	FinishedTTL     time.Duration
	ScheduleTTL     time.Duration
}

// OutcomeService mediates every sports-data lookup: cache first, then a
// fixed-window budget check, then the provider. Cache hits never consume
// budget, and an exhausted budget fails fast with domain.ErrRateLimited
// rather than queueing.
type OutcomeService struct {
	feed    gameFeed
	cache   domain.OutcomeCache
	limiter domain.RateLimiter
	cfg     OutcomeServiceConfig
	logger  *slog.Logger
}

// NewOutcomeService creates an OutcomeService.
func NewOutcomeService(feed gameFeed, cache domain.OutcomeCache, limiter domain.RateLimiter, cfg OutcomeServiceConfig, logger *slog.Logger) *OutcomeService {
	return &OutcomeService{
		feed:    feed,
		cache:   cache,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.With("component", "outcome_service"),
	}
}

// GameResult returns the normalized outcome for a game. Finished results are
// cached long; games still in play are cached on the short schedule TTL so a
// later tick sees the final score.
func (s *OutcomeService) GameResult(ctx context.Context, gameID string) (domain.GameOutcome, error) {
	cached, err := s.cache.Get(ctx, gameID, resultKind)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		// A broken cache must not take resolution down; fall through to the
		// provider under the normal budget.
		s.logger.Warn("outcome cache read failed", "game_id", gameID, "error", err)
	}

	if err := s.consumeBudget(ctx); err != nil {
		return domain.GameOutcome{}, err
	}

	game, err := s.feed.GetGame(ctx, gameID)
	if err != nil {
		return domain.GameOutcome{}, fmt.Errorf("fetch game %s: %w", gameID, err)
	}

	outcome := game.Normalize()
	if putErr := s.cache.Put(ctx, gameID, resultKind, outcome, s.resultTTL(outcome)); putErr != nil {
		s.logger.Warn("outcome cache write failed", "game_id", gameID, "error", putErr)
	}
	return outcome, nil
}

// ScheduleFor returns the normalized outcomes for the games on a given date.
// Each game is cached individually on the short schedule TTL.
func (s *OutcomeService) ScheduleFor(ctx context.Context, date time.Time) ([]domain.GameOutcome, error) {
	if err := s.consumeBudget(ctx); err != nil {
		return nil, err
	}

	games, err := s.feed.GetSchedule(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}

	outcomes := make([]domain.GameOutcome, 0, len(games))
	for _, g := range games {
		outcome := g.Normalize()
		if putErr := s.cache.Put(ctx, g.ID, scheduleKind, outcome, s.cfg.ScheduleTTL); putErr != nil {
			s.logger.Warn("schedule cache write failed", "game_id", g.ID, "error", putErr)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *OutcomeService) consumeBudget(ctx context.Context) error {
	allowed, err := s.limiter.Allow(ctx, limiterKey, s.cfg.RateLimitMax, s.cfg.RateLimitWindow)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *OutcomeService) resultTTL(outcome domain.GameOutcome) time.Duration {
	if outcome.Finished() {
		return s.cfg.FinishedTTL
	}
	return s.cfg.ScheduleTTL
}
