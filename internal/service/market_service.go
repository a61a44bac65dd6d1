package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddslab/courtside/internal/domain"
)

// forecastHistoryDepth is how many recent snapshots feed the forecast
// feature vector.
const forecastHistoryDepth = 24

// predictor is the forecasting service surface MarketService consumes.
type predictor interface {
	Configured() bool
	Predict(ctx context.Context, features domain.ForecastFeatures) (domain.Forecast, error)
}

// MarketService serves the read path: market lookups through the cache,
// event and snapshot listings, and forecast requests built from stored
// market state.
type MarketService struct {
	markets   domain.MarketStore
	events    domain.EventStore
	snapshots domain.SnapshotStore
	cache     domain.MarketCache
	predictor predictor
	logger    *slog.Logger
}

// NewMarketService creates a MarketService. The cache and predictor are
// optional; a nil cache reads through to the store and a nil predictor makes
// Forecast return an error.
func NewMarketService(
	markets domain.MarketStore,
	events domain.EventStore,
	snapshots domain.SnapshotStore,
	cache domain.MarketCache,
	pred predictor,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:   markets,
		events:    events,
		snapshots: snapshots,
		cache:     cache,
		predictor: pred,
		logger:    logger.With("component", "market_service"),
	}
}

// GetMarket returns a market by address, serving from the cache when
// possible.
func (s *MarketService) GetMarket(ctx context.Context, address string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, address); err == nil {
			return m, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("market cache read failed", "address", address, "error", err)
		}
	}

	m, err := s.markets.GetByAddress(ctx, address)
	if err != nil {
		return domain.Market{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.Warn("market cache write failed", "address", address, "error", err)
		}
	}
	return m, nil
}

// ListActive returns active markets.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.markets.ListActive(ctx, opts)
}

// EventsFor returns the event ledger for a market.
func (s *MarketService) EventsFor(ctx context.Context, address string, opts domain.ListOpts) ([]domain.MarketEvent, error) {
	return s.events.ListByMarket(ctx, address, opts)
}

// SnapshotsFor returns the snapshot series for a market.
func (s *MarketService) SnapshotsFor(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Snapshot, error) {
	return s.snapshots.ListByMarket(ctx, address, opts)
}

// Invalidate drops a market from the cache after a state change.
func (s *MarketService) Invalidate(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, address); err != nil {
		s.logger.Warn("market cache invalidate failed", "address", address, "error", err)
	}
}

// Forecast builds the feature vector for a market from its stored state and
// asks the forecasting service for a probability distribution.
func (s *MarketService) Forecast(ctx context.Context, address string) (domain.Forecast, error) {
	if s.predictor == nil || !s.predictor.Configured() {
		return domain.Forecast{}, fmt.Errorf("forecast service not configured")
	}

	m, err := s.GetMarket(ctx, address)
	if err != nil {
		return domain.Forecast{}, err
	}
	if m.IsResolved() {
		return domain.Forecast{}, domain.ErrMarketResolved
	}

	features := domain.ForecastFeatures{
		TotalVolume:    m.Volume.String(),
		TotalLiquidity: m.Liquidity.String(),
		ResolutionTime: m.ResolutionTime.UTC().Format(time.RFC3339),
		OutcomeCount:   len(m.Outcomes),
		Outcomes:       m.Outcomes,
	}

	history, err := s.snapshots.ListByMarket(ctx, address, domain.ListOpts{Limit: forecastHistoryDepth})
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("load snapshot history: %w", err)
	}
	if len(history) > 0 {
		features.Prices = priceStrings(history[0])
		for _, snap := range history {
			features.History = append(features.History, struct {
				Prices []string `json:"prices"`
			}{Prices: priceStrings(snap)})
		}
	}

	return s.predictor.Predict(ctx, features)
}

func priceStrings(snap domain.Snapshot) []string {
	prices := make([]string, len(snap.Prices))
	for i, p := range snap.Prices {
		prices[i] = p.String()
	}
	return prices
}
