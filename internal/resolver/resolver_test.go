package resolver

import (
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/courtside/internal/domain"
)

const marketAddr = "0xaaa0000000000000000000000000000000000001"

type submitCall struct {
	address string
	fn      string
	outcome int64
}

type fakeChain struct {
	receipt domain.SubmitReceipt
	err     error
	calls   []submitCall
}

func (f *fakeChain) CurrentHeight(context.Context) (uint64, error) { return 0, nil }

func (f *fakeChain) QueryLogs(context.Context, string, string, uint64, uint64) ([]domain.ChainLog, error) {
	return nil, nil
}

func (f *fakeChain) ReadState(context.Context, string, string, ...any) ([]any, error) {
	return nil, nil
}

func (f *fakeChain) SubmitTransaction(_ context.Context, address, fn string, args ...any) (domain.SubmitReceipt, error) {
	call := submitCall{address: address, fn: fn}
	if len(args) == 1 {
		call.outcome = args[0].(*big.Int).Int64()
	}
	f.calls = append(f.calls, call)
	return f.receipt, f.err
}

func (f *fakeChain) Subscribe(context.Context, string, string, func(domain.ChainLog)) (func(), error) {
	return func() {}, nil
}

type memMarketStore struct {
	markets map[string]domain.Market
}

func newMemMarketStore(ms ...domain.Market) *memMarketStore {
	s := &memMarketStore{markets: make(map[string]domain.Market)}
	for _, m := range ms {
		s.markets[m.Address] = m
	}
	return s
}

func (s *memMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.markets[m.Address] = m
	return nil
}

func (s *memMarketStore) GetByAddress(_ context.Context, address string) (domain.Market, error) {
	m, ok := s.markets[address]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) ListActive(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (s *memMarketStore) ListAddresses(context.Context) ([]string, error) { return nil, nil }

func (s *memMarketStore) ListDueForResolution(_ context.Context, window time.Duration) ([]domain.Market, error) {
	now := time.Now().UTC()
	var due []domain.Market
	for _, m := range s.markets {
		if m.IsResolved() {
			continue
		}
		if m.ResolutionTime.After(now.Add(-window)) && m.ResolutionTime.Before(now.Add(window)) {
			due = append(due, m)
		}
	}
	return due, nil
}

func (s *memMarketStore) SetResolved(_ context.Context, address string, winningOutcome int) (bool, error) {
	m, ok := s.markets[address]
	if !ok {
		return false, domain.ErrNotFound
	}
	if m.IsResolved() {
		return false, nil
	}
	m.Status = domain.MarketStatusResolved
	m.WinningOutcome = &winningOutcome
	s.markets[address] = m
	return true, nil
}

func (s *memMarketStore) UpdateTotals(context.Context, string, decimal.Decimal, decimal.Decimal) error {
	return nil
}

func (s *memMarketStore) Count(context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

type fakeOutcomes struct {
	results map[string]domain.GameOutcome
	err     error
	calls   int
}

func (f *fakeOutcomes) GameResult(_ context.Context, gameID string) (domain.GameOutcome, error) {
	f.calls++
	if f.err != nil {
		return domain.GameOutcome{}, f.err
	}
	return f.results[gameID], nil
}

func dueMarket() domain.Market {
	return domain.Market{
		Address:        marketAddr,
		Status:         domain.MarketStatusActive,
		ResolutionTime: time.Now().UTC().Add(-10 * time.Minute),
		Outcomes: []domain.OutcomeSlot{
			{Index: 0, Label: "Home"}, {Index: 1, Label: "Away"}, {Index: 2, Label: "Draw"},
		},
		GameID: "nba-2026-001",
		Mode:   domain.ModeWinner,
	}
}

func finishedGame(home, away int) domain.GameOutcome {
	return domain.GameOutcome{
		GameID:    "nba-2026-001",
		Status:    domain.GameStatusFinished,
		HomeScore: home,
		AwayScore: away,
		Winner:    domain.DeriveWinner(home, away),
	}
}

func newTestResolver(chain *fakeChain, mkts *memMarketStore, outcomes *fakeOutcomes) *Resolver {
	return New(chain, mkts, outcomes, nil, nil, nil, nil, Config{
		Enabled:  true,
		Interval: time.Minute,
		Window:   time.Hour,
	}, slog.Default())
}

func TestTickSettlesDueMarket(t *testing.T) {
	chain := &fakeChain{receipt: domain.SubmitReceipt{Status: domain.SubmitOK, TxHash: "0xtx1"}}
	mkts := newMemMarketStore(dueMarket())
	outcomes := &fakeOutcomes{results: map[string]domain.GameOutcome{
		"nba-2026-001": finishedGame(3, 1),
	}}

	r := newTestResolver(chain, mkts, outcomes)
	r.Tick(context.Background())

	require.Len(t, chain.calls, 1)
	assert.Equal(t, marketAddr, chain.calls[0].address)
	assert.Equal(t, "resolveMarket", chain.calls[0].fn)
	assert.Equal(t, int64(0), chain.calls[0].outcome, "home win maps to outcome 0")

	m, err := mkts.GetByAddress(context.Background(), marketAddr)
	require.NoError(t, err)
	assert.True(t, m.IsResolved())
	require.NotNil(t, m.WinningOutcome)
	assert.Equal(t, 0, *m.WinningOutcome)
}

func TestTickAlreadySettledOnChainCountsAsSuccess(t *testing.T) {
	chain := &fakeChain{receipt: domain.SubmitReceipt{Status: domain.SubmitAlreadyDone}}
	mkts := newMemMarketStore(dueMarket())
	outcomes := &fakeOutcomes{results: map[string]domain.GameOutcome{
		"nba-2026-001": finishedGame(0, 2),
	}}

	r := newTestResolver(chain, mkts, outcomes)
	r.Tick(context.Background())

	// Local state converges to the chain's view.
	m, err := mkts.GetByAddress(context.Background(), marketAddr)
	require.NoError(t, err)
	assert.True(t, m.IsResolved())
	require.NotNil(t, m.WinningOutcome)
	assert.Equal(t, 1, *m.WinningOutcome)
}

func TestTickRevertedSettlementKeepsMarketActive(t *testing.T) {
	chain := &fakeChain{receipt: domain.SubmitReceipt{Status: domain.SubmitFailed, Reason: "transaction reverted"}}
	mkts := newMemMarketStore(dueMarket())
	outcomes := &fakeOutcomes{results: map[string]domain.GameOutcome{
		"nba-2026-001": finishedGame(3, 1),
	}}

	r := newTestResolver(chain, mkts, outcomes)
	r.Tick(context.Background())

	m, err := mkts.GetByAddress(context.Background(), marketAddr)
	require.NoError(t, err)
	assert.False(t, m.IsResolved(), "a reverted settlement must not mark the market resolved")
}

func TestTickPendingGameIsSkipped(t *testing.T) {
	chain := &fakeChain{receipt: domain.SubmitReceipt{Status: domain.SubmitOK}}
	mkts := newMemMarketStore(dueMarket())
	outcomes := &fakeOutcomes{results: map[string]domain.GameOutcome{
		"nba-2026-001": {GameID: "nba-2026-001", Status: domain.GameStatusPending},
	}}

	r := newTestResolver(chain, mkts, outcomes)
	r.Tick(context.Background())

	assert.Empty(t, chain.calls, "an unfinished game never triggers settlement")
	m, _ := mkts.GetByAddress(context.Background(), marketAddr)
	assert.False(t, m.IsResolved())
}

func TestTickRateLimitDefersPass(t *testing.T) {
	chain := &fakeChain{receipt: domain.SubmitReceipt{Status: domain.SubmitOK}}
	second := dueMarket()
	second.Address = "0xaaa0000000000000000000000000000000000002"
	second.GameID = "nba-2026-002"
	mkts := newMemMarketStore(dueMarket(), second)
	outcomes := &fakeOutcomes{err: domain.ErrRateLimited}

	r := newTestResolver(chain, mkts, outcomes)
	r.Tick(context.Background())

	assert.Equal(t, 1, outcomes.calls, "the pass stops at the first budget rejection")
	assert.Empty(t, chain.calls)
}

func TestTickSpreadMode(t *testing.T) {
	m := dueMarket()
	m.Mode = domain.ModeSpread
	m.Threshold = 3.5
	m.Outcomes = []domain.OutcomeSlot{{Index: 0, Label: "Cover"}, {Index: 1, Label: "No cover"}}

	chain := &fakeChain{receipt: domain.SubmitReceipt{Status: domain.SubmitOK}}
	mkts := newMemMarketStore(m)
	outcomes := &fakeOutcomes{results: map[string]domain.GameOutcome{
		"nba-2026-001": finishedGame(28, 24),
	}}

	r := newTestResolver(chain, mkts, outcomes)
	r.Tick(context.Background())

	require.Len(t, chain.calls, 1)
	assert.Equal(t, int64(0), chain.calls[0].outcome, "margin 4 covers the 3.5 spread")
}

func TestManualResolve(t *testing.T) {
	chain := &fakeChain{receipt: domain.SubmitReceipt{Status: domain.SubmitOK, TxHash: "0xtx2"}}
	mkts := newMemMarketStore(dueMarket())
	r := newTestResolver(chain, mkts, &fakeOutcomes{})

	require.NoError(t, r.ManualResolve(context.Background(), marketAddr, 2))

	require.Len(t, chain.calls, 1)
	assert.Equal(t, int64(2), chain.calls[0].outcome)
	m, _ := mkts.GetByAddress(context.Background(), marketAddr)
	assert.True(t, m.IsResolved())
}

func TestManualResolveRejections(t *testing.T) {
	resolved := dueMarket()
	resolved.Status = domain.MarketStatusResolved
	mkts := newMemMarketStore(resolved)
	r := newTestResolver(&fakeChain{}, mkts, &fakeOutcomes{})

	err := r.ManualResolve(context.Background(), marketAddr, 0)
	assert.ErrorIs(t, err, domain.ErrMarketResolved)

	active := dueMarket()
	active.Address = "0xaaa0000000000000000000000000000000000003"
	mkts = newMemMarketStore(active)
	r = newTestResolver(&fakeChain{}, mkts, &fakeOutcomes{})

	err = r.ManualResolve(context.Background(), active.Address, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)

	err = r.ManualResolve(context.Background(), "0xmissing", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunnableGuards(t *testing.T) {
	r := New(nil, newMemMarketStore(), nil, nil, nil, nil, nil, Config{Enabled: true}, slog.Default())
	assert.False(t, r.Runnable(), "missing chain client disables the loop")

	r = newTestResolver(&fakeChain{}, newMemMarketStore(), &fakeOutcomes{})
	r.cfg.Enabled = false
	assert.False(t, r.Runnable())
}
