package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/courtside/internal/domain"
	"github.com/oddslab/courtside/internal/service"
)

type memMarketStore struct {
	markets map[string]domain.Market
}

func newMemMarketStore(markets ...domain.Market) *memMarketStore {
	s := &memMarketStore{markets: make(map[string]domain.Market)}
	for _, m := range markets {
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

func (s *memMarketStore) ListActive(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if !m.IsResolved() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListAddresses(context.Context) ([]string, error) { return nil, nil }

func (s *memMarketStore) ListDueForResolution(context.Context, time.Duration) ([]domain.Market, error) {
	return nil, nil
}

func (s *memMarketStore) SetResolved(context.Context, string, int) (bool, error) {
	return false, nil
}

func (s *memMarketStore) UpdateTotals(context.Context, string, decimal.Decimal, decimal.Decimal) error {
	return nil
}

func (s *memMarketStore) Count(context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

type memEventStore struct {
	events []domain.MarketEvent
}

func (s *memEventStore) Insert(_ context.Context, ev domain.MarketEvent) (bool, error) {
	s.events = append(s.events, ev)
	return true, nil
}

func (s *memEventStore) InsertBatch(ctx context.Context, evs []domain.MarketEvent) error {
	for _, ev := range evs {
		if _, err := s.Insert(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *memEventStore) ListByMarket(_ context.Context, address string, _ domain.ListOpts) ([]domain.MarketEvent, error) {
	var out []domain.MarketEvent
	for _, ev := range s.events {
		if ev.MarketAddress == address {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memEventStore) CountByMarket(context.Context, string) (int64, error) { return 0, nil }

func (s *memEventStore) ListBefore(context.Context, time.Time, int) ([]domain.MarketEvent, error) {
	return nil, nil
}

func (s *memEventStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memSnapshotStore struct {
	snaps []domain.Snapshot
}

func (s *memSnapshotStore) Insert(_ context.Context, snap domain.Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *memSnapshotStore) Latest(context.Context, string) (domain.Snapshot, error) {
	return domain.Snapshot{}, domain.ErrNotFound
}

func (s *memSnapshotStore) ListByMarket(_ context.Context, address string, _ domain.ListOpts) ([]domain.Snapshot, error) {
	var out []domain.Snapshot
	for _, snap := range s.snaps {
		if snap.MarketAddress == address {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *memSnapshotStore) ListBefore(context.Context, time.Time, int) ([]domain.Snapshot, error) {
	return nil, nil
}

func (s *memSnapshotStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func testMarket(address string) domain.Market {
	return domain.Market{
		Address:  address,
		Question: "Lakers vs Celtics winner",
		Outcomes: []domain.OutcomeSlot{
			{Index: 0, Label: "Lakers"},
			{Index: 1, Label: "Celtics"},
		},
		Status:         domain.MarketStatusActive,
		ResolutionTime: time.Now().Add(time.Hour).UTC(),
		Volume:         decimal.NewFromInt(100),
		Liquidity:      decimal.NewFromInt(50),
	}
}

func newTestMux(mkts *memMarketStore, events *memEventStore, snaps *memSnapshotStore) *http.ServeMux {
	logger := slog.Default()
	svc := service.NewMarketService(mkts, events, snaps, nil, nil, logger)
	mh := NewMarketHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", mh.ListMarkets)
	mux.HandleFunc("GET /api/markets/{address}", mh.GetMarket)
	mux.HandleFunc("GET /api/markets/{address}/events", mh.ListEvents)
	mux.HandleFunc("GET /api/markets/{address}/snapshots", mh.ListSnapshots)
	mux.HandleFunc("GET /api/markets/{address}/forecast", mh.Forecast)
	return mux
}

func TestGetMarket(t *testing.T) {
	mux := newTestMux(newMemMarketStore(testMarket("0xabc")), &memEventStore{}, &memSnapshotStore{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/0xabc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "0xabc", m.Address)
	assert.Len(t, m.Outcomes, 2)
}

func TestGetMarketNotFound(t *testing.T) {
	mux := newTestMux(newMemMarketStore(), &memEventStore{}, &memSnapshotStore{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/0xmissing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMarkets(t *testing.T) {
	mux := newTestMux(newMemMarketStore(testMarket("0xabc"), testMarket("0xdef")), &memEventStore{}, &memSnapshotStore{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets?limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestListEvents(t *testing.T) {
	events := &memEventStore{}
	_, _ = events.Insert(context.Background(), domain.MarketEvent{
		MarketAddress: "0xabc",
		TxHash:        "0xt1",
		Kind:          domain.EventSharesPurchased,
	})
	mux := newTestMux(newMemMarketStore(testMarket("0xabc")), events, &memSnapshotStore{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/0xabc/events", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestForecastUnconfigured(t *testing.T) {
	mux := newTestMux(newMemMarketStore(testMarket("0xabc")), &memEventStore{}, &memSnapshotStore{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/0xabc/forecast", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type memAuditStore struct {
	entries []domain.AuditEntry
}

func (s *memAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.entries = append(s.entries, domain.AuditEntry{Event: event, Detail: detail})
	return nil
}

func (s *memAuditStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return s.entries, nil
}

func newResolveMux(audit domain.AuditStore) *http.ServeMux {
	logger := slog.Default()
	rh := NewResolveHandler(nil, audit, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets/{address}/resolve", rh.ManualResolve)
	mux.HandleFunc("GET /api/audit", rh.ListAudit)
	return mux
}

func TestManualResolveWithoutResolver(t *testing.T) {
	mux := newResolveMux(&memAuditStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/markets/0xabc/resolve", strings.NewReader(`{"outcome":1}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListAudit(t *testing.T) {
	audit := &memAuditStore{}
	_ = audit.Log(context.Background(), "market_resolved", map[string]any{"market": "0xabc"})
	mux := newResolveMux(audit)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestParseListOptsBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/markets?limit=9999&offset=20&since=2026-01-01T00:00:00Z", nil)
	opts := parseListOpts(req)

	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 20, opts.Offset)
	require.NotNil(t, opts.Since)
	assert.Equal(t, 2026, opts.Since.Year())
	assert.Nil(t, opts.Until)
}
