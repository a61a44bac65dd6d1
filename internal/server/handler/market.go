package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/oddslab/courtside/internal/domain"
	"github.com/oddslab/courtside/internal/service"
)

// MarketHandler serves market read endpoints: listings, single lookups, the
// event ledger, price snapshots, and forecasts.
type MarketHandler struct {
	markets *service.MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// ListMarkets returns active markets.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListActive(r.Context(), opts)
	if err != nil {
		h.logger.Error("list markets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"count":   len(markets),
	})
}

// GetMarket returns a single market by contract address.
// GET /api/markets/{address}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("get market failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load market")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// ListEvents returns the chain event ledger for a market, oldest first.
// GET /api/markets/{address}/events
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	events, err := h.markets.EventsFor(r.Context(), address, parseListOpts(r))
	if err != nil {
		h.logger.Error("list events failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// ListSnapshots returns the price snapshot series for a market, newest first.
// GET /api/markets/{address}/snapshots
func (h *MarketHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	snaps, err := h.markets.SnapshotsFor(r.Context(), address, parseListOpts(r))
	if err != nil {
		h.logger.Error("list snapshots failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

// Forecast returns a model-predicted outcome distribution for an open market.
// GET /api/markets/{address}/forecast
func (h *MarketHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	forecast, err := h.markets.Forecast(r.Context(), address)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrMarketResolved):
			writeError(w, http.StatusConflict, "market already resolved")
		default:
			h.logger.Error("forecast failed", "address", address, "error", err)
			writeError(w, http.StatusBadGateway, "forecast unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, forecast)
}
