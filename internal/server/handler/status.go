package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/oddslab/courtside/internal/domain"
	"github.com/oddslab/courtside/internal/indexer"
)

// StatusFunc reports the indexer's current lifecycle state. Nil when the
// process runs without an indexer (e.g. serve-only mode).
type StatusFunc func(ctx context.Context) indexer.Status

// StatusHandler serves the operational status endpoint.
type StatusHandler struct {
	indexerStatus StatusFunc
	markets       domain.MarketStore
	mode          string
	startedAt     time.Time
	logger        *slog.Logger
}

// NewStatusHandler creates a StatusHandler. The mode string names the process
// mode the binary was started in.
func NewStatusHandler(status StatusFunc, markets domain.MarketStore, mode string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		indexerStatus: status,
		markets:       markets,
		mode:          mode,
		startedAt:     time.Now().UTC(),
		logger:        logHandler(logger, "status"),
	}
}

// GetStatus reports the process mode, uptime, indexer state, and market count.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if h.indexerStatus != nil {
		resp["indexer"] = h.indexerStatus(r.Context())
	}

	if h.markets != nil {
		count, err := h.markets.Count(r.Context())
		if err != nil {
			h.logger.Warn("market count failed", "error", err)
		} else {
			resp["markets"] = count
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
