package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oddslab/courtside/internal/domain"
	"github.com/oddslab/courtside/internal/resolver"
)

// ResolveHandler serves the operator surface: manual market settlement and the
// audit trail.
type ResolveHandler struct {
	resolver *resolver.Resolver
	audit    domain.AuditStore
	logger   *slog.Logger
}

// NewResolveHandler creates a ResolveHandler. The resolver may be nil when the
// process runs without settlement capability; manual resolution then returns
// 503.
func NewResolveHandler(res *resolver.Resolver, audit domain.AuditStore, logger *slog.Logger) *ResolveHandler {
	return &ResolveHandler{
		resolver: res,
		audit:    audit,
		logger:   logHandler(logger, "resolve"),
	}
}

type resolveRequest struct {
	Outcome *int `json:"outcome"`
}

// ManualResolve settles a market with an operator-chosen winning outcome.
// POST /api/markets/{address}/resolve
func (h *ResolveHandler) ManualResolve(w http.ResponseWriter, r *http.Request) {
	address := pathParam(r, "address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	if h.resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "resolver not available in this mode")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Outcome == nil {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	err := h.resolver.ManualResolve(r.Context(), address, *req.Outcome)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrMarketResolved):
			writeError(w, http.StatusConflict, "market already resolved")
		case errors.Is(err, domain.ErrInvalidOutcome):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("manual resolve failed", "address", address, "error", err)
			writeError(w, http.StatusInternalServerError, "settlement failed")
		}
		return
	}

	h.logger.Info("market manually resolved", "address", address, "outcome", *req.Outcome)
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"outcome": *req.Outcome,
		"status":  "resolved",
	})
}

// ListAudit returns recent audit log entries, newest first.
// GET /api/audit
func (h *ResolveHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log not available")
		return
	}

	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.Error("list audit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
