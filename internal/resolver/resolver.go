// Package resolver settles due markets against real-world results.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/oddslab/courtside/internal/domain"
)

// ChannelResolved carries resolution announcements on the signal bus.
const ChannelResolved = "markets.resolved"

// outcomeSource provides normalized game results.
type outcomeSource interface {
	GameResult(ctx context.Context, gameID string) (domain.GameOutcome, error)
}

// alerter pushes operator notifications. Optional.
type alerter interface {
	Alert(ctx context.Context, event, message string)
}

// Config tunes the resolver loop.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Window   time.Duration
}

// Resolver periodically scans for markets past their resolution time,
// fetches the game result, maps it onto an outcome index, and submits the
// settlement transaction. Every market is handled independently; one failure
// never aborts the tick.
type Resolver struct {
	chain    domain.ChainClient
	mkts     domain.MarketStore
	outcomes outcomeSource
	audit    domain.AuditStore
	cache    domain.MarketCache
	bus      domain.SignalBus
	notify   alerter
	cfg      Config
	logger   *slog.Logger
}

// New creates a Resolver. Audit, cache, bus, and notify are optional.
func New(chain domain.ChainClient, mkts domain.MarketStore, outcomes outcomeSource, audit domain.AuditStore, cache domain.MarketCache, bus domain.SignalBus, notify alerter, cfg Config, logger *slog.Logger) *Resolver {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &Resolver{
		chain:    chain,
		mkts:     mkts,
		outcomes: outcomes,
		audit:    audit,
		cache:    cache,
		bus:      bus,
		notify:   notify,
		cfg:      cfg,
		logger:   logger.With("component", "resolver"),
	}
}

// Runnable reports whether the resolver has what it needs to do work.
// Disabled or credential-less deployments start as a logged no-op instead of
// an error.
func (r *Resolver) Runnable() bool {
	return r.cfg.Enabled && r.chain != nil && r.outcomes != nil
}

// Run drives the resolver until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context) error {
	if !r.Runnable() {
		r.logger.Info("resolver inactive",
			"enabled", r.cfg.Enabled,
			"have_chain", r.chain != nil,
			"have_outcomes", r.outcomes != nil)
		<-ctx.Done()
		return ctx.Err()
	}

	r.logger.Info("resolver starting", "interval", r.cfg.Interval, "window", r.cfg.Window)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("resolver stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one resolution pass over the due window.
func (r *Resolver) Tick(ctx context.Context) {
	due, err := r.mkts.ListDueForResolution(ctx, r.cfg.Window)
	if err != nil {
		r.logger.Error("due query failed", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	r.logger.Debug("resolution pass", "due", len(due))

	for _, m := range due {
		if !m.DueForResolution(time.Now().UTC()) {
			continue
		}
		if err := r.resolveOne(ctx, m); err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				// The provider budget is shared; the rest of the pass would
				// fail the same way. Pick up where we left off next tick.
				r.logger.Warn("provider budget exhausted, deferring remaining markets")
				return
			}
			r.logger.Error("market resolution failed", "market", m.Address, "error", err)
		}
	}
}

// resolveOne settles a single market.
func (r *Resolver) resolveOne(ctx context.Context, m domain.Market) error {
	if m.GameID == "" {
		r.logger.Warn("market has no game binding, skipping", "market", m.Address)
		return nil
	}

	outcome, err := r.outcomes.GameResult(ctx, m.GameID)
	if err != nil {
		return fmt.Errorf("game result %s: %w", m.GameID, err)
	}

	idx, ok := domain.MapOutcome(m.Mode, m.Threshold, outcome)
	if !ok {
		r.logger.Debug("not yet resolvable", "market", m.Address, "game_id", m.GameID, "status", outcome.Status)
		return nil
	}

	return r.settle(ctx, m, idx, "resolver")
}

// ManualResolve settles a market with an operator-chosen outcome, bypassing
// the sports-data lookup.
func (r *Resolver) ManualResolve(ctx context.Context, address string, outcomeIndex int) error {
	if r.chain == nil {
		return fmt.Errorf("manual resolve: no chain client configured")
	}

	m, err := r.mkts.GetByAddress(ctx, address)
	if err != nil {
		return err
	}
	if m.IsResolved() {
		return domain.ErrMarketResolved
	}
	if outcomeIndex < 0 || outcomeIndex >= len(m.Outcomes) {
		return fmt.Errorf("%w: index %d with %d outcomes", domain.ErrInvalidOutcome, outcomeIndex, len(m.Outcomes))
	}

	return r.settle(ctx, m, outcomeIndex, "manual")
}

// settle submits the settlement transaction and converges local state. A
// market that turns out to be already settled on chain counts as success.
func (r *Resolver) settle(ctx context.Context, m domain.Market, outcomeIndex int, origin string) error {
	receipt, err := r.chain.SubmitTransaction(ctx, m.Address, "resolveMarket", big.NewInt(int64(outcomeIndex)))
	if err != nil {
		r.logAudit(ctx, "resolution_error", map[string]any{
			"market": m.Address, "outcome": outcomeIndex, "origin": origin, "error": err.Error(),
		})
		return fmt.Errorf("submit settlement: %w", err)
	}

	switch receipt.Status {
	case domain.SubmitOK:
		r.logger.Info("market settled", "market", m.Address, "outcome", outcomeIndex, "tx", receipt.TxHash, "origin", origin)
	case domain.SubmitAlreadyDone:
		r.logger.Info("market already settled on chain, converging", "market", m.Address, "outcome", outcomeIndex, "origin", origin)
	case domain.SubmitFailed:
		r.logAudit(ctx, "resolution_failed", map[string]any{
			"market": m.Address, "outcome": outcomeIndex, "origin": origin, "tx": receipt.TxHash, "reason": receipt.Reason,
		})
		r.alert(ctx, "resolution_failed", fmt.Sprintf("settlement of %s reverted: %s", m.Address, receipt.Reason))
		return fmt.Errorf("settlement reverted: %s", receipt.Reason)
	}

	if _, err := r.mkts.SetResolved(ctx, m.Address, outcomeIndex); err != nil {
		return fmt.Errorf("persist resolution: %w", err)
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, m.Address); err != nil {
			r.logger.Warn("cache invalidate failed", "market", m.Address, "error", err)
		}
	}

	r.logAudit(ctx, "market_resolved", map[string]any{
		"market": m.Address, "outcome": outcomeIndex, "origin": origin, "tx": receipt.TxHash, "status": string(receipt.Status),
	})
	r.alert(ctx, "market_resolved", fmt.Sprintf("market %s resolved to outcome %d", m.Address, outcomeIndex))
	r.publish(ctx, map[string]any{"market": m.Address, "outcome": outcomeIndex, "origin": origin})
	return nil
}

func (r *Resolver) logAudit(ctx context.Context, event string, detail map[string]any) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Log(ctx, event, detail); err != nil {
		r.logger.Warn("audit write failed", "event", event, "error", err)
	}
}

func (r *Resolver) alert(ctx context.Context, event, message string) {
	if r.notify == nil {
		return
	}
	r.notify.Alert(ctx, event, message)
}

func (r *Resolver) publish(ctx context.Context, payload any) {
	if r.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, ChannelResolved, data); err != nil {
		r.logger.Warn("bus publish failed", "channel", ChannelResolved, "error", err)
	}
}
