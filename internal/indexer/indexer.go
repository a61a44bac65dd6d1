// Package indexer ingests on-chain market events into the store and keeps
// per-market snapshots current.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddslab/courtside/internal/domain"
)

// State is the indexer lifecycle state.
type State string

const (
	StateStopped     State = "stopped"
	StateBackfilling State = "backfilling"
	StateLive        State = "live"
)

// marketEventNames are the contract events ingested for every watched market.
var marketEventNames = []string{
	"SharesPurchased",
	"SharesSold",
	"LiquidityAdded",
	"LiquidityRemoved",
	"MarketResolved",
}

// Bus channels for downstream fan-out.
const (
	ChannelMarketCreated  = "markets.created"
	ChannelMarketResolved = "markets.resolved"
	ChannelSnapshot       = "markets.snapshot"
)

// Config tunes the indexer.
type Config struct {
	FactoryAddress string
	StartBlock     uint64
	BatchSize      uint64
	PollInterval   time.Duration
}

// Status is a point-in-time view of the indexer, served over the command
// channel so reads never race the owner goroutine.
type Status struct {
	State    State  `json:"state"`
	Degraded bool   `json:"degraded"`
	Cursor   uint64 `json:"cursor"`
	Watched  int    `json:"watched_markets"`
}

// Indexer tails the factory and every discovered market contract. All
// mutable state (watch-set, cursor, lifecycle) is owned by the Run goroutine;
// other goroutines communicate through channels only.
type Indexer struct {
	chain  domain.ChainClient
	mkts   domain.MarketStore
	events domain.EventStore
	snaps  domain.SnapshotStore
	bus    domain.SignalBus
	cfg    Config
	logger *slog.Logger

	statusReq chan chan Status
	nudge     chan struct{}

	// Owner-goroutine state. The cursor is process-local and non-durable:
	// restarts re-scan from StartBlock and rely on (tx_hash, log_index)
	// idempotency instead of checkpoint bookkeeping. fromHead defers the
	// starting height to the first reachable tick so an RPC outage at boot
	// degrades instead of failing startup.
	watch    map[string]struct{}
	cursor   uint64
	fromHead bool
	state    State
	degraded bool
}

// New creates an Indexer. The bus is optional.
func New(chain domain.ChainClient, mkts domain.MarketStore, events domain.EventStore, snaps domain.SnapshotStore, bus domain.SignalBus, cfg Config, logger *slog.Logger) *Indexer {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Indexer{
		chain:     chain,
		mkts:      mkts,
		events:    events,
		snaps:     snaps,
		bus:       bus,
		cfg:       cfg,
		logger:    logger.With("component", "indexer"),
		statusReq: make(chan chan Status),
		nudge:     make(chan struct{}, 1),
		watch:     make(map[string]struct{}),
		fromHead:  cfg.StartBlock == 0,
		state:     StateStopped,
	}
}

// Status returns the current indexer status. It blocks until the owner
// goroutine answers, or returns a stopped status if Run is not active.
func (ix *Indexer) Status(ctx context.Context) Status {
	reply := make(chan Status, 1)
	select {
	case ix.statusReq <- reply:
		select {
		case st := <-reply:
			return st
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
	return Status{State: StateStopped}
}

// Run drives the indexer until ctx is cancelled. It rebuilds the watch-set
// from the store, backfills from the configured start block, then tails the
// chain on the poll interval, with an optional push subscription acting as a
// wake-up between ticks.
func (ix *Indexer) Run(ctx context.Context) error {
	if err := ix.rebuildWatchSet(ctx); err != nil {
		return fmt.Errorf("indexer: rebuild watch-set: %w", err)
	}

	ix.cursor = ix.cfg.StartBlock
	ix.state = StateBackfilling
	ix.logger.Info("indexer starting",
		"factory", ix.cfg.FactoryAddress,
		"start_block", ix.cfg.StartBlock,
		"watched", len(ix.watch))

	// Factory push subscription is best-effort; polling alone is complete.
	unsubscribe, err := ix.chain.Subscribe(ctx, ix.cfg.FactoryAddress, "MarketCreated", func(domain.ChainLog) {
		select {
		case ix.nudge <- struct{}{}:
		default:
		}
	})
	if err != nil {
		ix.logger.Warn("factory subscription unavailable, polling only", "error", err)
	} else {
		defer unsubscribe()
	}

	ix.advance(ctx)

	ticker := time.NewTicker(ix.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ix.state = StateStopped
			ix.logger.Info("indexer stopped", "cursor", ix.cursor)
			return ctx.Err()
		case reply := <-ix.statusReq:
			reply <- Status{State: ix.state, Degraded: ix.degraded, Cursor: ix.cursor, Watched: len(ix.watch)}
		case <-ix.nudge:
			ix.advance(ctx)
		case <-ticker.C:
			ix.advance(ctx)
		}
	}
}

// rebuildWatchSet loads every known market address from the store so a
// restart keeps tailing markets discovered in earlier runs.
func (ix *Indexer) rebuildWatchSet(ctx context.Context) error {
	addrs, err := ix.mkts.ListAddresses(ctx)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		ix.watch[a] = struct{}{}
	}
	return nil
}

// advance moves the cursor toward the chain head in bounded batches. An
// unreachable RPC marks the indexer degraded without changing its lifecycle
// state; the next tick retries from the same cursor.
func (ix *Indexer) advance(ctx context.Context) {
	head, err := ix.chain.CurrentHeight(ctx)
	if err != nil {
		if !ix.degraded {
			ix.logger.Warn("rpc unreachable, entering degraded state", "error", err)
		}
		ix.degraded = true
		return
	}
	if ix.degraded {
		ix.logger.Info("rpc reachable again, leaving degraded state")
		ix.degraded = false
	}

	// StartBlock zero means "tail from wherever the chain is now"; the head
	// is pinned on the first tick that can actually reach the RPC.
	if ix.fromHead {
		ix.cursor = head
		ix.fromHead = false
		ix.logger.Info("tailing from current head", "cursor", head)
	}

	for ix.cursor < head {
		select {
		case <-ctx.Done():
			return
		default:
		}

		from := ix.cursor + 1
		to := min(ix.cursor+ix.cfg.BatchSize, head)

		if err := ix.processRange(ctx, from, to); err != nil {
			// Leave the cursor where it is; the range replays next tick and
			// duplicate rows are absorbed by the ledger constraint.
			ix.logger.Error("batch failed, will retry", "from", from, "to", to, "error", err)
			ix.degraded = true
			return
		}
		ix.cursor = to
	}

	if ix.state == StateBackfilling {
		ix.state = StateLive
		ix.logger.Info("backfill complete, tailing live", "cursor", ix.cursor)
	}
}

// processRange ingests all factory and market logs in [from, to]. Factory
// discovery runs first so trades of a market created inside the range are
// picked up by the same pass.
func (ix *Indexer) processRange(ctx context.Context, from, to uint64) error {
	created, err := ix.chain.QueryLogs(ctx, ix.cfg.FactoryAddress, "MarketCreated", from, to)
	if err != nil {
		return fmt.Errorf("query factory logs: %w", err)
	}
	for _, lg := range created {
		if err := ix.handleCreated(ctx, lg); err != nil {
			// Skipping a malformed creation only loses that one market.
			ix.logger.Error("market creation skipped", "tx", lg.TxHash, "error", err)
		}
	}

	for addr := range ix.watch {
		if err := ix.ingestMarketRange(ctx, addr, from, to); err != nil {
			// One contract's trouble must not stall ingestion for the rest of
			// the watch-set; the cursor keeps advancing for healthy markets.
			ix.logger.Error("market ingest skipped", "market", addr, "from", from, "to", to, "error", err)
		}
	}
	return nil
}

// ingestMarketRange pulls one market's logs over the range, applies them in
// chain order, and appends a snapshot when anything price-moving happened.
func (ix *Indexer) ingestMarketRange(ctx context.Context, addr string, from, to uint64) error {
	var logs []domain.ChainLog
	for _, name := range marketEventNames {
		batch, err := ix.chain.QueryLogs(ctx, addr, name, from, to)
		if err != nil {
			return fmt.Errorf("query %s logs for %s: %w", name, addr, err)
		}
		logs = append(logs, batch...)
	}
	if len(logs) == 0 {
		return nil
	}
	sortChainLogs(logs)

	market, err := ix.mkts.GetByAddress(ctx, addr)
	if err != nil {
		return fmt.Errorf("load market %s: %w", addr, err)
	}

	var (
		moved  bool
		lastTS time.Time
	)
	for _, lg := range logs {
		ev, err := normalizeLog(lg)
		if err != nil {
			ix.logger.Error("log skipped", "tx", lg.TxHash, "index", lg.LogIndex, "error", err)
			continue
		}
		inserted, err := ix.events.Insert(ctx, ev)
		if err != nil {
			ix.logger.Error("event insert failed", "tx", lg.TxHash, "index", lg.LogIndex, "error", err)
			continue
		}
		if !inserted {
			// Replayed row: its effect on totals is already in the store.
			continue
		}

		switch ev.Kind {
		case domain.EventSharesPurchased, domain.EventSharesSold:
			if ev.Cost != nil {
				market.Volume = market.Volume.Add(ev.Cost.Abs())
			}
			moved = true
		case domain.EventLiquidityAdded:
			if ev.Cost != nil {
				market.Liquidity = market.Liquidity.Add(*ev.Cost)
			}
			moved = true
		case domain.EventLiquidityRemoved:
			if ev.Cost != nil {
				market.Liquidity = market.Liquidity.Sub(*ev.Cost)
			}
			moved = true
		case domain.EventMarketResolved:
			ix.confirmResolved(ctx, addr, ev)
		}
		lastTS = ev.Timestamp
	}

	if !moved {
		return nil
	}

	if err := ix.mkts.UpdateTotals(ctx, addr, market.Volume, market.Liquidity); err != nil {
		ix.logger.Error("totals update failed", "market", addr, "error", err)
	}
	ix.appendSnapshot(ctx, market, lastTS)
	return nil
}

// handleCreated registers a newly deployed market and starts watching it.
func (ix *Indexer) handleCreated(ctx context.Context, lg domain.ChainLog) error {
	market, err := marketFromCreation(lg, ix.cfg.FactoryAddress)
	if err != nil {
		return err
	}

	if err := ix.mkts.Upsert(ctx, market); err != nil {
		return fmt.Errorf("upsert market: %w", err)
	}

	ev, err := normalizeLog(lg)
	if err != nil {
		return err
	}
	ev.MarketAddress = market.Address
	inserted, err := ix.events.Insert(ctx, ev)
	if err != nil {
		return fmt.Errorf("insert creation event: %w", err)
	}

	ix.watch[market.Address] = struct{}{}
	if inserted {
		ix.logger.Info("market discovered", "market", market.Address, "game_id", market.GameID, "mode", market.Mode)
		ix.publish(ctx, ChannelMarketCreated, market)
	}
	return nil
}

// confirmResolved mirrors an on-chain resolution into the store. When the
// resolver already settled the row the write affects nothing, which is the
// expected idempotent outcome, not a failure.
func (ix *Indexer) confirmResolved(ctx context.Context, addr string, ev domain.MarketEvent) {
	if ev.OutcomeIndex == nil {
		ix.logger.Error("resolution event without outcome", "market", addr, "tx", ev.TxHash)
		return
	}
	changed, err := ix.mkts.SetResolved(ctx, addr, *ev.OutcomeIndex)
	if err != nil {
		ix.logger.Error("resolution confirm failed", "market", addr, "error", err)
		return
	}
	if changed {
		ix.logger.Info("market resolved on chain", "market", addr, "outcome", *ev.OutcomeIndex)
		ix.publish(ctx, ChannelMarketResolved, map[string]any{
			"market":  addr,
			"outcome": *ev.OutcomeIndex,
		})
	}
}

// appendSnapshot samples per-outcome prices and stores one snapshot. A failed
// price read for an outcome degrades that slot to zero; the sample is kept.
func (ix *Indexer) appendSnapshot(ctx context.Context, market domain.Market, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	prices := make([]decimal.Decimal, len(market.Outcomes))
	for i := range market.Outcomes {
		p, err := ix.readPrice(ctx, market.Address, i)
		if err != nil {
			ix.logger.Warn("price read degraded to zero", "market", market.Address, "outcome", i, "error", err)
			p = decimal.Zero
		}
		prices[i] = p
	}

	snap := domain.Snapshot{
		MarketAddress: market.Address,
		Timestamp:     ts,
		Prices:        prices,
		Volume:        market.Volume,
		Liquidity:     market.Liquidity,
	}
	if err := ix.snaps.Insert(ctx, snap); err != nil {
		ix.logger.Error("snapshot insert failed", "market", market.Address, "error", err)
		return
	}
	ix.publish(ctx, ChannelSnapshot, snap)
}

func (ix *Indexer) readPrice(ctx context.Context, addr string, outcome int) (decimal.Decimal, error) {
	values, err := ix.chain.ReadState(ctx, addr, "getPrice", bigFromInt(outcome))
	if err != nil {
		return decimal.Zero, err
	}
	return decimalFromValues(values)
}

func (ix *Indexer) publish(ctx context.Context, channel string, payload any) {
	if ix.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := ix.bus.Publish(ctx, channel, data); err != nil {
		ix.logger.Warn("bus publish failed", "channel", channel, "error", err)
	}
}
