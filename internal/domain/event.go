package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind classifies a normalized on-chain log.
type EventKind string

const (
	EventMarketCreated    EventKind = "market_created"
	EventSharesPurchased  EventKind = "shares_purchased"
	EventSharesSold       EventKind = "shares_sold"
	EventLiquidityAdded   EventKind = "liquidity_added"
	EventLiquidityRemoved EventKind = "liquidity_removed"
	EventMarketResolved   EventKind = "market_resolved"
)

// TradeKinds are the event kinds that move volume and trigger a snapshot.
var TradeKinds = []EventKind{EventSharesPurchased, EventSharesSold}

// LiquidityKinds are the event kinds that move liquidity and trigger a
// snapshot.
var LiquidityKinds = []EventKind{EventLiquidityAdded, EventLiquidityRemoved}

// MarketEvent is one row of the append-only event ledger: a single on-chain
// log, normalized. The pair (TxHash, LogIndex) is globally unique and is the
// idempotency boundary for ingestion -- replaying a block range must never
// produce a second row for the same log.
type MarketEvent struct {
	TxHash   string `json:"tx_hash"`
	LogIndex uint32 `json:"log_index"`

	MarketAddress string    `json:"market_address"`
	Kind          EventKind `json:"kind"`

	// Actor is nil for system-level events (creation, resolution).
	Actor *string `json:"actor,omitempty"`

	// OutcomeIndex, Shares, and Cost are populated for trade events only.
	OutcomeIndex *int             `json:"outcome_index,omitempty"`
	Shares       *decimal.Decimal `json:"shares,omitempty"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`

	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`

	// Payload holds the raw decoded log arguments for audit.
	Payload json.RawMessage `json:"payload,omitempty"`
}
