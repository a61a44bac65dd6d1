package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists projected market state. The indexer is the sole writer
// of totals; the resolver (mirrored by the indexer's confirmation path) is
// the sole writer of status transitions.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByAddress(ctx context.Context, address string) (Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)

	// ListAddresses returns every known market address. Used to rebuild the
	// indexer watch-set on restart.
	ListAddresses(ctx context.Context) ([]string, error)

	// ListDueForResolution returns unresolved markets whose resolution time
	// falls within the window around now, bounding the scan.
	ListDueForResolution(ctx context.Context, window time.Duration) ([]Market, error)

	// SetResolved transitions a market to resolved with the winning outcome.
	// It reports false when the market was already resolved, which callers
	// treat as success-with-no-write-needed.
	SetResolved(ctx context.Context, address string, winningOutcome int) (bool, error)

	// UpdateTotals replaces the running volume and liquidity totals.
	UpdateTotals(ctx context.Context, address string, volume, liquidity decimal.Decimal) error

	Count(ctx context.Context) (int64, error)
}

// EventStore persists the append-only event ledger. Insert and InsertBatch
// skip rows whose (tx_hash, log_index) already exists; Insert reports whether
// the row was actually written so callers can tell a fresh event from a
// replayed one and avoid double-applying its side effects.
type EventStore interface {
	Insert(ctx context.Context, ev MarketEvent) (bool, error)
	InsertBatch(ctx context.Context, evs []MarketEvent) error
	ListByMarket(ctx context.Context, address string, opts ListOpts) ([]MarketEvent, error)
	CountByMarket(ctx context.Context, address string) (int64, error)

	// ListBefore and DeleteBefore support cold-storage archival. ListBefore
	// pages oldest-first so the archiver can drain in bounded chunks.
	ListBefore(ctx context.Context, before time.Time, limit int) ([]MarketEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotStore persists per-market time series samples.
type SnapshotStore interface {
	Insert(ctx context.Context, s Snapshot) error
	Latest(ctx context.Context, address string) (Snapshot, error)
	ListByMarket(ctx context.Context, address string, opts ListOpts) ([]Snapshot, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Snapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log of operator-visible actions
// (resolutions, manual overrides, archive runs).
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
