package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oddslab/courtside/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection
// pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Insert stores a point-in-time snapshot of a market's prices and totals.
// Prices are stored as a JSON array of decimal strings so outcome counts can
// vary per market.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.Snapshot) error {
	prices := make([]string, len(snap.Prices))
	for i, p := range snap.Prices {
		prices[i] = p.String()
	}
	pricesJSON, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("postgres: marshal snapshot prices: %w", err)
	}

	const query = `
		INSERT INTO market_snapshots (market_address, snapshot_time, prices, volume, liquidity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (market_address, snapshot_time) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		snap.MarketAddress, snap.Timestamp, pricesJSON,
		snap.Volume.String(), snap.Liquidity.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot for %s: %w", snap.MarketAddress, err)
	}
	return nil
}

// Latest returns the most recent snapshot for a market.
func (s *SnapshotStore) Latest(ctx context.Context, address string) (domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT market_address, snapshot_time, prices, volume, liquidity
		 FROM market_snapshots
		 WHERE market_address = $1
		 ORDER BY snapshot_time DESC
		 LIMIT 1`,
		address,
	)

	snap, err := scanSnapshot(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Snapshot{}, domain.ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("postgres: latest snapshot for %s: %w", address, err)
	}
	return snap, nil
}

// ListByMarket returns snapshots for a market, newest first, with pagination
// and optional time filtering.
func (s *SnapshotStore) ListByMarket(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Snapshot, error) {
	query := `SELECT market_address, snapshot_time, prices, volume, liquidity
		FROM market_snapshots WHERE market_address = $1`
	args := []any{address}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND snapshot_time >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND snapshot_time <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY snapshot_time DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots for %s: %w", address, err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot rows: %w", err)
	}
	return snaps, nil
}

// ListBefore returns snapshots older than the cutoff, oldest first.
func (s *SnapshotStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_address, snapshot_time, prices, volume, liquidity
		 FROM market_snapshots
		 WHERE snapshot_time < $1
		 ORDER BY snapshot_time ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %s: %w", cutoff, err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot rows: %w", err)
	}
	return snaps, nil
}

// DeleteBefore removes snapshots older than the cutoff and returns the number
// of rows deleted.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_snapshots WHERE snapshot_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func scanSnapshot(row pgx.Row) (domain.Snapshot, error) {
	var (
		snap        domain.Snapshot
		pricesJSON  []byte
		volume, liq string
	)
	err := row.Scan(&snap.MarketAddress, &snap.Timestamp, &pricesJSON, &volume, &liq)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var prices []string
	if err := json.Unmarshal(pricesJSON, &prices); err != nil {
		return domain.Snapshot{}, fmt.Errorf("unmarshal prices: %w", err)
	}
	snap.Prices = make([]decimal.Decimal, len(prices))
	for i, p := range prices {
		if snap.Prices[i], err = decimal.NewFromString(p); err != nil {
			return domain.Snapshot{}, fmt.Errorf("parse price %q: %w", p, err)
		}
	}
	if snap.Volume, err = decimal.NewFromString(volume); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse volume: %w", err)
	}
	if snap.Liquidity, err = decimal.NewFromString(liq); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse liquidity: %w", err)
	}
	return snap, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
