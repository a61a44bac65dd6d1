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

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `address, factory, creator, question, outcomes, status,
	resolution_time, winning_outcome, volume, liquidity,
	game_id, mode, threshold, created_block, created_at, updated_at`

// Upsert inserts or updates a single market. Totals and status are preserved
// on conflict; creation events carry metadata only, so a replayed creation
// must not reset state the indexer or resolver has since advanced.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	outcomesJSON, err := json.Marshal(m.Outcomes)
	if err != nil {
		return fmt.Errorf("postgres: marshal outcomes for %s: %w", m.Address, err)
	}

	const query = `
		INSERT INTO markets (
			address, factory, creator, question, outcomes, status,
			resolution_time, winning_outcome, volume, liquidity,
			game_id, mode, threshold, created_block, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15, NOW()
		)
		ON CONFLICT (address) DO UPDATE SET
			question   = EXCLUDED.question,
			outcomes   = EXCLUDED.outcomes,
			game_id    = EXCLUDED.game_id,
			mode       = EXCLUDED.mode,
			threshold  = EXCLUDED.threshold,
			updated_at = NOW()`

	_, err = s.pool.Exec(ctx, query,
		m.Address, m.Factory, m.Creator, m.Question, outcomesJSON, string(m.Status),
		m.ResolutionTime, m.WinningOutcome, m.Volume.String(), m.Liquidity.String(),
		m.GameID, string(m.Mode), m.Threshold, m.CreatedBlock, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.Address, err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m            domain.Market
		outcomesJSON []byte
		status, mode string
		volume, liq  string
	)
	err := row.Scan(
		&m.Address, &m.Factory, &m.Creator, &m.Question, &outcomesJSON, &status,
		&m.ResolutionTime, &m.WinningOutcome, &volume, &liq,
		&m.GameID, &mode, &m.Threshold, &m.CreatedBlock, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	if err := json.Unmarshal(outcomesJSON, &m.Outcomes); err != nil {
		return domain.Market{}, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	if m.Volume, err = decimal.NewFromString(volume); err != nil {
		return domain.Market{}, fmt.Errorf("parse volume: %w", err)
	}
	if m.Liquidity, err = decimal.NewFromString(liq); err != nil {
		return domain.Market{}, fmt.Errorf("parse liquidity: %w", err)
	}
	m.Status = domain.MarketStatus(status)
	m.Mode = domain.ResolutionMode(mode)
	return m, nil
}

// GetByAddress retrieves a market by its contract address.
func (s *MarketStore) GetByAddress(ctx context.Context, address string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE address = $1`, address)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", address, err)
	}
	return m, nil
}

// ListActive returns active markets with pagination and optional time
// filtering.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = 'active'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// ListAddresses returns every known market address, oldest first. Used to
// rebuild the indexer watch-set on restart.
func (s *MarketStore) ListAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address FROM markets ORDER BY created_block ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list market addresses: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("postgres: scan market address: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// ListDueForResolution returns unresolved markets whose resolution time lies
// within the window around now. The window bounds the scan so the resolver
// never walks the whole table.
func (s *MarketStore) ListDueForResolution(ctx context.Context, window time.Duration) ([]domain.Market, error) {
	now := time.Now().UTC()
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE status <> 'resolved'
		   AND resolution_time BETWEEN $1 AND $2
		 ORDER BY resolution_time ASC`,
		now.Add(-window), now.Add(window),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// SetResolved transitions a market to resolved with the winning outcome. The
// status guard makes the transition monotonic: a second call (resolver and
// indexer confirmation racing) affects zero rows and reports false, which
// callers treat as already-done rather than failure.
func (s *MarketStore) SetResolved(ctx context.Context, address string, winningOutcome int) (bool, error) {
	const query = `
		UPDATE markets
		SET status = 'resolved', winning_outcome = $2, updated_at = NOW()
		WHERE address = $1 AND status <> 'resolved'`

	tag, err := s.pool.Exec(ctx, query, address, winningOutcome)
	if err != nil {
		return false, fmt.Errorf("postgres: set market %s resolved: %w", address, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateTotals replaces the running volume and liquidity totals.
func (s *MarketStore) UpdateTotals(ctx context.Context, address string, volume, liquidity decimal.Decimal) error {
	const query = `
		UPDATE markets
		SET volume = $2, liquidity = $3, updated_at = NOW()
		WHERE address = $1`

	tag, err := s.pool.Exec(ctx, query, address, volume.String(), liquidity.String())
	if err != nil {
		return fmt.Errorf("postgres: update totals for %s: %w", address, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: market rows: %w", err)
	}
	return markets, nil
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
