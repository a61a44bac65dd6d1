package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oddslab/courtside/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventCols = `tx_hash, log_index, market_address, kind, actor,
	outcome_index, shares, cost, block_number, event_time, payload`

const insertEventQuery = `
	INSERT INTO market_events (
		tx_hash, log_index, market_address, kind, actor,
		outcome_index, shares, cost, block_number, event_time, payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (tx_hash, log_index) DO NOTHING`

// Insert stores a single event. Replayed events (same tx_hash and log_index)
// are skipped, which keeps backfill restarts idempotent; the returned bool is
// false for a skipped duplicate so callers do not re-apply totals.
func (s *EventStore) Insert(ctx context.Context, e domain.MarketEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, insertEventQuery, insertEventArgs(e)...)
	if err != nil {
		return false, fmt.Errorf("postgres: insert event %s/%d: %w", e.TxHash, e.LogIndex, err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertBatch stores events in a single round-trip using a pgx batch.
// Duplicates within the batch or against existing rows are skipped.
func (s *EventStore) InsertBatch(ctx context.Context, events []domain.MarketEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertEventQuery, insertEventArgs(e)...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: batch insert event %s/%d: %w",
				events[i].TxHash, events[i].LogIndex, err)
		}
	}
	return nil
}

func insertEventArgs(e domain.MarketEvent) []any {
	var shares, cost *string
	if e.Shares != nil {
		v := e.Shares.String()
		shares = &v
	}
	if e.Cost != nil {
		v := e.Cost.String()
		cost = &v
	}
	return []any{
		e.TxHash, e.LogIndex, e.MarketAddress, string(e.Kind), e.Actor,
		e.OutcomeIndex, shares, cost, e.BlockNumber, e.Timestamp, e.Payload,
	}
}

// ListByMarket returns events for a market, oldest first, with pagination and
// optional time filtering.
func (s *EventStore) ListByMarket(ctx context.Context, address string, opts domain.ListOpts) ([]domain.MarketEvent, error) {
	query := `SELECT ` + eventCols + ` FROM market_events WHERE market_address = $1`
	args := []any{address}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND event_time >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND event_time <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY block_number ASC, log_index ASC"

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
		return nil, fmt.Errorf("postgres: list events for %s: %w", address, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// CountByMarket returns the number of stored events for a market.
func (s *EventStore) CountByMarket(ctx context.Context, address string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM market_events WHERE market_address = $1`, address,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count events for %s: %w", address, err)
	}
	return count, nil
}

// ListBefore returns events older than the cutoff, oldest first. Used by the
// archiver to page through cold data.
func (s *EventStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.MarketEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventCols+` FROM market_events
		 WHERE event_time < $1
		 ORDER BY event_time ASC, log_index ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before %s: %w", cutoff, err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// DeleteBefore removes events older than the cutoff and returns the number of
// rows deleted.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_events WHERE event_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func collectEvents(rows pgx.Rows) ([]domain.MarketEvent, error) {
	var events []domain.MarketEvent
	for rows.Next() {
		var (
			e            domain.MarketEvent
			kind         string
			shares, cost *string
		)
		err := rows.Scan(
			&e.TxHash, &e.LogIndex, &e.MarketAddress, &kind, &e.Actor,
			&e.OutcomeIndex, &shares, &cost, &e.BlockNumber, &e.Timestamp, &e.Payload,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		if shares != nil {
			d, err := decimal.NewFromString(*shares)
			if err != nil {
				return nil, fmt.Errorf("postgres: parse event shares: %w", err)
			}
			e.Shares = &d
		}
		if cost != nil {
			d, err := decimal.NewFromString(*cost)
			if err != nil {
				return nil, fmt.Errorf("postgres: parse event cost: %w", err)
			}
			e.Cost = &d
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: event rows: %w", err)
	}
	return events, nil
}

var _ domain.EventStore = (*EventStore)(nil)
