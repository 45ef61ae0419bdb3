package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantpair/pairtrader/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, pair_id, side, entry_z, entry_price_a, entry_price_b,
	entry_hedge_ratio, notional, manual, status, opened_at,
	closed_at, exit_price_a, exit_price_b, exit_z, realized_pnl`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.PairID, &t.Side, &t.EntryZ, &t.EntryPriceA, &t.EntryPriceB,
			&t.EntryHedgeRatio, &t.Notional, &t.Manual, &t.Status, &t.OpenedAt,
			&t.ClosedAt, &t.ExitPriceA, &t.ExitPriceB, &t.ExitZ, &t.RealizedPnL,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertOpen records a newly opened trade.
func (s *TradeStore) InsertOpen(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, pair_id, side, entry_z, entry_price_a, entry_price_b,
			entry_hedge_ratio, notional, manual, status, opened_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.PairID, t.Side, t.EntryZ, t.EntryPriceA, t.EntryPriceB,
		t.EntryHedgeRatio, t.Notional, t.Manual, t.Status, t.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert open trade %s: %w", t.ID, err)
	}
	return nil
}

// MarkClosed updates the trade's exit fields and status.
func (s *TradeStore) MarkClosed(ctx context.Context, t domain.Trade) error {
	const query = `
		UPDATE trades SET
			status = $2, closed_at = $3, exit_price_a = $4, exit_price_b = $5,
			exit_z = $6, realized_pnl = $7
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		t.ID, t.Status, t.ClosedAt, t.ExitPriceA, t.ExitPriceB, t.ExitZ, t.RealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark trade %s closed: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark trade %s closed: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// ListOpen returns all open trades, ordered by open time ascending.
func (s *TradeStore) ListOpen(ctx context.Context) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE status = 'open' ORDER BY opened_at ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open trades: %w", err)
	}
	return trades, nil
}

// ListClosed returns closed trades in close order (oldest first, so a
// restored ledger log reads the same as the live one). limit <= 0 means all.
func (s *TradeStore) ListClosed(ctx context.Context, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE status = 'closed' ORDER BY closed_at ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed trades: %w", err)
	}
	return trades, nil
}

// RealizedTotal returns the sum of realized PnL over all closed trades.
func (s *TradeStore) RealizedTotal(ctx context.Context) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(realized_pnl), 0) FROM trades WHERE status = 'closed'`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: realized total: %w", err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
