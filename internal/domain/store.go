package domain

import "context"

// TradeStore persists the ledger's trades. Persistence is optional: without a
// store the ledger is ephemeral and rebuilt empty each run. With one, a
// restarted ledger must reproduce an identical balance and closed-trade log.
type TradeStore interface {
	// InsertOpen records a newly opened trade.
	InsertOpen(ctx context.Context, trade Trade) error
	// MarkClosed updates the trade's exit fields and status.
	MarkClosed(ctx context.Context, trade Trade) error
	// ListOpen returns all open trades, ordered by open time ascending.
	ListOpen(ctx context.Context) ([]Trade, error)
	// ListClosed returns closed trades in close order, oldest first. limit <= 0
	// means all.
	ListClosed(ctx context.Context, limit int) ([]Trade, error)
	// RealizedTotal returns the sum of realized PnL over all closed trades.
	RealizedTotal(ctx context.Context) (float64, error)
}
