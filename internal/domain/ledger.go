package domain

import "time"

// OpenTradeView pairs an open trade with its current unrealized PnL.
type OpenTradeView struct {
	Trade         Trade   `json:"trade"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// LedgerSnapshot is the read-only view of the ledger exposed to the
// presentation layer: open trades with marks, the closed-trade log, and the
// derived virtual balance.
type LedgerSnapshot struct {
	StartingCapital float64         `json:"starting_capital"`
	Balance         float64         `json:"balance"`
	Open            []OpenTradeView `json:"open"`
	Closed          []Trade         `json:"closed"`
	TakenAt         time.Time       `json:"taken_at"`
}

// LedgerEventType enumerates ledger state transitions.
type LedgerEventType string

const (
	LedgerEventTradeOpened LedgerEventType = "trade_opened"
	LedgerEventTradeClosed LedgerEventType = "trade_closed"
)

// LedgerEvent records a single ledger transition that occurred during an
// evaluation, for observability and notification.
type LedgerEvent struct {
	Type    LedgerEventType `json:"type"`
	Trade   Trade           `json:"trade"`
	Balance float64         `json:"balance"`
	At      time.Time       `json:"at"`
}
