package domain

import "time"

// TradeSide says which way the spread position points.
type TradeSide string

const (
	// TradeSideLongSpread is opened when the spread is unusually narrow
	// (z-score at or below the negative entry threshold).
	TradeSideLongSpread TradeSide = "long_spread"
	// TradeSideShortSpread is opened when the spread is unusually wide
	// (z-score at or above the positive entry threshold).
	TradeSideShortSpread TradeSide = "short_spread"
)

// TradeStatus tracks whether a trade is open or closed.
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// Trade is a paper position on a pair's spread. Entry fields are fixed at the
// triggering tick; the hedge ratio in force at entry is captured on the trade
// so a later baseline refresh cannot change the trade's accounting. Only the
// ledger mutates trades, and only on close.
type Trade struct {
	ID              string      `json:"id"`
	PairID          string      `json:"pair_id"`
	Side            TradeSide   `json:"side"`
	EntryZ          float64     `json:"entry_z"`
	EntryPriceA     float64     `json:"entry_price_a"`
	EntryPriceB     float64     `json:"entry_price_b"`
	EntryHedgeRatio float64     `json:"entry_hedge_ratio"`
	Notional        float64     `json:"notional"`
	Manual          bool        `json:"manual"`
	Status          TradeStatus `json:"status"`
	OpenedAt        time.Time   `json:"opened_at"`
	ClosedAt        *time.Time  `json:"closed_at,omitempty"`
	ExitPriceA      *float64    `json:"exit_price_a,omitempty"`
	ExitPriceB      *float64    `json:"exit_price_b,omitempty"`
	ExitZ           *float64    `json:"exit_z,omitempty"`
	RealizedPnL     *float64    `json:"realized_pnl,omitempty"`
}

// PnL returns the profit of this trade marked at the given current prices:
// the hedge-ratio-weighted spread delta since entry, scaled by the trade's
// notional, sign-flipped for short positions. The same formula serves
// unrealized marks and the realized figure committed on close.
func (t Trade) PnL(priceA, priceB float64) float64 {
	move := (priceA - t.EntryPriceA) - t.EntryHedgeRatio*(priceB-t.EntryPriceB)
	if t.Side == TradeSideShortSpread {
		move = -move
	}
	return t.Notional * move
}
