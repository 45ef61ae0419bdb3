// Package ledger implements the paper-trading ledger: a flat/open state
// machine per pair, an append-only closed-trade log, and the derived virtual
// balance. The ledger is the single writer of trade state.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantpair/pairtrader/internal/domain"
	"github.com/quantpair/pairtrader/internal/metrics"
)

// Config holds the entry/exit rules and sizing policy the ledger applies.
type Config struct {
	// EntryThreshold is the z-score magnitude at which a position is opened.
	EntryThreshold float64
	// ExitThreshold is the z-score magnitude below which a position is
	// closed. Must be strictly less than EntryThreshold.
	ExitThreshold float64
	// Notional scales PnL per unit of spread move.
	Notional float64
	// StartingCapital seeds the virtual balance.
	StartingCapital float64
}

// Ledger owns all trade state. All methods are safe for concurrent use; a
// single mutex serializes mutations, which is sufficient at the engine's
// low trade frequency.
type Ledger struct {
	cfg    Config
	store  domain.TradeStore // nil when persistence is disabled
	logger *slog.Logger

	mu       sync.RWMutex
	open     map[string]*domain.Trade // pair ID -> open trade
	closed   []domain.Trade
	realized float64
}

// New creates an empty ledger. store may be nil, in which case trades live
// only for the process lifetime.
func New(cfg Config, store domain.TradeStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		cfg:    cfg,
		store:  store,
		logger: logger.With(slog.String("component", "ledger")),
		open:   make(map[string]*domain.Trade),
	}
}

// Restore loads previously persisted trades from the store so the rebuilt
// ledger carries an identical balance and closed-trade log. No-op without a
// store.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	openTrades, err := l.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("ledger: restore open trades: %w", err)
	}
	closedTrades, err := l.store.ListClosed(ctx, 0)
	if err != nil {
		return fmt.Errorf("ledger: restore closed trades: %w", err)
	}
	realized, err := l.store.RealizedTotal(ctx)
	if err != nil {
		return fmt.Errorf("ledger: restore realized total: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.open = make(map[string]*domain.Trade, len(openTrades))
	for i := range openTrades {
		t := openTrades[i]
		if prev, ok := l.open[t.PairID]; ok {
			// Two open rows for one pair should be impossible; refuse to
			// adopt either rather than pick one silently.
			return fmt.Errorf("ledger: pair %s has trades %s and %s both open: %w",
				t.PairID, prev.ID, t.ID, domain.ErrInvariantViolation)
		}
		l.open[t.PairID] = &t
	}
	l.closed = closedTrades
	l.realized = realized

	metrics.OpenPositions.Set(float64(len(l.open)))
	metrics.Balance.Set(l.cfg.StartingCapital + l.realized)

	l.logger.Info("ledger restored",
		slog.Int("open", len(l.open)),
		slog.Int("closed", len(l.closed)),
		slog.Float64("balance", l.cfg.StartingCapital+l.realized),
	)
	return nil
}

// Evaluate applies the state machine to one pair's fresh signal and returns
// the transitions that occurred. The exit rule is checked before the entry
// rule so a trade can never open and close within the same evaluation.
func (l *Ledger) Evaluate(ctx context.Context, sig domain.Signal) ([]domain.LedgerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var events []domain.LedgerEvent

	if t, ok := l.open[sig.PairID]; ok {
		if math.Abs(sig.ZScore) < l.cfg.ExitThreshold {
			evt, err := l.closeLocked(ctx, t, sig)
			if err != nil {
				return nil, err
			}
			events = append(events, evt)
		}
		// Position open and not yet reverted: hold. A fresh entry signal on
		// an already-open pair is ignored.
		return events, nil
	}

	if math.Abs(sig.ZScore) >= l.cfg.EntryThreshold {
		side := domain.TradeSideLongSpread
		if sig.ZScore > 0 {
			side = domain.TradeSideShortSpread
		}
		evt, err := l.openLocked(ctx, sig, side, false)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}

	return events, nil
}

// OpenManual opens a position regardless of the entry threshold. It still
// enforces the one-open-trade-per-pair invariant. An empty side means "trade
// against the current z-score", the same direction an automatic entry would
// take.
func (l *Ledger) OpenManual(ctx context.Context, sig domain.Signal, side domain.TradeSide) (domain.LedgerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.open[sig.PairID]; ok {
		return domain.LedgerEvent{}, fmt.Errorf("ledger: pair %s: %w", sig.PairID, domain.ErrPositionOpen)
	}
	if side == "" {
		side = domain.TradeSideLongSpread
		if sig.ZScore > 0 {
			side = domain.TradeSideShortSpread
		}
	}
	return l.openLocked(ctx, sig, side, true)
}

// CloseManual closes the pair's open position at the given signal's prices
// regardless of the exit threshold.
func (l *Ledger) CloseManual(ctx context.Context, sig domain.Signal) (domain.LedgerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.open[sig.PairID]
	if !ok {
		return domain.LedgerEvent{}, fmt.Errorf("ledger: pair %s: %w", sig.PairID, domain.ErrNoOpenPosition)
	}
	return l.closeLocked(ctx, t, sig)
}

// openLocked creates and records a new trade. The hedge ratio in force at
// entry is recovered exactly from the signal (spread_now = price_a - h *
// price_b) and frozen on the trade. The caller must hold l.mu.
func (l *Ledger) openLocked(ctx context.Context, sig domain.Signal, side domain.TradeSide, manual bool) (domain.LedgerEvent, error) {
	hedgeRatio := impliedHedgeRatio(sig)

	t := &domain.Trade{
		ID:              uuid.NewString(),
		PairID:          sig.PairID,
		Side:            side,
		EntryZ:          sig.ZScore,
		EntryPriceA:     sig.PriceA,
		EntryPriceB:     sig.PriceB,
		EntryHedgeRatio: hedgeRatio,
		Notional:        l.cfg.Notional,
		Manual:          manual,
		Status:          domain.TradeStatusOpen,
		OpenedAt:        sig.EvaluatedAt,
	}
	l.open[sig.PairID] = t

	if l.store != nil {
		if err := l.store.InsertOpen(ctx, *t); err != nil {
			// The paper trade stands even when the write fails; the store is
			// a journal, not the source of truth.
			l.logger.WarnContext(ctx, "persist open trade failed",
				slog.String("trade_id", t.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	metrics.TradesOpened.WithLabelValues(t.PairID, string(t.Side)).Inc()
	metrics.OpenPositions.Set(float64(len(l.open)))

	l.logger.InfoContext(ctx, "trade opened",
		slog.String("trade_id", t.ID),
		slog.String("pair", t.PairID),
		slog.String("side", string(t.Side)),
		slog.Float64("entry_z", t.EntryZ),
		slog.Bool("manual", manual),
	)

	return domain.LedgerEvent{
		Type:    domain.LedgerEventTradeOpened,
		Trade:   *t,
		Balance: l.cfg.StartingCapital + l.realized,
		At:      sig.EvaluatedAt,
	}, nil
}

// closeLocked realizes the trade's PnL at the signal's prices, moves it to
// the closed log, and updates the balance. The caller must hold l.mu.
func (l *Ledger) closeLocked(ctx context.Context, t *domain.Trade, sig domain.Signal) (domain.LedgerEvent, error) {
	pnl := t.PnL(sig.PriceA, sig.PriceB)
	closedAt := sig.EvaluatedAt
	exitA, exitB, exitZ := sig.PriceA, sig.PriceB, sig.ZScore

	t.Status = domain.TradeStatusClosed
	t.ClosedAt = &closedAt
	t.ExitPriceA = &exitA
	t.ExitPriceB = &exitB
	t.ExitZ = &exitZ
	t.RealizedPnL = &pnl

	delete(l.open, t.PairID)
	l.closed = append(l.closed, *t)
	l.realized += pnl

	if l.store != nil {
		if err := l.store.MarkClosed(ctx, *t); err != nil {
			l.logger.WarnContext(ctx, "persist closed trade failed",
				slog.String("trade_id", t.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	balance := l.cfg.StartingCapital + l.realized
	metrics.TradesClosed.WithLabelValues(t.PairID, string(t.Side)).Inc()
	metrics.OpenPositions.Set(float64(len(l.open)))
	metrics.Balance.Set(balance)

	l.logger.InfoContext(ctx, "trade closed",
		slog.String("trade_id", t.ID),
		slog.String("pair", t.PairID),
		slog.Float64("realized_pnl", pnl),
		slog.Float64("balance", balance),
	)

	return domain.LedgerEvent{
		Type:    domain.LedgerEventTradeClosed,
		Trade:   *t,
		Balance: balance,
		At:      closedAt,
	}, nil
}

// Open returns the open trade for the pair, if any.
func (l *Ledger) Open(pairID string) (domain.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.open[pairID]
	if !ok {
		return domain.Trade{}, false
	}
	return *t, true
}

// Balance returns the current virtual balance.
func (l *Ledger) Balance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg.StartingCapital + l.realized
}

// Snapshot returns a read-only copy of the ledger. Unrealized PnL for each
// open trade is marked against the prices in marks; pairs without a mark are
// reported with zero unrealized PnL.
func (l *Ledger) Snapshot(marks map[string]domain.Signal) domain.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := domain.LedgerSnapshot{
		StartingCapital: l.cfg.StartingCapital,
		Balance:         l.cfg.StartingCapital + l.realized,
		Open:            make([]domain.OpenTradeView, 0, len(l.open)),
		Closed:          append([]domain.Trade(nil), l.closed...),
		TakenAt:         time.Now().UTC(),
	}
	for _, t := range l.open {
		view := domain.OpenTradeView{Trade: *t}
		if sig, ok := marks[t.PairID]; ok {
			view.UnrealizedPnL = t.PnL(sig.PriceA, sig.PriceB)
		}
		snap.Open = append(snap.Open, view)
	}
	sort.Slice(snap.Open, func(i, j int) bool {
		return snap.Open[i].Trade.PairID < snap.Open[j].Trade.PairID
	})
	return snap
}

// CheckInvariant verifies that the incrementally maintained balance equals
// starting capital plus the recomputed sum of realized PnL over closed
// trades, and that no pair holds more than one open trade.
func (l *Ledger) CheckInvariant() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum float64
	for _, t := range l.closed {
		if t.RealizedPnL == nil {
			return fmt.Errorf("ledger: closed trade %s missing realized pnl: %w", t.ID, domain.ErrInvariantViolation)
		}
		sum += *t.RealizedPnL
	}
	if diff := math.Abs(sum - l.realized); diff > 1e-9 {
		return fmt.Errorf("ledger: balance drift %g: %w", diff, domain.ErrInvariantViolation)
	}
	return nil
}

// impliedHedgeRatio recovers the hedge ratio the signal was computed under
// from spread_now = price_a - h * price_b.
func impliedHedgeRatio(sig domain.Signal) float64 {
	if sig.PriceB == 0 {
		return 1
	}
	return (sig.PriceA - sig.SpreadNow) / sig.PriceB
}
