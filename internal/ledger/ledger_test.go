package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpair/pairtrader/internal/domain"
)

func testLedger() *Ledger {
	return New(Config{
		EntryThreshold:  2.0,
		ExitThreshold:   0.2,
		Notional:        10000,
		StartingCapital: 100000,
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// sig builds a signal with hedge ratio 1 baked in: spread = priceA - priceB.
func sig(pairID string, z, priceA, priceB float64, at time.Time) domain.Signal {
	return domain.Signal{
		PairID:      pairID,
		ZScore:      z,
		SpreadNow:   priceA - priceB,
		PriceA:      priceA,
		PriceB:      priceB,
		EvaluatedAt: at,
	}
}

func TestEvaluateOpensShortOnWideSpread(t *testing.T) {
	l := testLedger()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	events, err := l.Evaluate(context.Background(), sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)
	require.Len(t, events, 1)

	evt := events[0]
	assert.Equal(t, domain.LedgerEventTradeOpened, evt.Type)
	assert.Equal(t, domain.TradeSideShortSpread, evt.Trade.Side)
	assert.Equal(t, domain.TradeStatusOpen, evt.Trade.Status)
	assert.Equal(t, 2.0, evt.Trade.EntryZ)
	assert.InDelta(t, 1.0, evt.Trade.EntryHedgeRatio, 1e-12)
	assert.False(t, evt.Trade.Manual)
	assert.Equal(t, 100000.0, evt.Balance)

	open, ok := l.Open("TCS/INFY")
	require.True(t, ok)
	assert.Equal(t, evt.Trade.ID, open.ID)
}

func TestEvaluateOpensLongOnNarrowSpread(t *testing.T) {
	l := testLedger()
	at := time.Now().UTC()

	events, err := l.Evaluate(context.Background(), sig("TCS/INFY", -2.5, 1, 3, at))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.TradeSideLongSpread, events[0].Trade.Side)
}

func TestEvaluateHoldsBetweenThresholds(t *testing.T) {
	l := testLedger()
	at := time.Now().UTC()
	ctx := context.Background()

	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)

	// Still elevated but above the exit threshold: hold, even though the
	// magnitude would qualify as a fresh entry.
	events, err := l.Evaluate(ctx, sig("TCS/INFY", 2.4, 3.4, 1, at.Add(time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, events)

	// One open trade per pair, always.
	_, ok := l.Open("TCS/INFY")
	assert.True(t, ok)
}

func TestEvaluateClosesOnReversion(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Short the spread at z=2 (a=3, b=1), close when it reverts to z=0
	// (a=1, b=1). The spread narrowed by 2, so the short gains 2 * notional.
	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)

	events, err := l.Evaluate(ctx, sig("TCS/INFY", 0.0, 1, 1, at.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)

	evt := events[0]
	assert.Equal(t, domain.LedgerEventTradeClosed, evt.Type)
	assert.Equal(t, domain.TradeStatusClosed, evt.Trade.Status)
	require.NotNil(t, evt.Trade.RealizedPnL)
	assert.InDelta(t, 20000.0, *evt.Trade.RealizedPnL, 1e-9)
	assert.InDelta(t, 120000.0, evt.Balance, 1e-9)
	assert.InDelta(t, 120000.0, l.Balance(), 1e-9)

	_, ok := l.Open("TCS/INFY")
	assert.False(t, ok)
	require.NoError(t, l.CheckInvariant())
}

func TestEvaluateExitBeforeEntry(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)

	// z collapsed to zero: the exit rule fires and the entry rule must NOT
	// re-open in the same evaluation even if a later tick might.
	events, err := l.Evaluate(ctx, sig("TCS/INFY", 0.0, 1, 1, at.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.LedgerEventTradeClosed, events[0].Type)

	_, ok := l.Open("TCS/INFY")
	assert.False(t, ok)
}

func TestImmediateRoundTripIsZeroPnL(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)

	// Close at the exact entry prices: realized PnL must be exactly zero and
	// the balance unchanged.
	evt, err := l.CloseManual(ctx, sig("TCS/INFY", 2.0, 3, 1, at.Add(time.Second)))
	require.NoError(t, err)
	require.NotNil(t, evt.Trade.RealizedPnL)
	assert.Equal(t, 0.0, *evt.Trade.RealizedPnL)
	assert.Equal(t, 100000.0, l.Balance())
	require.NoError(t, l.CheckInvariant())
}

func TestLongSpreadPnL(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	// Long the spread at z=-2 (a=1, b=3): profit when the spread widens back
	// toward the mean. It moves from -2 to 0, a gain of 2 * notional.
	_, err := l.Evaluate(ctx, sig("TCS/INFY", -2.0, 1, 3, at))
	require.NoError(t, err)

	events, err := l.Evaluate(ctx, sig("TCS/INFY", 0.0, 3, 3, at.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Trade.RealizedPnL)
	assert.InDelta(t, 20000.0, *events[0].Trade.RealizedPnL, 1e-9)
}

func TestOpenManual(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	// Below the entry threshold, but manual entry bypasses it. Empty side
	// derives the direction from the z-score sign.
	evt, err := l.OpenManual(ctx, sig("TCS/INFY", 0.5, 2.5, 2, at), "")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeSideShortSpread, evt.Trade.Side)
	assert.True(t, evt.Trade.Manual)

	// Second open on the same pair is rejected.
	_, err = l.OpenManual(ctx, sig("TCS/INFY", 0.5, 2.5, 2, at), "")
	require.ErrorIs(t, err, domain.ErrPositionOpen)
}

func TestOpenManualExplicitSide(t *testing.T) {
	l := testLedger()
	at := time.Now().UTC()

	evt, err := l.OpenManual(context.Background(),
		sig("TCS/INFY", 0.5, 2.5, 2, at), domain.TradeSideLongSpread)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeSideLongSpread, evt.Trade.Side)
}

func TestCloseManualWithoutPosition(t *testing.T) {
	l := testLedger()
	at := time.Now().UTC()

	_, err := l.CloseManual(context.Background(), sig("TCS/INFY", 0, 1, 1, at))
	require.ErrorIs(t, err, domain.ErrNoOpenPosition)
}

func TestPairsAreIndependent(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)
	_, err = l.Evaluate(ctx, sig("SBIN/BANKBARODA", -2.0, 1, 3, at))
	require.NoError(t, err)

	snap := l.Snapshot(nil)
	require.Len(t, snap.Open, 2)
	// Deterministic ordering by pair ID.
	assert.Equal(t, "SBIN/BANKBARODA", snap.Open[0].Trade.PairID)
	assert.Equal(t, "TCS/INFY", snap.Open[1].Trade.PairID)
}

func TestSnapshotMarksUnrealized(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)

	// Spread narrowed from 2 to 1: the short is up 1 * notional, unrealized.
	marks := map[string]domain.Signal{
		"TCS/INFY": sig("TCS/INFY", 1.0, 2, 1, at.Add(time.Minute)),
	}
	snap := l.Snapshot(marks)
	require.Len(t, snap.Open, 1)
	assert.InDelta(t, 10000.0, snap.Open[0].UnrealizedPnL, 1e-9)
	assert.Equal(t, 100000.0, snap.Balance)
	assert.Equal(t, 100000.0, snap.StartingCapital)

	// An unmarked pair reports zero, not a stale or invented value.
	snap = l.Snapshot(nil)
	assert.Equal(t, 0.0, snap.Open[0].UnrealizedPnL)
}

// fakeTradeStore is an in-memory stand-in for the postgres trade store.
type fakeTradeStore struct {
	open   []domain.Trade
	closed []domain.Trade
}

func (s *fakeTradeStore) InsertOpen(ctx context.Context, t domain.Trade) error {
	s.open = append(s.open, t)
	return nil
}

func (s *fakeTradeStore) MarkClosed(ctx context.Context, t domain.Trade) error {
	for i, o := range s.open {
		if o.ID == t.ID {
			s.open = append(s.open[:i], s.open[i+1:]...)
			s.closed = append(s.closed, t)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeTradeStore) ListOpen(ctx context.Context) ([]domain.Trade, error) {
	return append([]domain.Trade(nil), s.open...), nil
}

func (s *fakeTradeStore) ListClosed(ctx context.Context, limit int) ([]domain.Trade, error) {
	out := append([]domain.Trade(nil), s.closed...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTradeStore) RealizedTotal(ctx context.Context) (float64, error) {
	var sum float64
	for _, t := range s.closed {
		if t.RealizedPnL != nil {
			sum += *t.RealizedPnL
		}
	}
	return sum, nil
}

func persistedLedger(store domain.TradeStore) *Ledger {
	return New(Config{
		EntryThreshold:  2.0,
		ExitThreshold:   0.2,
		Notional:        10000,
		StartingCapital: 100000,
	}, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRestoreReproducesBalanceAndClosedLog(t *testing.T) {
	store := &fakeTradeStore{}
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Live run: one complete round trip (+2 * notional) and one position left
	// open.
	l := persistedLedger(store)
	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)
	_, err = l.Evaluate(ctx, sig("TCS/INFY", 0.0, 1, 1, at.Add(time.Minute)))
	require.NoError(t, err)
	_, err = l.Evaluate(ctx, sig("SBIN/BANKBARODA", -2.0, 1, 3, at.Add(time.Minute)))
	require.NoError(t, err)

	liveSnap := l.Snapshot(nil)

	// Restart: a fresh ledger over the same store must carry an identical
	// balance, closed log, and open position.
	restored := persistedLedger(store)
	require.NoError(t, restored.Restore(ctx))

	assert.InDelta(t, 120000.0, restored.Balance(), 1e-9)

	snap := restored.Snapshot(nil)
	require.Len(t, snap.Closed, 1)
	assert.Equal(t, liveSnap.Closed[0].ID, snap.Closed[0].ID)
	require.NotNil(t, snap.Closed[0].RealizedPnL)
	assert.InDelta(t, 20000.0, *snap.Closed[0].RealizedPnL, 1e-9)

	require.Len(t, snap.Open, 1)
	assert.Equal(t, liveSnap.Open[0].Trade.ID, snap.Open[0].Trade.ID)
	assert.Equal(t, "SBIN/BANKBARODA", snap.Open[0].Trade.PairID)

	require.NoError(t, restored.CheckInvariant())

	// The restored ledger keeps trading where the live one left off.
	_, err = restored.Evaluate(ctx, sig("SBIN/BANKBARODA", 0.0, 3, 3, at.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.InDelta(t, 140000.0, restored.Balance(), 1e-9)
}

func TestRestoreRejectsDuplicateOpenRows(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &fakeTradeStore{open: []domain.Trade{
		{ID: "t1", PairID: "TCS/INFY", Side: domain.TradeSideShortSpread, Status: domain.TradeStatusOpen, OpenedAt: at},
		{ID: "t2", PairID: "TCS/INFY", Side: domain.TradeSideLongSpread, Status: domain.TradeStatusOpen, OpenedAt: at.Add(time.Minute)},
	}}

	l := persistedLedger(store)
	err := l.Restore(context.Background())
	require.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestRestoreWithoutStoreIsNoOp(t *testing.T) {
	l := testLedger()
	require.NoError(t, l.Restore(context.Background()))
	assert.Equal(t, 100000.0, l.Balance())
}

func TestBalanceAccumulatesAcrossTrades(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	at := time.Now().UTC()

	// Win 2*notional on the first trade, lose 1*notional on the second.
	_, err := l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at))
	require.NoError(t, err)
	_, err = l.Evaluate(ctx, sig("TCS/INFY", 0.0, 1, 1, at.Add(time.Minute)))
	require.NoError(t, err)

	_, err = l.Evaluate(ctx, sig("TCS/INFY", 2.0, 3, 1, at.Add(2*time.Minute)))
	require.NoError(t, err)
	// Spread widened further against the short before the manual close.
	_, err = l.CloseManual(ctx, sig("TCS/INFY", 3.0, 4, 1, at.Add(3*time.Minute)))
	require.NoError(t, err)

	assert.InDelta(t, 100000.0+20000.0-10000.0, l.Balance(), 1e-9)
	require.NoError(t, l.CheckInvariant())

	snap := l.Snapshot(nil)
	assert.Len(t, snap.Closed, 2)
	assert.Empty(t, snap.Open)
}
