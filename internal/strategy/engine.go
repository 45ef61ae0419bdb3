package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quantpair/pairtrader/internal/domain"
	"github.com/quantpair/pairtrader/internal/ledger"
	"github.com/quantpair/pairtrader/internal/metrics"
)

// Skip reasons reported per pair in a TickResult.
const (
	skipNoBaseline = "no_baseline"
	skipFeed       = "feed_unavailable"
	skipLedger     = "ledger_error"
)

// EngineConfig holds the per-tick evaluation parameters.
type EngineConfig struct {
	Pairs        []domain.Pair
	TickInterval time.Duration
	// TickTimeout bounds a single evaluation pass; a tick that cannot finish
	// in time is abandoned and logged. Skipping a tick is safe.
	TickTimeout time.Duration
	// AutoTrade applies ledger transitions. When false (monitor mode) the
	// engine computes and publishes signals without touching the ledger.
	AutoTrade bool
}

// BaselineSource serves the current baseline per pair.
type BaselineSource interface {
	Baseline(pairID string) (domain.PairBaseline, error)
}

// Notifier is the subset of the notification dispatcher the engine uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// TickResult is everything one evaluation pass produced, for observability.
type TickResult struct {
	Signals []domain.Signal      `json:"signals"`
	Events  []domain.LedgerEvent `json:"events"`
	Skipped map[string]string    `json:"skipped,omitempty"`
	At      time.Time            `json:"at"`
}

// Engine orchestrates one evaluation pass per tick: pull prices, compute the
// signal per pair, and apply the ledger's transition rules. Pairs fail soft;
// one bad symbol never aborts the cycle.
type Engine struct {
	cfg       EngineConfig
	feed      domain.PriceFeed
	baselines BaselineSource
	book      *ledger.Ledger
	bus       domain.EventBus // nil when no bus is wired
	notifier  Notifier        // nil when notifications are disabled
	logger    *slog.Logger

	sf singleflight.Group

	mu          sync.RWMutex
	lastSignals map[string]domain.Signal
}

// NewEngine creates an Engine. bus and notifier may be nil.
func NewEngine(cfg EngineConfig, feed domain.PriceFeed, baselines BaselineSource, book *ledger.Ledger, bus domain.EventBus, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		feed:        feed,
		baselines:   baselines,
		book:        book,
		bus:         bus,
		notifier:    notifier,
		logger:      logger.With(slog.String("component", "strategy_engine")),
		lastSignals: make(map[string]domain.Signal),
	}
}

// EvaluateTick runs one evaluation pass over all configured pairs in pair-ID
// order and returns the signals computed and ledger transitions applied.
func (e *Engine) EvaluateTick(ctx context.Context) (TickResult, error) {
	pairs := append([]domain.Pair(nil), e.cfg.Pairs...)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ID() < pairs[j].ID() })

	res := TickResult{
		Skipped: make(map[string]string),
		At:      time.Now().UTC(),
	}

	for _, pair := range pairs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		sig, events, skip := e.evaluatePair(ctx, pair)
		if skip != "" {
			res.Skipped[pair.ID()] = skip
			metrics.PairSkips.WithLabelValues(pair.ID(), skip).Inc()
			continue
		}

		res.Signals = append(res.Signals, sig)
		res.Events = append(res.Events, events...)
		metrics.SignalsTotal.WithLabelValues(pair.ID()).Inc()
	}

	metrics.TicksTotal.Inc()
	e.publishTick(ctx, res)
	return res, nil
}

// evaluatePair computes the pair's signal and, in auto-trade mode, applies
// the ledger rules. A non-empty skip reason means the pair produced nothing
// this tick.
func (e *Engine) evaluatePair(ctx context.Context, pair domain.Pair) (domain.Signal, []domain.LedgerEvent, string) {
	baseline, err := e.baselines.Baseline(pair.ID())
	if err != nil {
		e.logger.DebugContext(ctx, "pair skipped: no baseline", slog.String("pair", pair.ID()))
		return domain.Signal{}, nil, skipNoBaseline
	}

	quoteA, err := e.feed.Latest(ctx, pair.SymbolA)
	if err != nil {
		e.logger.WarnContext(ctx, "pair skipped: quote unavailable",
			slog.String("pair", pair.ID()),
			slog.String("symbol", pair.SymbolA),
			slog.String("error", err.Error()),
		)
		return domain.Signal{}, nil, skipFeed
	}
	quoteB, err := e.feed.Latest(ctx, pair.SymbolB)
	if err != nil {
		e.logger.WarnContext(ctx, "pair skipped: quote unavailable",
			slog.String("pair", pair.ID()),
			slog.String("symbol", pair.SymbolB),
			slog.String("error", err.Error()),
		)
		return domain.Signal{}, nil, skipFeed
	}

	sig, err := ComputeSignal(baseline, quoteA.Price, quoteB.Price, time.Now().UTC())
	if err != nil {
		return domain.Signal{}, nil, skipNoBaseline
	}

	e.mu.Lock()
	e.lastSignals[pair.ID()] = sig
	e.mu.Unlock()

	if !e.cfg.AutoTrade {
		return sig, nil, ""
	}

	events, err := e.book.Evaluate(ctx, sig)
	if err != nil {
		e.logger.ErrorContext(ctx, "ledger evaluation failed",
			slog.String("pair", pair.ID()),
			slog.String("error", err.Error()),
		)
		return domain.Signal{}, nil, skipLedger
	}
	e.notifyEvents(ctx, events)
	return sig, events, ""
}

// Tick runs EvaluateTick under a single-flight guard with the configured
// timeout. A tick requested while one is in flight shares its result instead
// of mutating the ledger concurrently.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	v, err, _ := e.sf.Do("tick", func() (any, error) {
		tickCtx := ctx
		if e.cfg.TickTimeout > 0 {
			var cancel context.CancelFunc
			tickCtx, cancel = context.WithTimeout(ctx, e.cfg.TickTimeout)
			defer cancel()
		}
		return e.EvaluateTick(tickCtx)
	})
	if err != nil {
		return TickResult{}, err
	}
	return v.(TickResult), nil
}

// Run evaluates a tick on every interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("strategy engine started",
		slog.Duration("tick_interval", e.cfg.TickInterval),
		slog.Int("pairs", len(e.cfg.Pairs)),
		slog.Bool("auto_trade", e.cfg.AutoTrade),
	)
	defer e.logger.Info("strategy engine stopped")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn("tick abandoned", slog.String("error", err.Error()))
			}
		}
	}
}

// Signals returns the most recent signal per pair, sorted by pair ID.
func (e *Engine) Signals() []domain.Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Signal, 0, len(e.lastSignals))
	for _, sig := range e.lastSignals {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairID < out[j].PairID })
	return out
}

// Snapshot returns the ledger view marked at the latest signals.
func (e *Engine) Snapshot() domain.LedgerSnapshot {
	e.mu.RLock()
	marks := make(map[string]domain.Signal, len(e.lastSignals))
	for k, v := range e.lastSignals {
		marks[k] = v
	}
	e.mu.RUnlock()
	return e.book.Snapshot(marks)
}

// ManualOpen opens a position for the pair at current prices, bypassing the
// entry threshold. It is the alternate entry path offered to the presentation
// layer.
func (e *Engine) ManualOpen(ctx context.Context, pairID string, side domain.TradeSide) (domain.LedgerEvent, error) {
	sig, err := e.currentSignal(ctx, pairID)
	if err != nil {
		return domain.LedgerEvent{}, err
	}
	evt, err := e.book.OpenManual(ctx, sig, side)
	if err != nil {
		return domain.LedgerEvent{}, err
	}
	e.notifyEvents(ctx, []domain.LedgerEvent{evt})
	e.publishEvent(ctx, evt)
	return evt, nil
}

// ManualClose closes the pair's open position at current prices, bypassing
// the exit threshold.
func (e *Engine) ManualClose(ctx context.Context, pairID string) (domain.LedgerEvent, error) {
	sig, err := e.currentSignal(ctx, pairID)
	if err != nil {
		return domain.LedgerEvent{}, err
	}
	evt, err := e.book.CloseManual(ctx, sig)
	if err != nil {
		return domain.LedgerEvent{}, err
	}
	e.notifyEvents(ctx, []domain.LedgerEvent{evt})
	e.publishEvent(ctx, evt)
	return evt, nil
}

// currentSignal recomputes a fresh signal for one pair outside the tick loop.
func (e *Engine) currentSignal(ctx context.Context, pairID string) (domain.Signal, error) {
	pair, ok := e.pairByID(pairID)
	if !ok {
		return domain.Signal{}, fmt.Errorf("engine: pair %s: %w", pairID, domain.ErrNotFound)
	}
	baseline, err := e.baselines.Baseline(pairID)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine: pair %s: %w", pairID, err)
	}
	quoteA, err := e.feed.Latest(ctx, pair.SymbolA)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine: quote %s: %w", pair.SymbolA, err)
	}
	quoteB, err := e.feed.Latest(ctx, pair.SymbolB)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("engine: quote %s: %w", pair.SymbolB, err)
	}
	return ComputeSignal(baseline, quoteA.Price, quoteB.Price, time.Now().UTC())
}

func (e *Engine) pairByID(pairID string) (domain.Pair, bool) {
	for _, p := range e.cfg.Pairs {
		if p.ID() == pairID {
			return p, true
		}
	}
	return domain.Pair{}, false
}

// publishTick pushes the tick's signals and events onto the event bus for
// presentation-side subscribers.
func (e *Engine) publishTick(ctx context.Context, res TickResult) {
	if e.bus == nil {
		return
	}
	if len(res.Signals) > 0 {
		payload, _ := json.Marshal(res.Signals)
		if err := e.bus.Publish(ctx, "signals", payload); err != nil {
			e.logger.WarnContext(ctx, "publish signals failed", slog.String("error", err.Error()))
		}
	}
	for _, evt := range res.Events {
		e.publishEvent(ctx, evt)
	}
}

func (e *Engine) publishEvent(ctx context.Context, evt domain.LedgerEvent) {
	if e.bus == nil {
		return
	}
	payload, _ := json.Marshal(evt)
	if err := e.bus.Publish(ctx, "trades", payload); err != nil {
		e.logger.WarnContext(ctx, "publish ledger event failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) notifyEvents(ctx context.Context, events []domain.LedgerEvent) {
	if e.notifier == nil {
		return
	}
	for _, evt := range events {
		t := evt.Trade
		var title, msg string
		switch evt.Type {
		case domain.LedgerEventTradeOpened:
			title = fmt.Sprintf("Opened %s %s", t.Side, t.PairID)
			msg = fmt.Sprintf("entry z=%.2f, a=%.2f, b=%.2f", t.EntryZ, t.EntryPriceA, t.EntryPriceB)
		case domain.LedgerEventTradeClosed:
			pnl := 0.0
			if t.RealizedPnL != nil {
				pnl = *t.RealizedPnL
			}
			title = fmt.Sprintf("Closed %s %s", t.Side, t.PairID)
			msg = fmt.Sprintf("realized pnl=%.2f, balance=%.2f", pnl, evt.Balance)
		default:
			continue
		}
		if err := e.notifier.Notify(ctx, string(evt.Type), title, msg); err != nil {
			e.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}
}
