package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantpair/pairtrader/internal/domain"
	"github.com/quantpair/pairtrader/internal/ledger"
	"github.com/quantpair/pairtrader/internal/server"
	"github.com/quantpair/pairtrader/internal/server/handler"
	"github.com/quantpair/pairtrader/internal/server/ws"
	"github.com/quantpair/pairtrader/internal/strategy"
)

// modeOptions selects what a mode runs on top of the shared refresher +
// engine loop.
type modeOptions struct {
	// autoTrade lets the engine apply ledger transitions. Off in monitor and
	// server modes, which only observe.
	autoTrade bool
	// serveAPI starts the HTTP + WebSocket server.
	serveAPI bool
}

// runEngine is the shared run loop for every mode: baseline refresher plus
// tick engine, optionally with the API server in front.
func (a *App) runEngine(ctx context.Context, deps *Dependencies, opts modeOptions) error {
	pairs := make([]domain.Pair, 0, len(a.cfg.Engine.Pairs))
	seen := make(map[string]bool)
	var symbols []string
	for _, p := range a.cfg.Engine.Pairs {
		pairs = append(pairs, domain.Pair{SymbolA: p.SymbolA, SymbolB: p.SymbolB})
		for _, s := range []string{p.SymbolA, p.SymbolB} {
			if !seen[s] {
				seen[s] = true
				symbols = append(symbols, s)
			}
		}
	}
	sort.Strings(symbols)

	book := ledger.New(ledger.Config{
		EntryThreshold:  a.cfg.Engine.EntryThreshold,
		ExitThreshold:   a.cfg.Engine.ExitThreshold,
		Notional:        a.cfg.Engine.Notional,
		StartingCapital: a.cfg.Engine.StartingCapital,
	}, deps.TradeStore, a.logger)

	if err := book.Restore(ctx); err != nil {
		return fmt.Errorf("app: restore ledger: %w", err)
	}

	estimator := strategy.NewEstimator(
		domain.BaselineMode(a.cfg.Engine.BaselineMode),
		a.cfg.Engine.MinPoints,
	)

	refresher := strategy.NewRefresher(strategy.RefresherConfig{
		Pairs:    pairs,
		Window:   a.cfg.Engine.HistoryWindow.Duration,
		Interval: a.cfg.Engine.BaselineRefreshInterval.Duration,
		CacheTTL: a.cfg.Engine.BaselineCacheTTL.Duration,
		MaxAge:   a.cfg.Engine.BaselineCacheTTL.Duration,
	}, deps.Feed, estimator, deps.BaselineCache, a.logger)

	// Adopt any still-fresh baselines left by a previous run before the first
	// full recompute.
	refresher.WarmStart(ctx)

	engine := strategy.NewEngine(strategy.EngineConfig{
		Pairs:        pairs,
		TickInterval: a.cfg.Engine.TickInterval.Duration,
		TickTimeout:  a.cfg.Engine.TickTimeout.Duration,
		AutoTrade:    opts.autoTrade,
	}, deps.Feed, refresher, book, deps.Bus, deps.Notifier, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return refresher.Run(gctx)
	})
	g.Go(func() error {
		return engine.Run(gctx)
	})

	if opts.serveAPI && a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.Bus, a.logger)
		g.Go(func() error {
			return hub.Run(gctx)
		})

		srv := server.New(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			Signals: handler.NewSignalHandler(engine, refresher, a.logger),
			Ledger:  handler.NewLedgerHandler(engine, a.logger),
			Trades:  handler.NewTradeHandler(engine, a.logger),
			Prices:  handler.NewPriceHandler(deps.PriceCache, symbols, a.logger),
		}, hub, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.logger.InfoContext(ctx, "mode running",
		slog.Bool("auto_trade", opts.autoTrade),
		slog.Bool("serve_api", opts.serveAPI),
		slog.Int("pairs", len(pairs)),
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}
