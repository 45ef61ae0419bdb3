package strategy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantpair/pairtrader/internal/domain"
	"github.com/quantpair/pairtrader/internal/metrics"
)

// RefresherConfig controls the baseline recompute schedule.
type RefresherConfig struct {
	Pairs []domain.Pair
	// Window is the trailing history window fetched for each regression.
	Window time.Duration
	// Interval is how often baselines are recomputed. Much coarser than the
	// tick interval; a full historical fetch is expensive.
	Interval time.Duration
	// CacheTTL bounds how long a published baseline may outlive its
	// recompute in the shared cache.
	CacheTTL time.Duration
	// MaxAge bounds how long the in-memory copy keeps serving after its
	// recompute, so a prolonged feed outage cannot leave the engine trading
	// on an arbitrarily stale baseline. <= 0 means no bound.
	MaxAge time.Duration
	// Concurrency caps parallel per-pair recomputes. <= 0 means 4.
	Concurrency int
}

// Refresher recomputes pair baselines on a coarse schedule, decoupled from
// the per-tick signal loop. Fresh baselines are served from memory and
// published to the shared cache; a failed recompute leaves the previous
// baseline in place until it outlives MaxAge.
type Refresher struct {
	cfg       RefresherConfig
	feed      domain.PriceFeed
	estimator *Estimator
	cache     domain.BaselineCache // nil when no shared cache is wired
	logger    *slog.Logger

	mu        sync.RWMutex
	baselines map[string]domain.PairBaseline
}

// NewRefresher creates a Refresher. cache may be nil.
func NewRefresher(cfg RefresherConfig, feed domain.PriceFeed, estimator *Estimator, cache domain.BaselineCache, logger *slog.Logger) *Refresher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Refresher{
		cfg:       cfg,
		feed:      feed,
		estimator: estimator,
		cache:     cache,
		logger:    logger.With(slog.String("component", "baseline_refresher")),
		baselines: make(map[string]domain.PairBaseline),
	}
}

// Baseline returns the current baseline for a pair, or ErrNoBaseline when
// none has been computed yet, the last one was invalid, or the last one is
// older than MaxAge.
func (r *Refresher) Baseline(pairID string) (domain.PairBaseline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.baselines[pairID]
	if !ok || !b.Valid() {
		return domain.PairBaseline{}, domain.ErrNoBaseline
	}
	if r.cfg.MaxAge > 0 && time.Since(b.ComputedAt) > r.cfg.MaxAge {
		return domain.PairBaseline{}, domain.ErrNoBaseline
	}
	return b, nil
}

// Baselines returns a copy of all current baselines keyed by pair ID.
func (r *Refresher) Baselines() map[string]domain.PairBaseline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.PairBaseline, len(r.baselines))
	for k, v := range r.baselines {
		out[k] = v
	}
	return out
}

// WarmStart loads any still-cached baselines so a restarted process can begin
// signalling before its first full recompute. Cache misses are not errors.
func (r *Refresher) WarmStart(ctx context.Context) {
	if r.cache == nil {
		return
	}
	for _, pair := range r.cfg.Pairs {
		b, err := r.cache.Get(ctx, pair.ID())
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				r.logger.WarnContext(ctx, "baseline cache read failed",
					slog.String("pair", pair.ID()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if !b.Valid() {
			continue
		}
		r.mu.Lock()
		r.baselines[pair.ID()] = b
		r.mu.Unlock()
		r.logger.InfoContext(ctx, "baseline warm-started from cache",
			slog.String("pair", pair.ID()),
			slog.Time("computed_at", b.ComputedAt),
		)
	}
}

// RefreshAll recomputes every pair's baseline with bounded concurrency. A
// pair whose fetch or fit fails keeps its previous baseline and does not
// abort the others.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, pair := range r.cfg.Pairs {
		pair := pair
		g.Go(func() error {
			if err := r.refreshPair(gctx, pair); err != nil {
				metrics.BaselineRefreshes.WithLabelValues(pair.ID(), "error").Inc()
				r.logger.WarnContext(gctx, "baseline refresh failed",
					slog.String("pair", pair.ID()),
					slog.String("error", err.Error()),
				)
				return nil // per-pair failure is not fatal to the batch
			}
			metrics.BaselineRefreshes.WithLabelValues(pair.ID(), "ok").Inc()
			return nil
		})
	}
	return g.Wait()
}

func (r *Refresher) refreshPair(ctx context.Context, pair domain.Pair) error {
	seriesA, err := r.feed.History(ctx, pair.SymbolA, r.cfg.Window)
	if err != nil {
		return err
	}
	seriesB, err := r.feed.History(ctx, pair.SymbolB, r.cfg.Window)
	if err != nil {
		return err
	}

	b, err := r.estimator.Estimate(pair, seriesA, seriesB, time.Now().UTC())
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.baselines[pair.ID()] = b
	r.mu.Unlock()

	if r.cache != nil {
		if err := r.cache.Set(ctx, b, r.cfg.CacheTTL); err != nil {
			r.logger.WarnContext(ctx, "baseline cache write failed",
				slog.String("pair", pair.ID()),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.DebugContext(ctx, "baseline refreshed",
		slog.String("pair", pair.ID()),
		slog.Float64("hedge_ratio", b.HedgeRatio),
		slog.Float64("spread_mean", b.SpreadMean),
		slog.Float64("spread_std", b.SpreadStd),
		slog.Int("points", b.Points),
	)
	return nil
}

// Run refreshes immediately, then on every interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("baseline refresher started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Duration("window", r.cfg.Window),
	)
	defer r.logger.Info("baseline refresher stopped")

	if err := r.RefreshAll(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("initial baseline refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshAll(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
