package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantpair/pairtrader/internal/domain"
)

// CachedFeed decorates a PriceFeed, writing every successful quote through to
// the shared price cache so other processes (and the API's price endpoint)
// can read the latest prices without hitting the upstream API. When the
// upstream feed fails, a cached quote no older than maxStale is served in its
// place, so a brief outage degrades to slightly stale prices instead of a
// skipped pair.
type CachedFeed struct {
	inner    domain.PriceFeed
	prices   domain.PriceCache
	maxStale time.Duration
	logger   *slog.Logger
}

// NewCachedFeed wraps inner with write-through price caching. maxStale bounds
// how old a cached quote may be to stand in for a failed upstream fetch;
// <= 0 disables the fallback.
func NewCachedFeed(inner domain.PriceFeed, prices domain.PriceCache, maxStale time.Duration, logger *slog.Logger) *CachedFeed {
	return &CachedFeed{
		inner:    inner,
		prices:   prices,
		maxStale: maxStale,
		logger:   logger.With(slog.String("component", "cached_feed")),
	}
}

// Latest fetches the quote from the underlying feed and mirrors it into the
// price cache. A cache write failure never fails the quote. When the
// underlying fetch fails, a sufficiently fresh cached quote is returned
// instead; otherwise the feed error propagates unchanged.
func (f *CachedFeed) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	q, err := f.inner.Latest(ctx, symbol)
	if err != nil {
		if fallback, ok := f.cachedQuote(ctx, symbol); ok {
			f.logger.WarnContext(ctx, "serving cached quote, upstream unavailable",
				slog.String("symbol", symbol),
				slog.Time("cached_at", fallback.Time),
				slog.String("error", err.Error()),
			)
			return fallback, nil
		}
		return domain.Quote{}, err
	}
	if cacheErr := f.prices.SetPrice(ctx, q.Symbol, q.Price, q.Time); cacheErr != nil {
		f.logger.WarnContext(ctx, "price cache write failed",
			slog.String("symbol", symbol),
			slog.String("error", cacheErr.Error()),
		)
	}
	return q, nil
}

// cachedQuote returns the cached price for symbol if it exists and is within
// the staleness bound.
func (f *CachedFeed) cachedQuote(ctx context.Context, symbol string) (domain.Quote, bool) {
	if f.maxStale <= 0 {
		return domain.Quote{}, false
	}
	price, ts, err := f.prices.GetPrice(ctx, symbol)
	if err != nil {
		return domain.Quote{}, false
	}
	if time.Since(ts) > f.maxStale {
		return domain.Quote{}, false
	}
	return domain.Quote{Symbol: symbol, Price: price, Time: ts}, true
}

// History delegates to the underlying feed.
func (f *CachedFeed) History(ctx context.Context, symbol string, window time.Duration) (domain.PriceSeries, error) {
	return f.inner.History(ctx, symbol, window)
}

// Compile-time interface check.
var _ domain.PriceFeed = (*CachedFeed)(nil)
