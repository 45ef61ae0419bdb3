package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpair/pairtrader/internal/domain"
)

// flakyFeed serves quotes per symbol and can be switched into outage.
type flakyFeed struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	down   bool
}

func (f *flakyFeed) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[symbol]
	if f.down || !ok {
		return domain.Quote{}, fmt.Errorf("feed: quote %s: %w", symbol, domain.ErrFeedUnavailable)
	}
	return q, nil
}

func (f *flakyFeed) History(ctx context.Context, symbol string, window time.Duration) (domain.PriceSeries, error) {
	return nil, fmt.Errorf("feed: history %s: %w", symbol, domain.ErrFeedUnavailable)
}

func (f *flakyFeed) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

// memPriceCache is an in-memory stand-in for the Redis price cache.
type memPriceCache struct {
	mu     sync.Mutex
	prices map[string]domain.Quote
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{prices: make(map[string]domain.Quote)}
}

func (c *memPriceCache) SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = domain.Quote{Symbol: symbol, Price: price, Time: ts}
	return nil
}

func (c *memPriceCache) GetPrice(ctx context.Context, symbol string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return q.Price, q.Time, nil
}

func (c *memPriceCache) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if q, ok := c.prices[s]; ok {
			out[s] = q.Price
		}
	}
	return out, nil
}

func cachedTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachedFeedWritesThrough(t *testing.T) {
	now := time.Now().UTC()
	inner := &flakyFeed{quotes: map[string]domain.Quote{
		"TCS": {Symbol: "TCS", Price: 3500, Time: now},
	}}
	cache := newMemPriceCache()
	cf := NewCachedFeed(inner, cache, time.Minute, cachedTestLogger())

	q, err := cf.Latest(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Equal(t, 3500.0, q.Price)

	price, ts, err := cache.GetPrice(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Equal(t, 3500.0, price)
	assert.Equal(t, now, ts)
}

func TestCachedFeedServesCachedQuoteDuringOutage(t *testing.T) {
	now := time.Now().UTC()
	inner := &flakyFeed{quotes: map[string]domain.Quote{
		"TCS": {Symbol: "TCS", Price: 3500, Time: now},
	}}
	cache := newMemPriceCache()
	cf := NewCachedFeed(inner, cache, time.Minute, cachedTestLogger())
	ctx := context.Background()

	_, err := cf.Latest(ctx, "TCS")
	require.NoError(t, err)

	// Upstream goes down right after a successful fetch: the cached quote is
	// still fresh and stands in for it.
	inner.setDown(true)
	q, err := cf.Latest(ctx, "TCS")
	require.NoError(t, err)
	assert.Equal(t, 3500.0, q.Price)
	assert.Equal(t, now, q.Time)
}

func TestCachedFeedRejectsStaleQuote(t *testing.T) {
	stale := time.Now().UTC().Add(-10 * time.Minute)
	inner := &flakyFeed{down: true}
	cache := newMemPriceCache()
	require.NoError(t, cache.SetPrice(context.Background(), "TCS", 3500, stale))

	cf := NewCachedFeed(inner, cache, time.Minute, cachedTestLogger())

	_, err := cf.Latest(context.Background(), "TCS")
	require.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestCachedFeedFallbackDisabled(t *testing.T) {
	inner := &flakyFeed{down: true}
	cache := newMemPriceCache()
	require.NoError(t, cache.SetPrice(context.Background(), "TCS", 3500, time.Now().UTC()))

	cf := NewCachedFeed(inner, cache, 0, cachedTestLogger())

	_, err := cf.Latest(context.Background(), "TCS")
	require.ErrorIs(t, err, domain.ErrFeedUnavailable)
}
