package strategy

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

// historyFeed serves canned historical series per symbol.
type historyFeed struct {
	mu     sync.Mutex
	series map[string]domain.PriceSeries
}

func (f *historyFeed) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{}, fmt.Errorf("feed: quote %s: %w", symbol, domain.ErrFeedUnavailable)
}

func (f *historyFeed) History(ctx context.Context, symbol string, window time.Duration) (domain.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.series[symbol]
	if !ok {
		return nil, fmt.Errorf("feed: history %s: %w", symbol, domain.ErrFeedUnavailable)
	}
	return s, nil
}

// memBaselineCache is an in-memory stand-in for the Redis baseline cache.
type memBaselineCache struct {
	mu        sync.Mutex
	baselines map[string]domain.PairBaseline
}

func newMemBaselineCache() *memBaselineCache {
	return &memBaselineCache{baselines: make(map[string]domain.PairBaseline)}
}

func (c *memBaselineCache) Set(ctx context.Context, b domain.PairBaseline, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baselines[b.PairID] = b
	return nil
}

func (c *memBaselineCache) Get(ctx context.Context, pairID string) (domain.PairBaseline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.baselines[pairID]
	if !ok {
		return domain.PairBaseline{}, domain.ErrNotFound
	}
	return b, nil
}

func correlatedSeries(start time.Time, n int) (a, b domain.PriceSeries) {
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		pb := 100.0 + float64(i%7)
		noise := 1.0
		if i%2 == 0 {
			noise = -1.0
		}
		b = append(b, domain.PricePoint{Symbol: "B", Price: pb, Time: ts})
		a = append(a, domain.PricePoint{Symbol: "A", Price: pb + 10 + noise, Time: ts})
	}
	return a, b
}

func TestRefreshAll(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sa, sb := correlatedSeries(start, 60)
	pair := domain.Pair{SymbolA: "A", SymbolB: "B"}

	feed := &historyFeed{series: map[string]domain.PriceSeries{"A": sa, "B": sb}}
	cache := newMemBaselineCache()
	r := NewRefresher(RefresherConfig{
		Pairs:    []domain.Pair{pair},
		Window:   time.Hour,
		Interval: time.Minute,
		CacheTTL: time.Hour,
	}, feed, NewEstimator(domain.BaselineModeRatio, 30), cache, discardLogger())

	require.NoError(t, r.RefreshAll(context.Background()))

	b, err := r.Baseline(pair.ID())
	require.NoError(t, err)
	assert.Equal(t, "A/B", b.PairID)
	assert.Equal(t, 60, b.Points)
	assert.True(t, b.Valid())

	// The fresh baseline was also published to the shared cache.
	cached, err := cache.Get(context.Background(), pair.ID())
	require.NoError(t, err)
	assert.Equal(t, b.PairID, cached.PairID)
	assert.Equal(t, b.SpreadStd, cached.SpreadStd)
}

func TestRefreshAllKeepsPreviousBaselineOnFailure(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sa, sb := correlatedSeries(start, 60)
	pair := domain.Pair{SymbolA: "A", SymbolB: "B"}

	feed := &historyFeed{series: map[string]domain.PriceSeries{"A": sa, "B": sb}}
	r := NewRefresher(RefresherConfig{
		Pairs:    []domain.Pair{pair},
		Window:   time.Hour,
		Interval: time.Minute,
	}, feed, NewEstimator(domain.BaselineModeRatio, 30), nil, discardLogger())

	ctx := context.Background()
	require.NoError(t, r.RefreshAll(ctx))
	before, err := r.Baseline(pair.ID())
	require.NoError(t, err)

	// Feed outage on the next refresh: the batch still succeeds and the pair
	// keeps serving its previous baseline.
	feed.mu.Lock()
	delete(feed.series, "A")
	feed.mu.Unlock()

	require.NoError(t, r.RefreshAll(ctx))
	after, err := r.Baseline(pair.ID())
	require.NoError(t, err)
	assert.Equal(t, before.ComputedAt, after.ComputedAt)
}

func TestRefreshAllPairFailuresAreIsolated(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sa, sb := correlatedSeries(start, 60)

	good := domain.Pair{SymbolA: "A", SymbolB: "B"}
	bad := domain.Pair{SymbolA: "X", SymbolB: "Y"}

	feed := &historyFeed{series: map[string]domain.PriceSeries{"A": sa, "B": sb}}
	r := NewRefresher(RefresherConfig{
		Pairs:    []domain.Pair{good, bad},
		Window:   time.Hour,
		Interval: time.Minute,
	}, feed, NewEstimator(domain.BaselineModeRatio, 30), nil, discardLogger())

	require.NoError(t, r.RefreshAll(context.Background()))

	_, err := r.Baseline(good.ID())
	assert.NoError(t, err)
	_, err = r.Baseline(bad.ID())
	assert.ErrorIs(t, err, domain.ErrNoBaseline)
}

func TestWarmStart(t *testing.T) {
	pair := domain.Pair{SymbolA: "A", SymbolB: "B"}
	cache := newMemBaselineCache()
	seeded := domain.PairBaseline{
		PairID:     pair.ID(),
		SymbolA:    "A",
		SymbolB:    "B",
		Mode:       domain.BaselineModeOLS,
		HedgeRatio: 1.2,
		SpreadMean: 3,
		SpreadStd:  0.5,
		Points:     40,
		ComputedAt: time.Now().UTC().Add(-10 * time.Minute),
	}
	require.NoError(t, cache.Set(context.Background(), seeded, time.Hour))

	feed := &historyFeed{series: map[string]domain.PriceSeries{}}
	r := NewRefresher(RefresherConfig{
		Pairs:    []domain.Pair{pair},
		Window:   time.Hour,
		Interval: time.Minute,
	}, feed, NewEstimator(domain.BaselineModeOLS, 30), cache, discardLogger())

	_, err := r.Baseline(pair.ID())
	require.ErrorIs(t, err, domain.ErrNoBaseline)

	r.WarmStart(context.Background())

	b, err := r.Baseline(pair.ID())
	require.NoError(t, err)
	assert.Equal(t, seeded.HedgeRatio, b.HedgeRatio)
	assert.Equal(t, seeded.ComputedAt, b.ComputedAt)
}

func TestBaselineExpiresAfterMaxAge(t *testing.T) {
	pair := domain.Pair{SymbolA: "A", SymbolB: "B"}
	cache := newMemBaselineCache()
	stale := domain.PairBaseline{
		PairID:     pair.ID(),
		SymbolA:    "A",
		SymbolB:    "B",
		Mode:       domain.BaselineModeOLS,
		HedgeRatio: 1.2,
		SpreadMean: 3,
		SpreadStd:  0.5,
		Points:     40,
		ComputedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, cache.Set(context.Background(), stale, time.Hour))

	feed := &historyFeed{series: map[string]domain.PriceSeries{}}
	r := NewRefresher(RefresherConfig{
		Pairs:    []domain.Pair{pair},
		Window:   time.Hour,
		Interval: time.Minute,
		MaxAge:   time.Hour,
	}, feed, NewEstimator(domain.BaselineModeOLS, 30), cache, discardLogger())
	r.WarmStart(context.Background())

	// Two hours old against a one-hour bound: the baseline must not be
	// served, even though it is otherwise valid.
	_, err := r.Baseline(pair.ID())
	assert.ErrorIs(t, err, domain.ErrNoBaseline)

	// A fresh one inside the bound is served normally.
	fresh := stale
	fresh.ComputedAt = time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, cache.Set(context.Background(), fresh, time.Hour))
	r.WarmStart(context.Background())

	b, err := r.Baseline(pair.ID())
	require.NoError(t, err)
	assert.Equal(t, fresh.ComputedAt, b.ComputedAt)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
