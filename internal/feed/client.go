// Package feed implements the PriceFeed contract against an HTTP quote API.
// Every failure mode past the boundary (timeout, bad status, malformed body,
// nonsense price) is reported as domain.ErrFeedUnavailable so callers can
// treat it uniformly as skip-this-pair.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/quantpair/pairtrader/internal/domain"
)

// Config holds the quote API parameters.
type Config struct {
	BaseURL  string
	APIKey   string
	Exchange string
	Timeout  time.Duration
}

// Client fetches spot quotes and historical candles from a JSON quote API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a quote API client with a bounded request timeout.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// apiQuote mirrors the quote endpoint's response body.
type apiQuote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // Unix seconds
}

// apiCandle mirrors one entry of the candles endpoint's response body.
type apiCandle struct {
	Time  int64   `json:"t"` // Unix seconds, candle open
	Close float64 `json:"c"`
}

// Latest returns the most recent spot quote for symbol.
func (c *Client) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if c.cfg.Exchange != "" {
		params.Set("exchange", c.cfg.Exchange)
	}

	body, err := c.doGet(ctx, "/quote?"+params.Encode())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("feed: quote %s: %w", symbol, err)
	}

	var q apiQuote
	if err := json.Unmarshal(body, &q); err != nil {
		return domain.Quote{}, fmt.Errorf("feed: quote %s: decode: %v: %w", symbol, err, domain.ErrFeedUnavailable)
	}
	if q.Price <= 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return domain.Quote{}, fmt.Errorf("feed: quote %s: price %g out of range: %w", symbol, q.Price, domain.ErrFeedUnavailable)
	}

	ts := time.Unix(q.Timestamp, 0).UTC()
	if q.Timestamp == 0 {
		ts = time.Now().UTC()
	}
	return domain.Quote{Symbol: symbol, Price: q.Price, Time: ts}, nil
}

// History returns candle closes over the trailing window as an ascending
// series. Candles with non-positive closes are dropped.
func (c *Client) History(ctx context.Context, symbol string, window time.Duration) (domain.PriceSeries, error) {
	now := time.Now().UTC()
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", strconv.FormatInt(now.Add(-window).Unix(), 10))
	params.Set("to", strconv.FormatInt(now.Unix(), 10))
	params.Set("interval", "1m")
	if c.cfg.Exchange != "" {
		params.Set("exchange", c.cfg.Exchange)
	}

	body, err := c.doGet(ctx, "/candles?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("feed: history %s: %w", symbol, err)
	}

	var candles []apiCandle
	if err := json.Unmarshal(body, &candles); err != nil {
		return nil, fmt.Errorf("feed: history %s: decode: %v: %w", symbol, err, domain.ErrFeedUnavailable)
	}

	series := make(domain.PriceSeries, 0, len(candles))
	var last int64
	for _, cd := range candles {
		if cd.Close <= 0 || math.IsNaN(cd.Close) || math.IsInf(cd.Close, 0) {
			continue
		}
		if cd.Time <= last && len(series) > 0 {
			// Out-of-order or duplicate candle; the series contract requires
			// strictly ascending timestamps.
			continue
		}
		last = cd.Time
		series = append(series, domain.PricePoint{
			Symbol: symbol,
			Price:  cd.Close,
			Time:   time.Unix(cd.Time, 0).UTC(),
		})
	}
	return series, nil
}

// doGet performs a GET against the API and returns the response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %v: %w", err, domain.ErrFeedUnavailable)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %v: %w", err, domain.ErrFeedUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrFeedUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, domain.ErrFeedUnavailable)
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.PriceFeed = (*Client)(nil)
