package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpair/pairtrader/internal/domain"
)

type fakePriceReader struct {
	prices map[string]float64
	err    error
}

func (f *fakePriceReader) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func TestListPrices(t *testing.T) {
	reader := &fakePriceReader{prices: map[string]float64{
		"TCS":  3500,
		"INFY": 1450,
	}}
	h := NewPriceHandler(reader, []string{"TCS", "INFY", "SBIN"}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListPrices(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Prices map[string]float64 `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3500.0, body.Prices["TCS"])
	assert.Equal(t, 1450.0, body.Prices["INFY"])
	// No cached price yet: omitted, not zero.
	_, ok := body.Prices["SBIN"]
	assert.False(t, ok)
}

func TestListPricesCacheError(t *testing.T) {
	reader := &fakePriceReader{err: fmt.Errorf("prices: %w", domain.ErrFeedUnavailable)}
	h := NewPriceHandler(reader, []string{"TCS"}, discardLogger())

	rec := httptest.NewRecorder()
	h.ListPrices(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
