package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// PriceReader serves the latest cached prices for a set of symbols.
type PriceReader interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PriceHandler serves the latest known price per tracked symbol, read from
// the shared price cache rather than the upstream feed.
type PriceHandler struct {
	prices  PriceReader
	symbols []string
	logger  *slog.Logger
}

// NewPriceHandler creates a PriceHandler for the given tracked symbols.
func NewPriceHandler(prices PriceReader, symbols []string, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		prices:  prices,
		symbols: symbols,
		logger:  logger.With(slog.String("handler", "prices")),
	}
}

// ListPrices returns the latest cached price per tracked symbol. Symbols
// without a cached price yet are omitted.
// GET /api/prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.prices.GetPrices(r.Context(), h.symbols)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "price cache read failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}
