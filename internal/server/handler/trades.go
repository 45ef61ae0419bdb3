package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quantpair/pairtrader/internal/domain"
)

// ManualTrader exposes the engine's operator-initiated trade operations.
type ManualTrader interface {
	ManualOpen(ctx context.Context, pairID string, side domain.TradeSide) (domain.LedgerEvent, error)
	ManualClose(ctx context.Context, pairID string) (domain.LedgerEvent, error)
}

// TradeHandler serves the manual trade endpoints.
type TradeHandler struct {
	trader ManualTrader
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trader ManualTrader, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trader: trader,
		logger: logger.With(slog.String("handler", "trades")),
	}
}

// tradeRequest is the body for both open and close. Pair IDs contain a slash
// ("TCS/INFY"), so they travel in the body rather than the URL path.
type tradeRequest struct {
	Pair string `json:"pair"`
	Side string `json:"side,omitempty"`
}

func decodeTradeRequest(r *http.Request) (tradeRequest, bool) {
	var req tradeRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 4096)).Decode(&req); err != nil {
		return tradeRequest{}, false
	}
	req.Pair = strings.TrimSpace(req.Pair)
	return req, req.Pair != ""
}

// OpenTrade opens a position for the given pair at the current signal. The
// side is optional; when omitted the engine picks the side the z-score
// implies.
// POST /api/trades
func (h *TradeHandler) OpenTrade(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTradeRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty pair field")
		return
	}

	var side domain.TradeSide
	switch strings.TrimSpace(req.Side) {
	case "":
		// Engine derives the side from the current z-score.
	case string(domain.TradeSideLongSpread):
		side = domain.TradeSideLongSpread
	case string(domain.TradeSideShortSpread):
		side = domain.TradeSideShortSpread
	default:
		writeError(w, http.StatusBadRequest, "side must be long_spread or short_spread")
		return
	}

	event, err := h.trader.ManualOpen(r.Context(), req.Pair, side)
	if err != nil {
		h.logger.WarnContext(r.Context(), "manual open rejected",
			slog.String("pair", req.Pair),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// CloseTrade closes the open position for the given pair at the current
// signal.
// POST /api/trades/close
func (h *TradeHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTradeRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty pair field")
		return
	}

	event, err := h.trader.ManualClose(r.Context(), req.Pair)
	if err != nil {
		h.logger.WarnContext(r.Context(), "manual close rejected",
			slog.String("pair", req.Pair),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}
