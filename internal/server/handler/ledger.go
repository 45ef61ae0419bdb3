package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantpair/pairtrader/internal/domain"
)

// SnapshotSource exposes the engine's marked-to-market ledger view.
type SnapshotSource interface {
	Snapshot() domain.LedgerSnapshot
}

// LedgerHandler serves the paper-trading ledger endpoint.
type LedgerHandler struct {
	snapshots SnapshotSource
	logger    *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(snapshots SnapshotSource, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		snapshots: snapshots,
		logger:    logger.With(slog.String("handler", "ledger")),
	}
}

// GetLedger returns balance, open positions with unrealized PnL, and the
// closed-trade log.
// GET /api/ledger
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshots.Snapshot())
}
