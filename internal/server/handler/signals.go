package handler

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/quantpair/pairtrader/internal/domain"
)

// SignalSource exposes the engine's last computed signals.
type SignalSource interface {
	Signals() []domain.Signal
}

// BaselineLister exposes the refresher's current baselines.
type BaselineLister interface {
	Baselines() map[string]domain.PairBaseline
}

// SignalHandler serves the signal and baseline read endpoints.
type SignalHandler struct {
	signals   SignalSource
	baselines BaselineLister
	logger    *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals SignalSource, baselines BaselineLister, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		signals:   signals,
		baselines: baselines,
		logger:    logger.With(slog.String("handler", "signals")),
	}
}

// ListSignals returns the signals from the most recent completed tick.
// GET /api/signals
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	sigs := h.signals.Signals()
	if sigs == nil {
		sigs = []domain.Signal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": sigs})
}

// ListBaselines returns the current statistical baseline for every pair that
// has one, sorted by pair ID.
// GET /api/baselines
func (h *SignalHandler) ListBaselines(w http.ResponseWriter, r *http.Request) {
	byPair := h.baselines.Baselines()

	out := make([]domain.PairBaseline, 0, len(byPair))
	for _, b := range byPair {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairID < out[j].PairID })

	writeJSON(w, http.StatusOK, map[string]any{"baselines": out})
}
