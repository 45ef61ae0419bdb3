// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pairtrader_ticks_total", Help: "Evaluation ticks run"},
	)
	PairSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairtrader_pair_skips_total", Help: "Pairs skipped during a tick"},
		[]string{"pair", "reason"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairtrader_signals_total", Help: "Signals computed"},
		[]string{"pair"},
	)
	BaselineRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairtrader_baseline_refreshes_total", Help: "Baseline recompute attempts"},
		[]string{"pair", "outcome"},
	)
	TradesOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairtrader_trades_opened_total", Help: "Paper trades opened"},
		[]string{"pair", "side"},
	)
	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairtrader_trades_closed_total", Help: "Paper trades closed"},
		[]string{"pair", "side"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pairtrader_open_positions", Help: "Currently open paper positions"},
	)
	Balance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pairtrader_balance", Help: "Virtual ledger balance"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, PairSkips, SignalsTotal, BaselineRefreshes,
		TradesOpened, TradesClosed, OpenPositions, Balance,
	)
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
