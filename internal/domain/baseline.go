package domain

import (
	"math"
	"time"
)

// BaselineMode records how a baseline's hedge ratio was obtained. The two
// modes must never be mixed within one baseline's lifetime.
type BaselineMode string

const (
	// BaselineModeOLS regresses symbol A on symbol B to obtain the hedge ratio.
	BaselineModeOLS BaselineMode = "ols"
	// BaselineModeRatio fixes the hedge ratio at 1 (plain price difference).
	BaselineModeRatio BaselineMode = "ratio"
)

// PairBaseline is the estimated equilibrium relationship for a pair: the
// hedge ratio plus the mean and standard deviation of the spread over the
// historical window it was computed from. Baselines are superseded by the
// next successful recompute, never mutated in place.
type PairBaseline struct {
	PairID     string       `json:"pair_id"`
	SymbolA    string       `json:"symbol_a"`
	SymbolB    string       `json:"symbol_b"`
	Mode       BaselineMode `json:"mode"`
	HedgeRatio float64      `json:"hedge_ratio"`
	SpreadMean float64      `json:"spread_mean"`
	SpreadStd  float64      `json:"spread_std"`
	Points     int          `json:"points"`
	ComputedAt time.Time    `json:"computed_at"`
}

// Valid reports whether the baseline can be used for z-score computation.
// A zero or non-finite spread standard deviation makes a baseline unusable;
// no signal may be derived from it.
func (b PairBaseline) Valid() bool {
	return b.SpreadStd > 0 &&
		!math.IsNaN(b.SpreadStd) && !math.IsInf(b.SpreadStd, 0) &&
		!math.IsNaN(b.HedgeRatio) && !math.IsInf(b.HedgeRatio, 0) &&
		!math.IsNaN(b.SpreadMean) && !math.IsInf(b.SpreadMean, 0)
}

// Spread returns price_a - hedge_ratio * price_b under this baseline.
func (b PairBaseline) Spread(priceA, priceB float64) float64 {
	return priceA - b.HedgeRatio*priceB
}
