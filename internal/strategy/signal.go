package strategy

import (
	"fmt"
	"time"

	"github.com/quantpair/pairtrader/internal/domain"
)

// ComputeSignal derives the current spread and z-score for a pair from its
// baseline and the latest prices. It is pure and deterministic. An invalid
// baseline yields ErrNoBaseline; callers must not trade on that result.
func ComputeSignal(b domain.PairBaseline, priceA, priceB float64, at time.Time) (domain.Signal, error) {
	if !b.Valid() {
		return domain.Signal{}, fmt.Errorf("signal: pair %s: %w", b.PairID, domain.ErrNoBaseline)
	}

	spread := b.Spread(priceA, priceB)
	return domain.Signal{
		PairID:      b.PairID,
		ZScore:      (spread - b.SpreadMean) / b.SpreadStd,
		SpreadNow:   spread,
		PriceA:      priceA,
		PriceB:      priceB,
		EvaluatedAt: at,
	}, nil
}
