package domain

import "time"

// Signal is the normalized deviation of a pair's current spread from its
// baseline. Signals are transient: recomputed fresh every tick and never
// persisted.
type Signal struct {
	PairID      string    `json:"pair_id"`
	ZScore      float64   `json:"z_score"`
	SpreadNow   float64   `json:"spread_now"`
	PriceA      float64   `json:"price_a"`
	PriceB      float64   `json:"price_b"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}
