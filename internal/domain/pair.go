// Package domain holds the core types, interfaces, and sentinel errors shared
// across the pair-trading engine: pairs, prices, baselines, signals, trades,
// and the contracts for feeds, caches, and stores.
package domain

// Pair names two symbols whose price relationship is tracked for
// mean-reversion trading.
type Pair struct {
	SymbolA string `json:"symbol_a"`
	SymbolB string `json:"symbol_b"`
}

// ID returns the canonical pair identifier, e.g. "HDFCBANK/ICICIBANK".
func (p Pair) ID() string {
	return p.SymbolA + "/" + p.SymbolB
}
