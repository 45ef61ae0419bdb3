package domain

import "time"

// PricePoint is a single observed price for a symbol at a point in time.
// Points are immutable once read from a feed.
type PricePoint struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// PriceSeries is an ordered sequence of price points for one symbol, ordered
// by timestamp ascending with no duplicate timestamps. Feeds are responsible
// for producing series in this form.
type PriceSeries []PricePoint

// Quote is the latest known price for a symbol.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}
