package domain

import (
	"context"
	"time"
)

// PriceFeed supplies, per symbol, either the latest quote or a time-indexed
// historical series. Implementations must return within a bounded timeout and
// report unavailability as ErrFeedUnavailable rather than panicking or
// returning a zero price the caller cannot distinguish from a real one.
type PriceFeed interface {
	// Latest returns the most recent quote for symbol.
	Latest(ctx context.Context, symbol string) (Quote, error)
	// History returns an ordered series over the trailing window, sized for
	// baseline regression (typically days of data at minute granularity).
	History(ctx context.Context, symbol string, window time.Duration) (PriceSeries, error)
}
