package domain

import "errors"

var (
	// ErrFeedUnavailable marks a price feed that could not answer in time or
	// returned malformed data. Recovered per pair: the pair is skipped for
	// the tick and self-heals on the next successful one.
	ErrFeedUnavailable = errors.New("price feed unavailable")
	// ErrInsufficientData marks a historical window with too few aligned
	// points for a stable regression.
	ErrInsufficientData = errors.New("insufficient aligned data")
	// ErrDegenerateVariance marks a window whose spread variance is zero or
	// not finite; no z-score may be derived from it.
	ErrDegenerateVariance = errors.New("degenerate spread variance")
	// ErrNoBaseline means no valid baseline is currently available for a pair.
	ErrNoBaseline = errors.New("no valid baseline")
	// ErrInvariantViolation is a programmer error, e.g. two open trades
	// observed for one pair. Fatal for the affected pair.
	ErrInvariantViolation = errors.New("ledger invariant violation")

	ErrNotFound       = errors.New("not found")
	ErrPositionOpen   = errors.New("position already open")
	ErrNoOpenPosition = errors.New("no open position")
)
